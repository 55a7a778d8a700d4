package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/namefind/internal/config"
	"github.com/jackzampolin/namefind/internal/decode"
	"github.com/jackzampolin/namefind/internal/document"
	"github.com/jackzampolin/namefind/internal/jobs"
	"github.com/jackzampolin/namefind/internal/types"
)

// neutralModel never proposes a name on its own.
const neutralModel = `{"name": "neutral", "bias": {"other": 2}, "weights": {}}`

type settingsBox struct {
	mu sync.Mutex
	s  config.DetectionCfg
}

func (b *settingsBox) get() config.DetectionCfg {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.s.Clone()
}

func (b *settingsBox) update(fn func(*config.DetectionCfg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.s)
}

type viewFixture struct {
	view     *View
	doc      *document.Document
	settings *settingsBox
	modelDir string
}

func newViewFixture(t *testing.T, doc *document.Document) *viewFixture {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "person.json"), []byte(neutralModel), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := jobs.NewCPUWorkerPool(jobs.CPUWorkerPoolConfig{Name: "test", WorkerCount: 2})
	poolDone := make(chan struct{})
	go func() {
		pool.Start(ctx)
		close(poolDone)
	}()

	box := &settingsBox{s: validSettings()}
	v, err := NewView(ViewConfig{
		Name:             "scenario",
		Document:         doc,
		Pool:             pool,
		Settings:         box.get,
		ResolveModelPath: func(p string) string { return filepath.Join(dir, p) },
	})
	if err != nil {
		t.Fatalf("NewView() error = %v", err)
	}
	go func() { _ = v.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-v.Done()
		<-poolDone
	})
	return &viewFixture{view: v, doc: doc, settings: box, modelDir: dir}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func elements(t *testing.T, v *View) []types.Entity {
	t.Helper()
	got, err := v.Elements(testContext(t))
	if err != nil {
		t.Fatalf("Elements() error = %v", err)
	}
	return got
}

func confirmed(t *testing.T, v *View) []types.Entity {
	t.Helper()
	got, err := v.Confirmed(testContext(t))
	if err != nil {
		t.Fatalf("Confirmed() error = %v", err)
	}
	return got
}

func TestView_RecallBoostingScenario(t *testing.T) {
	doc := segmentedDoc(t)
	first, err := doc.Add(document.Annotation{Type: person, Span: span(4, 9)})
	if err != nil {
		t.Fatal(err)
	}
	f := newViewFixture(t, doc)
	ctx := testContext(t)

	if err := f.view.Detect(ctx); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	got := elements(t, f.view)
	if len(got) != 1 {
		t.Fatalf("Elements() = %+v, want the second Smith only", got)
	}
	second := got[0]
	if second.Span != span(19, 24) || second.Text != "Smith" || second.Type != person {
		t.Errorf("candidate = %v %q %s, want [19,24) Smith PERSON", second.Span, second.Text, second.Type)
	}
	if second.Confidence == nil || *second.Confidence != 1 {
		t.Errorf("candidate confidence = %v, want 1", second.Confidence)
	}
	conf := confirmed(t, f.view)
	if len(conf) != 1 || conf[0].Span != span(4, 9) || conf[0].AnnotationID != first[0].ID {
		t.Errorf("Confirmed() = %+v, want the first Smith", conf)
	}

	// Confirming round-trips through the document.
	ann, err := f.view.Confirm(ctx, second.ID)
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if ann.Span != span(19, 24) || ann.Text != "Smith" {
		t.Errorf("annotation = %+v", ann)
	}
	if n := len(elements(t, f.view)); n != 0 {
		t.Errorf("Elements() after confirm = %d, want 0", n)
	}
	conf = confirmed(t, f.view)
	if len(conf) != 2 || conf[1].ID != second.ID || conf[1].Confidence != nil {
		t.Errorf("Confirmed() after confirm = %+v", conf)
	}

	// Re-detection never re-adds confirmed names.
	if err := f.view.Detect(ctx); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if n := len(elements(t, f.view)); n != 0 {
		t.Errorf("Elements() after re-detection = %d, want 0", n)
	}

	// Removing the annotation makes the name a candidate again.
	if err := doc.Remove(ann.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.view.Detect(ctx); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	got = elements(t, f.view)
	if len(got) != 1 || got[0].Span != span(19, 24) {
		t.Errorf("Elements() after removal = %+v, want [19,24)", got)
	}

	st := f.view.Status()
	if st.State != StateIdle.String() || st.Candidates != 1 || st.Confirmed != 1 || st.Message != "" {
		t.Errorf("Status() = %+v", st)
	}
}

func TestView_NoBoosting(t *testing.T) {
	doc := segmentedDoc(t)
	if _, err := doc.Add(document.Annotation{Type: person, Span: span(4, 9)}); err != nil {
		t.Fatal(err)
	}
	f := newViewFixture(t, doc)
	f.settings.update(func(s *config.DetectionCfg) { s.RecallBoosting = false })

	if err := f.view.Detect(testContext(t)); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if n := len(elements(t, f.view)); n != 0 {
		t.Errorf("Elements() = %d, want 0", n)
	}
}

func TestView_ConfigurationError(t *testing.T) {
	doc := segmentedDoc(t)
	if _, err := doc.Add(document.Annotation{Type: person, Span: span(4, 9)}); err != nil {
		t.Fatal(err)
	}
	f := newViewFixture(t, doc)
	ctx := testContext(t)

	if err := f.view.Detect(ctx); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	f.settings.update(func(s *config.DetectionCfg) { s.TokenType = "Word" })
	err := f.view.Detect(ctx)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Detect() error = %v, want *ConfigurationError", err)
	}
	if n := len(elements(t, f.view)); n != 1 {
		t.Errorf("Elements() = %d, want previous results kept", n)
	}
	st := f.view.Status()
	if !strings.Contains(st.Message, `"Word"`) {
		t.Errorf("Status().Message = %q", st.Message)
	}
	if st.Generation != 1 {
		t.Errorf("Status().Generation = %d, want 1 (nothing scheduled)", st.Generation)
	}
}

func TestView_LoadError(t *testing.T) {
	doc := segmentedDoc(t)
	if _, err := doc.Add(document.Annotation{Type: person, Span: span(4, 9)}); err != nil {
		t.Fatal(err)
	}
	f := newViewFixture(t, doc)
	ctx := testContext(t)

	if err := f.view.Detect(ctx); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	f.settings.update(func(s *config.DetectionCfg) { s.ModelPaths = []string{"missing.json"} })
	err := f.view.Detect(ctx)
	var loadErr *decode.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Detect() error = %v, want *decode.LoadError", err)
	}
	want := filepath.Join(f.modelDir, "missing.json")
	if loadErr.Path != want || !strings.Contains(f.view.Status().Message, want) {
		t.Errorf("load error path = %q, status %q, want %q", loadErr.Path, f.view.Status().Message, want)
	}
	if n := len(elements(t, f.view)); n != 1 {
		t.Errorf("Elements() = %d, want previous results kept", n)
	}
}

func TestView_ConfirmUnknown(t *testing.T) {
	f := newViewFixture(t, segmentedDoc(t))
	_, err := f.view.Confirm(testContext(t), "nope")
	if !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("Confirm() error = %v, want ErrUnknownEntity", err)
	}
}

func TestView_ExternalConfirmation(t *testing.T) {
	doc := segmentedDoc(t)
	if _, err := doc.Add(document.Annotation{Type: person, Span: span(4, 9)}); err != nil {
		t.Fatal(err)
	}
	f := newViewFixture(t, doc)
	ctx := testContext(t)
	if err := f.view.Detect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.view.SetVisible(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := f.view.Select(ctx, 0); err != nil {
		t.Fatal(err)
	}

	// Annotating "John Smith" elsewhere supersedes the overlapping candidate.
	if _, err := doc.Add(document.Annotation{Type: person, Span: span(14, 24)}); err != nil {
		t.Fatal(err)
	}
	if n := len(elements(t, f.view)); n != 0 {
		t.Errorf("Elements() = %d, want 0", n)
	}
	conf := confirmed(t, f.view)
	if len(conf) != 2 || conf[1].Span != span(14, 24) || conf[1].Text != "John Smith" {
		t.Errorf("Confirmed() = %+v", conf)
	}
	if _, idx, err := f.view.Selection(ctx); err != nil || idx != -1 {
		t.Errorf("Selection() = %d, %v, want -1", idx, err)
	}
}

func TestView_Closed(t *testing.T) {
	pool := jobs.NewCPUWorkerPool(jobs.CPUWorkerPoolConfig{WorkerCount: 1})
	box := &settingsBox{s: validSettings()}
	v, err := NewView(ViewConfig{Document: segmentedDoc(t), Pool: pool, Settings: box.get})
	if err != nil {
		t.Fatalf("NewView() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := v.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if err := v.RunDetection(); !errors.Is(err, ErrViewClosed) {
		t.Errorf("RunDetection() error = %v, want ErrViewClosed", err)
	}
	if _, err := v.Elements(testContext(t)); !errors.Is(err, ErrViewClosed) {
		t.Errorf("Elements() error = %v, want ErrViewClosed", err)
	}
	if err := v.Run(context.Background()); err == nil {
		t.Error("second Run() succeeded")
	}
}

func TestNewView_Validation(t *testing.T) {
	pool := jobs.NewCPUWorkerPool(jobs.CPUWorkerPoolConfig{WorkerCount: 1})
	box := &settingsBox{s: validSettings()}
	doc := segmentedDoc(t)

	if _, err := NewView(ViewConfig{Pool: pool, Settings: box.get}); err == nil {
		t.Error("NewView() without a document succeeded")
	}
	if _, err := NewView(ViewConfig{Document: doc, Settings: box.get}); err == nil {
		t.Error("NewView() without a pool succeeded")
	}
	if _, err := NewView(ViewConfig{Document: doc, Pool: pool}); err == nil {
		t.Error("NewView() without settings succeeded")
	}
}
