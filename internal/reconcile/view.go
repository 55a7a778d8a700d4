package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jackzampolin/namefind/internal/config"
	"github.com/jackzampolin/namefind/internal/decode"
	"github.com/jackzampolin/namefind/internal/detect"
	"github.com/jackzampolin/namefind/internal/document"
	"github.com/jackzampolin/namefind/internal/jobs"
	"github.com/jackzampolin/namefind/internal/types"
)

// TaskDetect is the worker pool task that runs a detection job.
const TaskDetect = "detect"

var (
	// ErrViewClosed is returned by View methods once the loop has stopped.
	ErrViewClosed = errors.New("view closed")

	// ErrUnknownEntity is returned when confirming an ID that is not a candidate.
	ErrUnknownEntity = errors.New("unknown candidate")
)

// ViewConfig configures a View.
type ViewConfig struct {
	Name     string // used in logs, typically the document path
	Document *document.Document
	Pool     *jobs.CPUWorkerPool

	// Settings is read at the start of every detection cycle.
	Settings func() config.DetectionCfg
	// ResolveModelPath maps configured model paths to files. Optional.
	ResolveModelPath func(string) string
	// Loader loads model files. Default: decode.LoadFile.
	Loader decode.Loader
	Logger *slog.Logger
}

// ViewStatus is a snapshot of a view for display.
type ViewStatus struct {
	State      string `json:"state" yaml:"state"`
	Message    string `json:"message,omitempty" yaml:"message,omitempty"`
	Generation uint64 `json:"generation" yaml:"generation"`
	Candidates int    `json:"candidates" yaml:"candidates"`
	Confirmed  int    `json:"confirmed" yaml:"confirmed"`
}

type detectRequest struct {
	job        *detect.Job
	params     detect.Params
	generation uint64
}

// View binds a Controller to a document and a worker pool. All controller
// access happens on the goroutine running Run; other methods post to it.
type View struct {
	id     string
	name   string
	logger *slog.Logger

	doc      *document.Document
	pool     *jobs.CPUWorkerPool
	settings func() config.DetectionCfg
	resolve  func(string) string

	job  *detect.Job
	ctrl *Controller

	ops     chan func()
	results chan jobs.WorkResult
	done    chan struct{}
	started atomic.Bool

	waiters map[uint64]chan<- error // loop-owned

	statusMu sync.RWMutex
	status   ViewStatus
}

// NewView creates a view. Call Run to start its loop.
func NewView(cfg ViewConfig) (*View, error) {
	if cfg.Document == nil {
		return nil, errors.New("view requires a document")
	}
	if cfg.Pool == nil {
		return nil, errors.New("view requires a worker pool")
	}
	if cfg.Settings == nil {
		return nil, errors.New("view requires a settings source")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.NewString()
	logger = logger.With("view", id)
	if cfg.Name != "" {
		logger = logger.With("document", cfg.Name)
	}

	cfg.Pool.RegisterHandler(TaskDetect, handleDetect)

	v := &View{
		id:       id,
		name:     cfg.Name,
		logger:   logger,
		doc:      cfg.Document,
		pool:     cfg.Pool,
		settings: cfg.Settings,
		resolve:  cfg.ResolveModelPath,
		job:      detect.NewJob(detect.Config{Logger: logger, Loader: cfg.Loader}),
		ops:      make(chan func(), 64),
		results:  make(chan jobs.WorkResult, 16),
		done:     make(chan struct{}),
		waiters:  make(map[uint64]chan<- error),
		status:   ViewStatus{State: StateIdle.String()},
	}
	v.ctrl = NewController(ControllerConfig{
		Logger:       logger,
		DiscardStale: cfg.Settings().DiscardStaleResults,
	})
	return v, nil
}

func handleDetect(ctx context.Context, unit *jobs.WorkUnit) (any, error) {
	req, ok := unit.Payload.(*detectRequest)
	if !ok {
		return nil, fmt.Errorf("unexpected detect payload %T", unit.Payload)
	}
	return req.job.Run(ctx, req.params)
}

// ID returns the view identifier.
func (v *View) ID() string {
	return v.id
}

// Run seeds the confirmed set from the document, subscribes to document
// changes and processes requests until ctx is cancelled.
func (v *View) Run(ctx context.Context) error {
	if !v.started.CompareAndSwap(false, true) {
		return errors.New("view already running")
	}
	defer close(v.done)

	unsubscribe := v.doc.Subscribe(func(ch document.Change) {
		_ = v.post(context.Background(), func() { v.onChange(ch) })
	})
	defer unsubscribe()

	v.watch(v.settings().EntityTypes)
	v.refreshStatus("")
	v.logger.Debug("view started", "confirmed", len(v.ctrl.confirmed))

	for {
		select {
		case <-ctx.Done():
			for gen, w := range v.waiters {
				w <- ErrViewClosed
				delete(v.waiters, gen)
			}
			v.logger.Debug("view stopped")
			return nil
		case fn := <-v.ops:
			fn()
		case r := <-v.results:
			v.onResult(r)
		}
	}
}

// Done is closed once Run returns.
func (v *View) Done() <-chan struct{} {
	return v.done
}

func (v *View) post(ctx context.Context, fn func()) error {
	select {
	case <-v.done:
		return ErrViewClosed
	default:
	}
	select {
	case v.ops <- fn:
		return nil
	case <-v.done:
		return ErrViewClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do runs fn on the loop and waits for it.
func (v *View) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := v.post(ctx, func() { fn(); close(finished) }); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-v.done:
		return ErrViewClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunDetection requests a detection cycle without waiting for it.
func (v *View) RunDetection() error {
	return v.post(context.Background(), func() { v.startCycle(nil) })
}

// Detect requests a detection cycle and waits until its result has been
// applied or discarded. Validation and job failures are returned.
func (v *View) Detect(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := v.post(ctx, func() { v.startCycle(reply) }); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-v.done:
		return ErrViewClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// watch updates the watched entity types and seeds confirmations for types
// that were not watched before.
func (v *View) watch(entityTypes []string) {
	added := v.ctrl.SetWatchedTypes(entityTypes)
	for _, name := range added {
		t, err := v.doc.ResolveType(name)
		if err != nil {
			continue
		}
		v.ctrl.Seed(v.doc.Annotations(t))
	}
}

func (v *View) startCycle(reply chan<- error) {
	settings := v.settings()
	v.watch(settings.EntityTypes)
	v.ctrl.SetDiscardStale(settings.DiscardStaleResults)

	params, err := BuildParams(settings, v.doc, v.ctrl.Verified(), v.resolve)
	if err != nil {
		v.logger.Warn("detection not scheduled", "error", err)
		v.refreshStatus(err.Error())
		respond(reply, err)
		return
	}

	gen := v.ctrl.BeginDetection()
	unit := &jobs.WorkUnit{
		ID:      uuid.NewString(),
		JobID:   v.job.ID(),
		Task:    TaskDetect,
		Payload: &detectRequest{job: v.job, params: params, generation: gen},
		Results: v.results,
	}
	if err := v.pool.Submit(unit); err != nil {
		v.ctrl.FailDetection(gen, err)
		v.logger.Warn("detection not scheduled", "generation", gen, "error", err)
		v.refreshStatus(err.Error())
		respond(reply, err)
		return
	}
	if reply != nil {
		v.waiters[gen] = reply
	}
	v.logger.Debug("detection scheduled",
		"generation", gen,
		"sentences", len(params.Sentences),
		"tokens", len(params.Tokens),
		"verified", len(params.Verified))
	v.refreshStatus("")
}

func (v *View) onResult(r jobs.WorkResult) {
	req, ok := r.Unit.Payload.(*detectRequest)
	if !ok {
		v.logger.Error("unexpected work result", "unit_id", r.Unit.ID)
		return
	}
	gen := req.generation

	var err error
	if !r.Success {
		err = r.Error
		v.ctrl.FailDetection(gen, err)
		v.logger.Warn("detection failed", "generation", gen, "error", err)
		v.refreshStatus(err.Error())
	} else {
		entities, _ := r.Output.([]types.Entity)
		if v.ctrl.ApplyDetection(gen, entities) {
			v.logger.Info("detection complete",
				"generation", gen,
				"candidates", len(v.ctrl.candidates),
				"duration", r.Duration)
			v.refreshStatus("")
		} else {
			v.refreshStatus(fmt.Sprintf("discarded results of superseded run %d", gen))
		}
	}

	if w, ok := v.waiters[gen]; ok {
		delete(v.waiters, gen)
		w <- err
	}
}

func (v *View) onChange(ch document.Change) {
	if v.ctrl.HandleChange(ch) {
		v.refreshStatus(v.Status().Message)
	}
}

func respond(reply chan<- error, err error) {
	if reply != nil {
		reply <- err
	}
}

func (v *View) refreshStatus(message string) {
	st := ViewStatus{
		State:      v.ctrl.State().String(),
		Message:    message,
		Generation: v.ctrl.Generation(),
		Candidates: len(v.ctrl.candidates),
		Confirmed:  len(v.ctrl.confirmed),
	}
	v.statusMu.Lock()
	v.status = st
	v.statusMu.Unlock()
}

// Status returns the latest status snapshot. Safe to call from any goroutine.
func (v *View) Status() ViewStatus {
	v.statusMu.RLock()
	defer v.statusMu.RUnlock()
	return v.status
}

// Elements returns the candidates in display order.
func (v *View) Elements(ctx context.Context) ([]types.Entity, error) {
	var out []types.Entity
	err := v.do(ctx, func() { out = v.ctrl.Elements() })
	return out, err
}

// Confirmed returns the confirmed entities.
func (v *View) Confirmed(ctx context.Context) ([]types.Entity, error) {
	var out []types.Entity
	err := v.do(ctx, func() { out = v.ctrl.Confirmed() })
	return out, err
}

// Confirm asks the document to materialize an annotation for the candidate.
// The collections change when the document's notification reaches the loop.
func (v *View) Confirm(ctx context.Context, entityID string) (document.Annotation, error) {
	var (
		target types.Entity
		found  bool
	)
	if err := v.do(ctx, func() { target, found = v.ctrl.Candidate(entityID) }); err != nil {
		return document.Annotation{}, err
	}
	if !found {
		return document.Annotation{}, fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}

	added, err := v.doc.Add(document.Annotation{Type: target.Type, Span: target.Span})
	if err != nil {
		return document.Annotation{}, fmt.Errorf("failed to confirm %s: %w", entityID, err)
	}
	v.logger.Info("candidate confirmed", "entity_id", entityID, "span", target.Span, "type", target.Type)
	return added[0], nil
}

// Select selects the candidate at index i; -1 clears the selection.
func (v *View) Select(ctx context.Context, i int) error {
	var selErr error
	if err := v.do(ctx, func() { selErr = v.ctrl.Select(i) }); err != nil {
		return err
	}
	return selErr
}

// Selection returns the selected candidate and its index, or index -1.
func (v *View) Selection(ctx context.Context) (types.Entity, int, error) {
	var (
		e   types.Entity
		idx int
	)
	err := v.do(ctx, func() { e, idx = v.ctrl.Selection() })
	return e, idx, err
}

// SetVisible records whether the view is currently shown.
func (v *View) SetVisible(ctx context.Context, visible bool) error {
	return v.do(ctx, func() { v.ctrl.SetVisible(visible) })
}
