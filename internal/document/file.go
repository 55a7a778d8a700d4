package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/avast/retry-go/v4"
	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/namefind/internal/types"
)

// errEmptyFile marks a read that caught an editor mid-save.
var errEmptyFile = errors.New("document file is empty")

// File is the on-disk YAML form of a document.
type File struct {
	Text        string           `yaml:"text"`
	Annotations []FileAnnotation `yaml:"annotations,omitempty"`
}

// FileAnnotation is an annotation as stored in a document file.
type FileAnnotation struct {
	Type  string `yaml:"type"`
	Begin int    `yaml:"begin"`
	End   int    `yaml:"end"`
}

func (a FileAnnotation) span() types.Span {
	return types.NewSpan(a.Begin, a.End)
}

// ReadFile loads a document file. Editors often replace files by rename, so a
// missing or empty file is retried briefly before giving up.
func ReadFile(ctx context.Context, path string) (*File, error) {
	var data []byte
	err := retry.Do(
		func() error {
			b, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if len(bytes.TrimSpace(b)) == 0 {
				return errEmptyFile
			}
			data = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, fs.ErrNotExist) || errors.Is(err, errEmptyFile)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse document %s: %w", path, err)
	}
	return &f, nil
}

// WriteFile stores f at path, replacing the file atomically.
func WriteFile(path string, f *File) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".namefind-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// FromFile builds a document from its file form.
func FromFile(f *File, typeNames []string, opts ...Option) (*Document, error) {
	d := New(f.Text, typeNames, opts...)
	if _, err := d.Add(toAnnotations(f.Annotations)...); err != nil {
		return nil, err
	}
	return d, nil
}

// File returns the document in its file form.
func (d *Document) File() *File {
	d.mu.RLock()
	defer d.mu.RUnlock()

	anns := make([]Annotation, 0, len(d.annotations))
	for _, a := range d.annotations {
		anns = append(anns, a)
	}
	sortAnnotations(anns)

	f := &File{Text: d.text}
	for _, a := range anns {
		f.Annotations = append(f.Annotations, FileAnnotation{Type: a.Type, Begin: a.Span.Begin, End: a.Span.End})
	}
	return f
}

type fileKey struct {
	typ  string
	span types.Span
}

// Sync brings the document in line with f and notifies subscribers with a
// single change. Annotations are matched by type and span.
func (d *Document) Sync(f *File) (Change, error) {
	if err := validateAdded(toAnnotations(f.Annotations)); err != nil {
		return Change{}, err
	}

	want := make(map[fileKey]FileAnnotation, len(f.Annotations))
	for _, a := range f.Annotations {
		want[fileKey{typ: a.Type, span: a.span()}] = a
	}

	d.mu.Lock()
	textChanged := d.text != f.Text
	d.text = f.Text

	var removed []Annotation
	for id, a := range d.annotations {
		k := fileKey{typ: a.Type, span: a.Span}
		if _, ok := want[k]; ok {
			delete(want, k)
			a.Text = a.Span.Covered(d.text)
			d.annotations[id] = a
			continue
		}
		removed = append(removed, a)
	}
	d.mu.Unlock()

	added := make([]FileAnnotation, 0, len(want))
	for _, a := range want {
		added = append(added, a)
	}
	sort.Slice(added, func(i, j int) bool {
		if added[i].Begin != added[j].Begin {
			return added[i].Begin < added[j].Begin
		}
		return added[i].Type < added[j].Type
	})
	sortAnnotations(removed)

	return d.Apply(Change{
		Added:       toAnnotations(added),
		Removed:     removed,
		TextChanged: textChanged,
	})
}

func toAnnotations(fas []FileAnnotation) []Annotation {
	out := make([]Annotation, 0, len(fas))
	for _, a := range fas {
		out = append(out, Annotation{Type: a.Type, Span: a.span()})
	}
	return out
}
