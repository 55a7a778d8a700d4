// Package document is an in-memory annotated document: text plus typed span
// annotations, with change notifications for subscribers.
package document

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jackzampolin/namefind/internal/types"
)

var (
	// ErrUnknownType is returned when a type name was never declared.
	ErrUnknownType = errors.New("unknown annotation type")

	// ErrNotFound is returned when an annotation ID does not exist.
	ErrNotFound = errors.New("annotation not found")
)

// Type is a resolved annotation type handle.
type Type struct {
	name string
}

// Name returns the type name.
func (t Type) Name() string {
	return t.name
}

// Annotation is a typed span over the document text.
type Annotation struct {
	ID   string     `json:"id" yaml:"id"`
	Type string     `json:"type" yaml:"type"`
	Span types.Span `json:"span" yaml:"span"`
	Text string     `json:"text" yaml:"text"`
}

// Change describes one mutation of the document.
type Change struct {
	Added       []Annotation
	Removed     []Annotation
	TextChanged bool
}

// Empty reports whether the change carries nothing.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && !c.TextChanged
}

// Document holds text and annotations. It is safe for concurrent use;
// listeners run synchronously on the goroutine that made the change.
type Document struct {
	logger *slog.Logger

	mu          sync.RWMutex
	text        string
	types       map[string]struct{}
	annotations map[string]Annotation

	listenersMu  sync.Mutex
	listeners    map[int]func(Change)
	nextListener int
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the document logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Document) {
		d.logger = l
	}
}

// New creates a document with the given text and declared types.
func New(text string, typeNames []string, opts ...Option) *Document {
	d := &Document{
		logger:      slog.Default(),
		text:        text,
		types:       make(map[string]struct{}),
		annotations: make(map[string]Annotation),
		listeners:   make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, n := range typeNames {
		d.types[n] = struct{}{}
	}
	return d
}

// Text returns the document text.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// DeclareTypes makes type names resolvable.
func (d *Document) DeclareTypes(names ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range names {
		d.types[n] = struct{}{}
	}
}

// ResolveType returns the handle for a declared type name.
func (d *Document) ResolveType(name string) (Type, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if _, ok := d.types[name]; !ok {
		return Type{}, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return Type{name: name}, nil
}

// Annotations returns the annotations of a type ordered by begin, then end.
func (d *Document) Annotations(t Type) []Annotation {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Annotation
	for _, a := range d.annotations {
		if a.Type == t.name {
			out = append(out, a)
		}
	}
	sortAnnotations(out)
	return out
}

// Get returns an annotation by ID.
func (d *Document) Get(id string) (Annotation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.annotations[id]
	return a, ok
}

// Add inserts annotations, declaring their types, and notifies subscribers.
// IDs are assigned when empty; covered text is always taken from the document.
func (d *Document) Add(anns ...Annotation) ([]Annotation, error) {
	ch, err := d.Apply(Change{Added: anns})
	if err != nil {
		return nil, err
	}
	return ch.Added, nil
}

// Remove deletes annotations by ID and notifies subscribers.
func (d *Document) Remove(ids ...string) error {
	removed := make([]Annotation, 0, len(ids))
	for _, id := range ids {
		removed = append(removed, Annotation{ID: id})
	}
	_, err := d.Apply(Change{Removed: removed})
	return err
}

// SetText replaces the document text and notifies subscribers.
// Annotations are kept as they are.
func (d *Document) SetText(text string) {
	d.mu.Lock()
	if d.text == text {
		d.mu.Unlock()
		return
	}
	d.text = text
	d.mu.Unlock()
	d.notify(Change{TextChanged: true})
}

// Apply performs removals then additions as one change and notifies
// subscribers once. Removals are matched by ID. The applied change is returned.
func (d *Document) Apply(ch Change) (Change, error) {
	if err := validateAdded(ch.Added); err != nil {
		return Change{}, err
	}

	d.mu.Lock()
	for _, r := range ch.Removed {
		if _, ok := d.annotations[r.ID]; !ok {
			d.mu.Unlock()
			return Change{}, fmt.Errorf("%w: %s", ErrNotFound, r.ID)
		}
	}

	applied := Change{TextChanged: ch.TextChanged}
	for _, r := range ch.Removed {
		applied.Removed = append(applied.Removed, d.annotations[r.ID])
		delete(d.annotations, r.ID)
	}
	for _, a := range ch.Added {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.Text = a.Span.Covered(d.text)
		d.types[a.Type] = struct{}{}
		d.annotations[a.ID] = a
		applied.Added = append(applied.Added, a)
	}
	d.mu.Unlock()

	if !applied.Empty() {
		d.notify(applied)
	}
	return applied, nil
}

// validateAdded rejects a change before anything is mutated.
func validateAdded(anns []Annotation) error {
	for _, a := range anns {
		if a.Type == "" {
			return fmt.Errorf("annotation at %v has no type", a.Span)
		}
	}
	return nil
}

// Subscribe registers fn for change notifications. The returned function
// unsubscribes it.
func (d *Document) Subscribe(fn func(Change)) (unsubscribe func()) {
	d.listenersMu.Lock()
	id := d.nextListener
	d.nextListener++
	d.listeners[id] = fn
	d.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.listenersMu.Lock()
			delete(d.listeners, id)
			d.listenersMu.Unlock()
		})
	}
}

func (d *Document) notify(ch Change) {
	d.listenersMu.Lock()
	ids := make([]int, 0, len(d.listeners))
	for id := range d.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, d.listeners[id])
	}
	d.listenersMu.Unlock()

	d.logger.Debug("document changed",
		"added", len(ch.Added),
		"removed", len(ch.Removed),
		"text_changed", ch.TextChanged,
		"listeners", len(fns))
	for _, fn := range fns {
		fn(ch)
	}
}

func sortAnnotations(anns []Annotation) {
	sort.SliceStable(anns, func(i, j int) bool {
		if anns[i].Span.Begin != anns[j].Span.Begin {
			return anns[i].Span.Begin < anns[j].Span.Begin
		}
		if anns[i].Span.End != anns[j].Span.End {
			return anns[i].Span.End < anns[j].Span.End
		}
		return anns[i].Type < anns[j].Type
	})
}
