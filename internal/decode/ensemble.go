package decode

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/namefind/internal/tagger"
	"github.com/jackzampolin/namefind/internal/types"
)

// ModelSpec pairs a model artifact with the entity type it detects.
type ModelSpec struct {
	Path string `json:"path" yaml:"path"`
	Type string `json:"type" yaml:"type"`
}

// Loader turns a model path into a tagger.
type Loader func(path string) (Tagger, error)

// LoadFile is the default Loader, reading model files from disk.
func LoadFile(path string) (Tagger, error) {
	return tagger.Load(path)
}

// LoadError reports a model that could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load model %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ConfidenceSpan is a token-index span detected by one model of the ensemble.
type ConfidenceSpan struct {
	Span types.Span
	Type string
	Prob float64
}

// Ensemble runs one constrained tagger per configured model over the same tokens.
type Ensemble struct {
	specs    []ModelSpec
	adapters []*ConstrainedTagger
}

// NewEnsemble loads every model. If any model fails the whole construction fails
// and no ensemble is returned.
func NewEnsemble(specs []ModelSpec, load Loader) (*Ensemble, error) {
	if load == nil {
		load = LoadFile
	}
	adapters := make([]*ConstrainedTagger, 0, len(specs))
	for _, spec := range specs {
		t, err := load(spec.Path)
		if err != nil {
			return nil, &LoadError{Path: spec.Path, Err: err}
		}
		adapters = append(adapters, NewConstrainedTagger(spec.Type, t))
	}
	return &Ensemble{
		specs:    append([]ModelSpec(nil), specs...),
		adapters: adapters,
	}, nil
}

// Specs returns the model specs the ensemble was built from.
func (e *Ensemble) Specs() []ModelSpec {
	return append([]ModelSpec(nil), e.specs...)
}

// SameSpecs reports whether the ensemble was built from exactly specs.
func (e *Ensemble) SameSpecs(specs []ModelSpec) bool {
	if len(specs) != len(e.specs) {
		return false
	}
	for i := range specs {
		if specs[i] != e.specs[i] {
			return false
		}
	}
	return true
}

// SetConstraints installs c into every adapter.
func (e *Ensemble) SetConstraints(c Constraints) {
	for _, a := range e.adapters {
		a.SetConstraints(c)
	}
}

// Find runs every adapter over tokens and concatenates the results in model order.
// Overlapping spans from different models are returned unchanged.
func (e *Ensemble) Find(ctx context.Context, tokens []string) ([]ConfidenceSpan, error) {
	perModel := make([][]ConfidenceSpan, len(e.adapters))

	g, ctx := errgroup.WithContext(ctx)
	for i, a := range e.adapters {
		g.Go(func() (err error) {
			// A faulty model must fail this detection, not the process.
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s model panicked: %v", a.Type(), r)
				}
			}()
			if err := ctx.Err(); err != nil {
				return err
			}
			spans, err := a.Find(tokens)
			if err != nil {
				return fmt.Errorf("%s model: %w", a.Type(), err)
			}
			out := make([]ConfidenceSpan, len(spans))
			for j, s := range spans {
				out[j] = ConfidenceSpan{Span: s.Span, Type: a.Type(), Prob: s.Prob}
			}
			perModel[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []ConfidenceSpan
	for _, spans := range perModel {
		all = append(all, spans...)
	}
	return all, nil
}
