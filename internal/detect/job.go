// Package detect turns a document's sentences and tokens into entity candidates
// by running the model ensemble sentence by sentence.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/namefind/internal/decode"
	"github.com/jackzampolin/namefind/internal/types"
)

// Params are the inputs of one detection run. They are rebuilt every cycle.
type Params struct {
	Models    []decode.ModelSpec
	Text      string
	Sentences []types.Span
	Tokens    []types.Span

	// Verified holds confirmed names for recall boosting. Empty disables it.
	Verified []Verified
	Filter   TokenFilter
}

// Config configures a Job.
type Config struct {
	Logger *slog.Logger
	Loader decode.Loader // default: decode.LoadFile
}

// Job runs detection for one document view. Runs are serialized; the ensemble
// is built on first use and reused until the model list changes.
type Job struct {
	id     string
	logger *slog.Logger
	loader decode.Loader

	mu       sync.Mutex
	ensemble *decode.Ensemble
	results  []types.Entity
}

// NewJob creates a job.
func NewJob(cfg Config) *Job {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loader := cfg.Loader
	if loader == nil {
		loader = decode.LoadFile
	}
	id := uuid.NewString()
	return &Job{
		id:     id,
		logger: logger.With("job_id", id),
		loader: loader,
	}
}

// ID returns the job identifier.
func (j *Job) ID() string {
	return j.id
}

// Results returns the entities of the last successful run.
func (j *Job) Results() []types.Entity {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]types.Entity(nil), j.results...)
}

// Run detects entities over the whole document. On failure the previous
// results are kept and the error is returned; nothing is partially applied.
func (j *Job) Run(ctx context.Context, p Params) ([]types.Entity, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	ensemble, err := j.ensembleFor(p.Models)
	if err != nil {
		return nil, err
	}

	ix := newTokenIndex(p.Tokens)
	var found []types.Entity
	for _, sentence := range p.Sentences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entities, err := detectSentence(ctx, ensemble, ix, sentence, p)
		if err != nil {
			return nil, fmt.Errorf("sentence %v: %w", sentence, err)
		}
		found = append(found, entities...)
	}

	j.results = found
	j.logger.Debug("detection run complete",
		"sentences", len(p.Sentences),
		"tokens", len(p.Tokens),
		"verified", len(p.Verified),
		"entities", len(found),
		"duration", time.Since(start))
	return append([]types.Entity(nil), found...), nil
}

func (j *Job) ensembleFor(models []decode.ModelSpec) (*decode.Ensemble, error) {
	if j.ensemble != nil && j.ensemble.SameSpecs(models) {
		return j.ensemble, nil
	}
	e, err := decode.NewEnsemble(models, j.loader)
	if err != nil {
		j.ensemble = nil
		return nil, err
	}
	j.logger.Info("model ensemble loaded", "models", len(models))
	j.ensemble = e
	return e, nil
}

func detectSentence(ctx context.Context, ensemble *decode.Ensemble, ix *tokenIndex, sentence types.Span, p Params) ([]types.Entity, error) {
	sentTokens := ix.within(sentence)
	if len(sentTokens) == 0 {
		return nil, nil
	}
	texts := make([]string, len(sentTokens))
	for i, tok := range sentTokens {
		texts[i] = tok.Covered(p.Text)
	}

	ensemble.SetConstraints(buildConstraints(sentence, sentTokens, texts, p.Verified, p.Filter))
	spans, err := ensemble.Find(ctx, texts)
	if err != nil {
		return nil, err
	}

	entities := make([]types.Entity, 0, len(spans))
	for _, s := range spans {
		if s.Span.Empty() || s.Span.End > len(sentTokens) {
			continue
		}
		char := types.Span{
			Begin: sentTokens[s.Span.Begin].Begin,
			End:   sentTokens[s.Span.End-1].End,
		}
		entities = append(entities, *types.NewCandidate(char, char.Covered(p.Text), s.Type, s.Prob))
	}
	return entities, nil
}
