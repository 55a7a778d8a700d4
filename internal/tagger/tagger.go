package tagger

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/jackzampolin/namefind/internal/types"
)

// ErrNoLegalSequence is returned when the legality function rejects every
// outcome at some position for every sequence in the beam.
var ErrNoLegalSequence = errors.New("no legal outcome sequence")

// ScoredSpan is a token-index span with the mean probability of its outcomes.
type ScoredSpan struct {
	Span types.Span
	Prob float64
}

// Tagger decodes token sequences with a Model.
// A Tagger is read-only after construction and safe for concurrent use.
type Tagger struct {
	model *Model
}

// New wraps a parsed model.
func New(m *Model) *Tagger {
	return &Tagger{model: m}
}

// Load reads a model file and returns a tagger for it.
func Load(path string) (*Tagger, error) {
	m, err := LoadModel(path)
	if err != nil {
		return nil, err
	}
	return New(m), nil
}

// Name returns the model name.
func (t *Tagger) Name() string {
	return t.model.Name
}

// Legal is the tagger's own structural legality check.
func (t *Tagger) Legal(pos int, tokens []string, prior []string, outcome string) bool {
	return BaselineLegal(pos, tokens, prior, outcome)
}

type sequence struct {
	outcomes []string
	probs    []float64
	score    float64
}

func (s sequence) extend(outcome string, p float64) sequence {
	n := len(s.outcomes)
	out := sequence{
		outcomes: make([]string, n+1),
		probs:    make([]float64, n+1),
		score:    s.score + math.Log(p),
	}
	copy(out.outcomes, s.outcomes)
	copy(out.probs, s.probs)
	out.outcomes[n] = outcome
	out.probs[n] = p
	return out
}

// Find decodes tokens and returns the name spans of the best sequence.
// Probabilities are renormalised over the outcomes legal at each position, so a
// position with a single legal outcome contributes probability 1.
// A nil legal uses the tagger's baseline legality.
func (t *Tagger) Find(tokens []string, legal LegalityFunc) ([]ScoredSpan, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if legal == nil {
		legal = t.Legal
	}

	best, err := t.bestSequence(tokens, legal)
	if err != nil {
		return nil, err
	}
	return spansOf(best), nil
}

func (t *Tagger) bestSequence(tokens []string, legal LegalityFunc) (sequence, error) {
	feat := newFeaturizer()
	beam := []sequence{{}}

	for pos := range tokens {
		next := make([]sequence, 0, len(beam)*len(Outcomes))
		for _, seq := range beam {
			dist := t.model.eval(feat.context(pos, tokens, seq.outcomes))

			var allowed [3]bool
			var total float64
			for i, o := range Outcomes {
				if legal(pos, tokens, seq.outcomes, o) {
					allowed[i] = true
					total += dist[i]
				}
			}
			if total == 0 {
				continue
			}
			for i, o := range Outcomes {
				if allowed[i] {
					next = append(next, seq.extend(o, dist[i]/total))
				}
			}
		}
		if len(next) == 0 {
			return sequence{}, fmt.Errorf("%w at token %d (%q)", ErrNoLegalSequence, pos, tokens[pos])
		}

		sort.SliceStable(next, func(i, j int) bool {
			return next[i].score > next[j].score
		})
		if len(next) > t.model.BeamSize {
			next = next[:t.model.BeamSize]
		}
		beam = next
	}
	return beam[0], nil
}

func spansOf(seq sequence) []ScoredSpan {
	var spans []ScoredSpan
	begin := -1
	var sum float64

	flush := func(end int) {
		if begin < 0 {
			return
		}
		spans = append(spans, ScoredSpan{
			Span: types.Span{Begin: begin, End: end},
			Prob: sum / float64(end-begin),
		})
		begin = -1
		sum = 0
	}

	for i, o := range seq.outcomes {
		switch KindOf(o) {
		case Start:
			flush(i)
			begin = i
			sum = seq.probs[i]
		case Continue:
			if begin < 0 {
				begin = i
			}
			sum += seq.probs[i]
		default:
			flush(i)
		}
	}
	flush(len(seq.outcomes))
	return spans
}
