package decode

import "github.com/jackzampolin/namefind/internal/tagger"

// Tagger is the black-box sequence tagger an adapter wraps.
type Tagger interface {
	// Find decodes tokens, consulting legal for every candidate outcome.
	Find(tokens []string, legal tagger.LegalityFunc) ([]tagger.ScoredSpan, error)

	// Legal is the tagger's own structural legality.
	Legal(pos int, tokens []string, prior []string, outcome string) bool
}

// ConstrainedTagger decodes for a single entity type under installed constraints.
// It holds mutable constraint state and must not be shared between goroutines.
type ConstrainedTagger struct {
	typ         string
	tagger      Tagger
	constraints Constraints
}

// NewConstrainedTagger wraps t for entity type typ.
func NewConstrainedTagger(typ string, t Tagger) *ConstrainedTagger {
	return &ConstrainedTagger{typ: typ, tagger: t}
}

// Type returns the entity type this adapter decodes.
func (a *ConstrainedTagger) Type() string {
	return a.typ
}

// SetConstraints installs the constraints used by the next Find.
func (a *ConstrainedTagger) SetConstraints(c Constraints) {
	a.constraints = c
}

// Legal combines the tagger's baseline legality with the installed constraints.
func (a *ConstrainedTagger) Legal(pos int, tokens []string, prior []string, outcome string) bool {
	if !a.tagger.Legal(pos, tokens, prior, outcome) {
		return false
	}

	if f, ok := a.constraints.Forced[pos]; ok {
		if f.Type == a.typ {
			return tagger.KindOf(outcome) == string(f.Kind)
		}
		// Another type owns this position.
		return tagger.KindOf(outcome) == tagger.Other
	}

	if pos < len(tokens) && a.constraints.IsNameOnly(a.typ, tokens[pos]) {
		return tagger.IsName(outcome)
	}
	return true
}

// Find decodes tokens under the installed constraints.
func (a *ConstrainedTagger) Find(tokens []string) ([]tagger.ScoredSpan, error) {
	return a.tagger.Find(tokens, a.Legal)
}
