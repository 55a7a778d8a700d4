// Package decode runs one or more sequence taggers under per-sentence decoding
// constraints derived from confirmed entities.
package decode

import "github.com/jackzampolin/namefind/internal/tagger"

// Kind is the outcome kind a constrained position must take.
type Kind string

const (
	KindStart    Kind = tagger.Start
	KindContinue Kind = tagger.Continue
)

// Forced pins a token position to a name of Type.
type Forced struct {
	Type string
	Kind Kind
}

// NameOnlyKey identifies a token text that must decode as part of a Type name
// wherever it occurs in the sentence.
type NameOnlyKey struct {
	Type  string
	Token string
}

// Constraints are the decoding constraints for one sentence.
// The zero value constrains nothing.
type Constraints struct {
	Forced   map[int]Forced
	NameOnly map[NameOnlyKey]struct{}
}

// NewConstraints returns empty, writable constraints.
func NewConstraints() Constraints {
	return Constraints{
		Forced:   make(map[int]Forced),
		NameOnly: make(map[NameOnlyKey]struct{}),
	}
}

// Force pins pos to kind for typ.
func (c Constraints) Force(pos int, typ string, kind Kind) {
	c.Forced[pos] = Forced{Type: typ, Kind: kind}
}

// AddNameOnly marks token as a name-only token for typ.
func (c Constraints) AddNameOnly(typ, token string) {
	c.NameOnly[NameOnlyKey{Type: typ, Token: token}] = struct{}{}
}

// IsNameOnly reports whether token is a name-only token for typ.
func (c Constraints) IsNameOnly(typ, token string) bool {
	_, ok := c.NameOnly[NameOnlyKey{Type: typ, Token: token}]
	return ok
}

// Empty reports whether no constraint is set.
func (c Constraints) Empty() bool {
	return len(c.Forced) == 0 && len(c.NameOnly) == 0
}
