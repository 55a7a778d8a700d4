// Package tagger implements the statistical sequence tagger used for name finding.
//
// A model scores the outcomes start/cont/other for each token from a set of sparse
// features; decoding is a beam search that only extends sequences the caller's
// legality function accepts. Callers treat the tagger as a black box: tokens in,
// token-index spans with probabilities out.
package tagger

import "strings"

// Outcome kinds. Models may prefix them with a type ("person-start"); only the
// suffix after the last dash is significant.
const (
	Start    = "start"
	Continue = "cont"
	Other    = "other"
)

// Outcomes lists every outcome a model scores, in evaluation order.
var Outcomes = []string{Start, Continue, Other}

// KindOf returns the kind suffix of an outcome.
func KindOf(outcome string) string {
	if i := strings.LastIndexByte(outcome, '-'); i >= 0 {
		return outcome[i+1:]
	}
	return outcome
}

// IsName reports whether the outcome places its token inside a name.
func IsName(outcome string) bool {
	k := KindOf(outcome)
	return k == Start || k == Continue
}

// LegalityFunc decides whether outcome may be assigned at pos given the outcomes
// already chosen for earlier positions.
type LegalityFunc func(pos int, tokens []string, prior []string, outcome string) bool

// BaselineLegal enforces sequence structure: a continuation needs a name to continue.
func BaselineLegal(pos int, _ []string, prior []string, outcome string) bool {
	if KindOf(outcome) != Continue {
		return true
	}
	if pos == 0 || len(prior) < pos {
		return false
	}
	return IsName(prior[pos-1])
}
