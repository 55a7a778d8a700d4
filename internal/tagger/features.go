package tagger

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// featurizer builds the feature context for a token position.
// It holds a Caser, which is stateful, so each decode gets its own.
type featurizer struct {
	fold cases.Caser
}

func newFeaturizer() *featurizer {
	return &featurizer{fold: cases.Fold()}
}

func (f *featurizer) normalize(tok string) string {
	return f.fold.String(norm.NFKC.String(tok))
}

func (f *featurizer) context(pos int, tokens []string, prior []string) []string {
	w := f.normalize(tokens[pos])
	feats := []string{
		"w=" + w,
		"sh=" + shape(tokens[pos]),
		"suf=" + suffix(w, 3),
	}

	if pos > 0 {
		feats = append(feats, "pw="+f.normalize(tokens[pos-1]))
	} else {
		feats = append(feats, "pw=<s>")
	}
	if pos+1 < len(tokens) {
		feats = append(feats, "nw="+f.normalize(tokens[pos+1]))
	} else {
		feats = append(feats, "nw=</s>")
	}
	if pos > 0 && len(prior) >= pos {
		feats = append(feats, "po="+KindOf(prior[pos-1]))
	} else {
		feats = append(feats, "po=<s>")
	}
	return feats
}

// shape maps a token to its character classes with runs collapsed: "Smith" -> "Xx".
func shape(tok string) string {
	var b strings.Builder
	var last rune
	for _, r := range tok {
		c := r
		switch {
		case unicode.IsUpper(r):
			c = 'X'
		case unicode.IsLower(r):
			c = 'x'
		case unicode.IsDigit(r):
			c = 'd'
		}
		if c != last {
			b.WriteRune(c)
			last = c
		}
	}
	return b.String()
}

func suffix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
