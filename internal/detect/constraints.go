package detect

import (
	"github.com/jackzampolin/namefind/internal/decode"
	"github.com/jackzampolin/namefind/internal/types"
)

// Verified is a confirmed name span used for recall boosting.
type Verified struct {
	Span types.Span `json:"span" yaml:"span"`
	Type string     `json:"type" yaml:"type"`
}

// buildConstraints derives the forced outcomes and name-only tokens of one
// sentence from the verified spans that cover its tokens.
func buildConstraints(sentence types.Span, sentTokens []types.Span, texts []string, verified []Verified, filter TokenFilter) decode.Constraints {
	c := decode.NewConstraints()
	for _, v := range verified {
		if !v.Span.Intersects(sentence) {
			continue
		}
		for n, pos := range locate(sentTokens, v.Span) {
			kind := decode.KindContinue
			if n == 0 {
				kind = decode.KindStart
			}
			c.Force(pos, v.Type, kind)
			if filter.Passes(texts[pos]) {
				c.AddNameOnly(v.Type, texts[pos])
			}
		}
	}
	return c
}
