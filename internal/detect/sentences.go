package detect

import (
	"sort"

	"github.com/jackzampolin/namefind/internal/types"
)

// tokenIndex orders tokens by begin offset so each sentence can locate its
// tokens with a binary search followed by a short scan.
type tokenIndex struct {
	spans []types.Span
	order []int // token indices sorted by begin, then end
}

func newTokenIndex(tokens []types.Span) *tokenIndex {
	order := make([]int, len(tokens))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ta, tb := tokens[order[a]], tokens[order[b]]
		if ta.Begin != tb.Begin {
			return ta.Begin < tb.Begin
		}
		return ta.End < tb.End
	})
	return &tokenIndex{spans: tokens, order: order}
}

// within returns the spans of tokens fully inside outer, in document order.
func (ix *tokenIndex) within(outer types.Span) []types.Span {
	first := sort.Search(len(ix.order), func(i int) bool {
		return ix.spans[ix.order[i]].Begin >= outer.Begin
	})

	var out []types.Span
	for _, idx := range ix.order[first:] {
		tok := ix.spans[idx]
		if tok.Begin >= outer.End {
			break
		}
		if tok.End <= outer.End {
			out = append(out, tok)
		}
	}
	return out
}

// locate returns the positions in sentTokens fully covered by span, in order.
func locate(sentTokens []types.Span, span types.Span) []int {
	first := sort.Search(len(sentTokens), func(i int) bool {
		return sentTokens[i].Begin >= span.Begin
	})
	var out []int
	for i := first; i < len(sentTokens); i++ {
		if sentTokens[i].Begin >= span.End {
			break
		}
		if span.Contains(sentTokens[i]) {
			out = append(out, i)
		}
	}
	return out
}
