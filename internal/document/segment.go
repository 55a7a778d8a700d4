package document

import (
	"regexp"
	"strings"

	"github.com/jackzampolin/namefind/internal/types"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}]+(?:['’\-][\p{L}\p{M}]+)*|\p{N}+(?:[.,:]\p{N}+)*|[^\s\p{L}\p{M}\p{N}]`)

// abbreviations keep their trailing period and never end a sentence.
var abbreviations = map[string]bool{
	"dr": true, "mr": true, "mrs": true, "ms": true, "prof": true,
	"st": true, "jr": true, "sr": true, "vs": true, "etc": true,
	"inc": true, "ltd": true, "co": true, "no": true,
}

// Segment splits text into sentence and token spans with a rule-based
// tokenizer. It is used for documents that arrive without segmentation.
func Segment(text string) (sentences, tokens []types.Span) {
	for _, loc := range tokenPattern.FindAllStringIndex(text, -1) {
		tok := types.Span{Begin: loc[0], End: loc[1]}
		if n := len(tokens); n > 0 && text[tok.Begin:tok.End] == "." {
			prev := tokens[n-1]
			if prev.End == tok.Begin && abbreviations[strings.ToLower(text[prev.Begin:prev.End])] {
				tokens[n-1].End = tok.End
				continue
			}
		}
		tokens = append(tokens, tok)
	}

	start := -1
	for i, tok := range tokens {
		if start < 0 {
			start = i
		}
		switch text[tok.Begin:tok.End] {
		case ".", "!", "?":
			sentences = append(sentences, types.Span{Begin: tokens[start].Begin, End: tok.End})
			start = -1
		}
	}
	if start >= 0 {
		sentences = append(sentences, types.Span{Begin: tokens[start].Begin, End: tokens[len(tokens)-1].End})
	}
	return sentences, tokens
}

// EnsureSegmentation adds sentence and token annotations when the document has
// none of either type. It reports whether anything was added.
func (d *Document) EnsureSegmentation(sentenceType, tokenType string) (bool, error) {
	d.DeclareTypes(sentenceType, tokenType)
	st, _ := d.ResolveType(sentenceType)
	tt, _ := d.ResolveType(tokenType)
	if len(d.Annotations(st)) > 0 || len(d.Annotations(tt)) > 0 {
		return false, nil
	}

	sentences, tokens := Segment(d.Text())
	anns := make([]Annotation, 0, len(sentences)+len(tokens))
	for _, s := range sentences {
		anns = append(anns, Annotation{Type: sentenceType, Span: s})
	}
	for _, t := range tokens {
		anns = append(anns, Annotation{Type: tokenType, Span: t})
	}
	if len(anns) == 0 {
		return false, nil
	}
	if _, err := d.Add(anns...); err != nil {
		return false, err
	}
	return true, nil
}
