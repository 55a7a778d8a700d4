// Package types provides shared types used across multiple packages.
// This package has no dependencies on other namefind packages to avoid import cycles.
package types

import "fmt"

// Span is a half-open [Begin, End) interval over character or token offsets.
type Span struct {
	Begin int `json:"begin" yaml:"begin"`
	End   int `json:"end" yaml:"end"`
}

// NewSpan returns a span, swapping the bounds if they arrive reversed.
func NewSpan(begin, end int) Span {
	if end < begin {
		begin, end = end, begin
	}
	return Span{Begin: begin, End: end}
}

// Len returns the number of positions covered by the span.
func (s Span) Len() int {
	return s.End - s.Begin
}

// Empty reports whether the span covers nothing.
func (s Span) Empty() bool {
	return s.End <= s.Begin
}

// Intersects reports whether the two spans share at least one position.
// Spans that only touch at a boundary do not intersect.
func (s Span) Intersects(o Span) bool {
	return s.Begin < o.End && o.Begin < s.End
}

// Contains reports whether o lies entirely inside s.
func (s Span) Contains(o Span) bool {
	return s.Begin <= o.Begin && o.End <= s.End
}

// Covered returns the slice of text covered by the span, clamped to the text bounds.
func (s Span) Covered(text string) string {
	begin, end := s.Begin, s.End
	if begin < 0 {
		begin = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if begin >= end {
		return ""
	}
	return text[begin:end]
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Begin, s.End)
}
