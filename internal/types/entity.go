package types

import "github.com/google/uuid"

// Key is the semantic identity of an entity during reconciliation.
// Text, confidence and the confirmed flag can change without changing the key.
type Key struct {
	Span Span
	Type string
}

// Entity is a detected or confirmed named entity.
type Entity struct {
	// ID is stable across in-place updates so a displayed row keeps its identity.
	ID         string   `json:"id" yaml:"id"`
	Span       Span     `json:"span" yaml:"span"`
	Text       string   `json:"text" yaml:"text"`
	Type       string   `json:"type" yaml:"type"`
	Confidence *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Confirmed  bool     `json:"confirmed" yaml:"confirmed"`

	// AnnotationID links a confirmed entity to the document annotation backing it.
	// Empty when no annotation is linked.
	AnnotationID string `json:"annotation_id,omitempty" yaml:"annotation_id,omitempty"`
}

// NewCandidate creates a model-proposed entity carrying a confidence.
func NewCandidate(span Span, text, typ string, confidence float64) *Entity {
	return &Entity{
		ID:         uuid.NewString(),
		Span:       span,
		Text:       text,
		Type:       typ,
		Confidence: &confidence,
	}
}

// NewConfirmed creates a user-accepted entity. Confirmed entities carry no confidence.
func NewConfirmed(span Span, text, typ, annotationID string) *Entity {
	return &Entity{
		ID:           uuid.NewString(),
		Span:         span,
		Text:         text,
		Type:         typ,
		Confirmed:    true,
		AnnotationID: annotationID,
	}
}

// Key returns the reconciliation key of the entity.
func (e *Entity) Key() Key {
	return Key{Span: e.Span, Type: e.Type}
}

// Matches reports whether the entity has the given type and overlaps span.
func (e *Entity) Matches(span Span, typ string) bool {
	return e.Type == typ && e.Span.Intersects(span)
}

// Refresh overwrites the detection-derived fields in place, keeping ID.
func (e *Entity) Refresh(span Span, text string, confidence *float64) {
	e.Span = span
	e.Text = text
	if confidence == nil {
		e.Confidence = nil
		return
	}
	c := *confidence
	e.Confidence = &c
}

// Confirm marks the entity as user-accepted and drops its confidence.
func (e *Entity) Confirm(annotationID string) {
	e.Confirmed = true
	e.Confidence = nil
	e.AnnotationID = annotationID
}

// Clone returns a deep copy safe to hand to other goroutines.
func (e *Entity) Clone() Entity {
	c := *e
	if e.Confidence != nil {
		v := *e.Confidence
		c.Confidence = &v
	}
	return c
}
