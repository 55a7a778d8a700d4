// Package reconcile keeps a document view's candidate and confirmed entity
// collections consistent with detection results and document edits.
package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackzampolin/namefind/internal/detect"
	"github.com/jackzampolin/namefind/internal/document"
	"github.com/jackzampolin/namefind/internal/types"
)

// ErrNoSelection is returned when a selection index is out of range.
var ErrNoSelection = errors.New("selection out of range")

// State is the detection state of a view.
type State int

const (
	StateIdle State = iota
	StateDetecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDetecting:
		return "detecting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Logger       *slog.Logger
	WatchedTypes []string
	// DiscardStale drops results of any generation older than the newest
	// requested one. When false, the last job to complete wins.
	DiscardStale bool
}

// Controller owns the candidate list and the confirmed set of one view.
// It is not safe for concurrent use; View confines it to one goroutine.
type Controller struct {
	logger *slog.Logger

	watched      map[string]struct{}
	discardStale bool

	candidates []*types.Entity
	confirmed  map[types.Key]*types.Entity

	generation uint64 // newest requested
	inFlight   int

	visible  bool
	selected int // -1 when nothing is selected
}

// NewController creates an idle controller with empty collections.
func NewController(cfg ControllerConfig) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		logger:       logger,
		discardStale: cfg.DiscardStale,
		confirmed:    make(map[types.Key]*types.Entity),
		selected:     -1,
	}
	c.SetWatchedTypes(cfg.WatchedTypes)
	return c
}

// SetWatchedTypes replaces the entity types whose annotations count as confirmations.
// It returns the types that were not watched before.
func (c *Controller) SetWatchedTypes(names []string) []string {
	next := make(map[string]struct{}, len(names))
	var added []string
	for _, n := range names {
		if _, ok := c.watched[n]; !ok {
			if _, dup := next[n]; !dup {
				added = append(added, n)
			}
		}
		next[n] = struct{}{}
	}
	c.watched = next
	return added
}

// Watches reports whether annotations of type name are confirmations.
func (c *Controller) Watches(name string) bool {
	_, ok := c.watched[name]
	return ok
}

// SetDiscardStale switches between discarding superseded results and
// applying every result in completion order.
func (c *Controller) SetDiscardStale(discard bool) {
	c.discardStale = discard
}

// State returns the current detection state.
func (c *Controller) State() State {
	if c.inFlight > 0 {
		return StateDetecting
	}
	return StateIdle
}

// Generation returns the newest requested detection generation.
func (c *Controller) Generation() uint64 {
	return c.generation
}

// Seed loads existing annotations of watched types into the confirmed set.
// Keys already confirmed are left alone.
func (c *Controller) Seed(anns []document.Annotation) {
	for _, a := range anns {
		if !c.Watches(a.Type) {
			continue
		}
		key := types.Key{Span: a.Span, Type: a.Type}
		if _, ok := c.confirmed[key]; ok {
			continue
		}
		c.confirmed[key] = types.NewConfirmed(a.Span, a.Text, a.Type, a.ID)
	}
}

// BeginDetection moves to detecting and returns the generation of the new run.
func (c *Controller) BeginDetection() uint64 {
	c.generation++
	c.inFlight++
	return c.generation
}

func (c *Controller) finish() {
	if c.inFlight > 0 {
		c.inFlight--
	}
}

// ApplyDetection reconciles a successful run's entities into the collections.
// It reports whether the result was applied; superseded results are dropped
// when stale results are discarded.
func (c *Controller) ApplyDetection(gen uint64, detected []types.Entity) bool {
	c.finish()
	if c.discardStale && gen < c.generation {
		c.logger.Debug("discarding stale detection result", "generation", gen, "latest", c.generation)
		return false
	}

	sel := c.selectedEntity()
	pruned := c.prune(detected)
	added, updated := c.upsert(detected)
	c.restoreSelection(sel)

	c.logger.Debug("detection applied",
		"generation", gen,
		"detected", len(detected),
		"pruned", pruned,
		"added", added,
		"updated", updated,
		"candidates", len(c.candidates))
	return true
}

// FailDetection records a failed run. The collections are left untouched.
func (c *Controller) FailDetection(gen uint64, err error) {
	c.finish()
	c.logger.Debug("detection failed", "generation", gen, "error", err)
}

// prune drops every candidate that no detected entity of the same type overlaps.
func (c *Controller) prune(detected []types.Entity) int {
	kept := c.candidates[:0]
	pruned := 0
	for _, cand := range c.candidates {
		if matchesAny(cand, detected) {
			kept = append(kept, cand)
			continue
		}
		pruned++
	}
	clear(c.candidates[len(kept):])
	c.candidates = kept
	return pruned
}

func matchesAny(cand *types.Entity, detected []types.Entity) bool {
	for i := range detected {
		if cand.Matches(detected[i].Span, detected[i].Type) {
			return true
		}
	}
	return false
}

// upsert refreshes the first overlapping same-type candidate in place or
// inserts a new candidate unless a confirmed entity already covers it.
func (c *Controller) upsert(detected []types.Entity) (added, updated int) {
	for i := range detected {
		d := &detected[i]
		if idx := c.firstCandidate(d.Span, d.Type); idx >= 0 {
			cand := c.candidates[idx]
			cand.Refresh(d.Span, d.Text, d.Confidence)
			if _, ok := c.confirmed[cand.Key()]; ok {
				c.removeCandidate(idx)
				continue
			}
			updated++
			continue
		}
		if c.confirmedOverlaps(d.Span, d.Type) {
			continue
		}
		e := d.Clone()
		e.Confirmed = false
		e.AnnotationID = ""
		c.candidates = append(c.candidates, &e)
		added++
	}
	return added, updated
}

func (c *Controller) firstCandidate(span types.Span, typ string) int {
	for i, cand := range c.candidates {
		if cand.Matches(span, typ) {
			return i
		}
	}
	return -1
}

func (c *Controller) confirmedOverlaps(span types.Span, typ string) bool {
	for _, e := range c.confirmed {
		if e.Matches(span, typ) {
			return true
		}
	}
	return false
}

func (c *Controller) removeCandidate(idx int) {
	c.candidates = append(c.candidates[:idx], c.candidates[idx+1:]...)
}

// HandleChange applies a document change: removals first, then additions.
// Only annotations of watched types are considered. It reports whether the
// collections changed.
func (c *Controller) HandleChange(ch document.Change) bool {
	changed := false
	for _, a := range ch.Removed {
		if c.Watches(a.Type) && c.Unconfirm(a) {
			changed = true
		}
	}
	for _, a := range ch.Added {
		if c.Watches(a.Type) {
			c.Confirm(a)
			changed = true
		}
	}
	return changed
}

// Confirm handles a confirmation of annotation a. The first candidate that
// overlaps a (of any type) becomes the confirmed entity; every other
// overlapping candidate is dropped.
func (c *Controller) Confirm(a document.Annotation) {
	prevSelected := c.selected
	sel := c.selectedEntity()

	var promoted *types.Entity
	kept := make([]*types.Entity, 0, len(c.candidates))
	for _, cand := range c.candidates {
		if !cand.Span.Intersects(a.Span) {
			kept = append(kept, cand)
			continue
		}
		if promoted == nil {
			promoted = cand
		}
	}
	c.candidates = kept

	key := types.Key{Span: a.Span, Type: a.Type}
	if promoted != nil {
		promoted.Refresh(a.Span, a.Text, nil)
		promoted.Type = a.Type
		promoted.Confirm(a.ID)
	} else if existing, ok := c.confirmed[key]; ok {
		existing.Text = a.Text
		existing.AnnotationID = a.ID
		promoted = existing
	} else {
		promoted = types.NewConfirmed(a.Span, a.Text, a.Type, a.ID)
	}
	c.confirmed[key] = promoted

	c.logger.Debug("entity confirmed", "span", a.Span, "type", a.Type, "annotation_id", a.ID)

	if c.visible {
		c.reanchor(prevSelected)
	} else {
		c.restoreSelection(sel)
	}
}

// Unconfirm removes the confirmed entity with exactly the annotation's key.
func (c *Controller) Unconfirm(a document.Annotation) bool {
	key := types.Key{Span: a.Span, Type: a.Type}
	if _, ok := c.confirmed[key]; !ok {
		return false
	}
	delete(c.confirmed, key)
	c.logger.Debug("confirmation removed", "span", a.Span, "type", a.Type)
	return true
}

// reanchor picks the item at the previously selected index, else the last
// item, else nothing. An empty selection stays empty.
func (c *Controller) reanchor(prev int) {
	n := len(c.candidates)
	switch {
	case prev < 0:
		c.selected = -1
	case prev < n:
		c.selected = prev
	case n > 0:
		c.selected = n - 1
	default:
		c.selected = -1
	}
}

func (c *Controller) selectedEntity() *types.Entity {
	if c.selected < 0 || c.selected >= len(c.candidates) {
		return nil
	}
	return c.candidates[c.selected]
}

// restoreSelection keeps the selection on the same entity after the list
// changed, or clears it when that entity is gone.
func (c *Controller) restoreSelection(sel *types.Entity) {
	c.selected = -1
	if sel == nil {
		return
	}
	for i, cand := range c.candidates {
		if cand == sel {
			c.selected = i
			return
		}
	}
}

// SetVisible records whether the view is shown.
func (c *Controller) SetVisible(visible bool) {
	c.visible = visible
}

// Visible reports whether the view is shown.
func (c *Controller) Visible() bool {
	return c.visible
}

// Select selects the candidate at index i; -1 clears the selection.
func (c *Controller) Select(i int) error {
	if i < -1 || i >= len(c.candidates) {
		return fmt.Errorf("%w: %d of %d", ErrNoSelection, i, len(c.candidates))
	}
	c.selected = i
	return nil
}

// Selection returns the selected candidate and its index, or -1.
func (c *Controller) Selection() (types.Entity, int) {
	if c.selected < 0 || c.selected >= len(c.candidates) {
		return types.Entity{}, -1
	}
	return c.candidates[c.selected].Clone(), c.selected
}

// Candidate returns a copy of the candidate with the given ID.
func (c *Controller) Candidate(id string) (types.Entity, bool) {
	for _, cand := range c.candidates {
		if cand.ID == id {
			return cand.Clone(), true
		}
	}
	return types.Entity{}, false
}

// Elements returns copies of the candidates in display order.
func (c *Controller) Elements() []types.Entity {
	out := make([]types.Entity, len(c.candidates))
	for i, cand := range c.candidates {
		out[i] = cand.Clone()
	}
	return out
}

// Confirmed returns copies of the confirmed entities ordered by span then type.
func (c *Controller) Confirmed() []types.Entity {
	out := make([]types.Entity, 0, len(c.confirmed))
	for _, e := range c.confirmed {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Span.Begin != b.Span.Begin {
			return a.Span.Begin < b.Span.Begin
		}
		if a.Span.End != b.Span.End {
			return a.Span.End < b.Span.End
		}
		return a.Type < b.Type
	})
	return out
}

// Verified returns the confirmed spans of watched types for recall boosting.
func (c *Controller) Verified() []detect.Verified {
	confirmed := c.Confirmed()
	out := make([]detect.Verified, 0, len(confirmed))
	for _, e := range confirmed {
		if c.Watches(e.Type) {
			out = append(out, detect.Verified{Span: e.Span, Type: e.Type})
		}
	}
	return out
}
