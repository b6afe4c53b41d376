package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"fieldveil/utils"
)

// ErrUnknownTarget means a review command referenced a span id that is not
// part of the session
var ErrUnknownTarget = errors.New("review target not found")

// ErrBadCommand means a review command carried an unusable payload (blank
// label, out-of-bounds offsets, unrecognized action)
var ErrBadCommand = errors.New("review command rejected")

// ReviewAction is the operation a review command performs on one span
type ReviewAction string

const (
	// ActionConfirm accepts the span as proposed
	ActionConfirm ReviewAction = "confirm"

	// ActionExclude drops the span from the final set
	ActionExclude ReviewAction = "exclude"

	// ActionRelabel keeps the span's offsets but assigns a new label
	ActionRelabel ReviewAction = "relabel"

	// ActionEdit replaces the span's offsets; value and line position are
	// recomputed from the document
	ActionEdit ReviewAction = "edit"
)

// SpanState tracks where a span is in its review lifecycle
type SpanState string

const (
	// StateProposed means no reviewer has touched the span yet
	StateProposed SpanState = "proposed"

	// StateConfirmed means a reviewer accepted the span as-is
	StateConfirmed SpanState = "confirmed"

	// StateExcluded means a reviewer dropped the span
	StateExcluded SpanState = "excluded"

	// StateRelabeled means a reviewer changed the span's label
	StateRelabeled SpanState = "relabeled"

	// StateEdited means a reviewer changed the span's offsets
	StateEdited SpanState = "edited"
)

// ReviewCommand is one reviewer decision. Commands arrive as a queue from
// whatever front end collected them (a command file, an editor plugin, a
// web form); the session itself never reads input.
type ReviewCommand struct {
	Action ReviewAction `json:"action"`
	Target uuid.UUID    `json:"target"`

	// Label carries the new label for relabel commands
	Label string `json:"label,omitempty"`

	// Start and End carry the new offsets for edit commands
	Start int `json:"start,omitempty"`
	End   int `json:"end,omitempty"`
}

// ReviewItem is one span under review, addressable by its session-scoped id
type ReviewItem struct {
	ID    uuid.UUID
	State SpanState
	Span  NormalizedSpan
}

// ReviewOutcome summarizes what a command queue did to the session
type ReviewOutcome struct {
	Confirmed int
	Excluded  int
	Relabeled int
	Edited    int

	// Rejected counts commands that could not be applied; the targeted
	// span, if any, keeps its previous state
	Rejected int
}

// ReviewSession holds one document's reconciled spans while a reviewer
// works through them. Spans keep their reconciled order. Repeated commands
// against the same span are allowed and the last one wins.
type ReviewSession struct {
	text  string
	items []ReviewItem
	index map[uuid.UUID]int
}

// NewReviewSession starts a review over a reconciled span set, assigning
// each span a fresh id
func NewReviewSession(text string, set ReconcileResult) *ReviewSession {
	s := &ReviewSession{
		text:  text,
		items: make([]ReviewItem, 0, len(set.Spans)),
		index: make(map[uuid.UUID]int, len(set.Spans)),
	}
	for _, span := range set.Spans {
		id := uuid.New()
		s.index[id] = len(s.items)
		s.items = append(s.items, ReviewItem{
			ID:    id,
			State: StateProposed,
			Span:  span,
		})
	}
	return s
}

// Items returns the spans under review in presentation order
func (s *ReviewSession) Items() []ReviewItem {
	items := make([]ReviewItem, len(s.items))
	copy(items, s.items)
	return items
}

// Apply executes one command against the session. Failed commands leave the
// targeted span untouched.
func (s *ReviewSession) Apply(cmd ReviewCommand) error {
	idx, ok := s.index[cmd.Target]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, cmd.Target)
	}
	item := &s.items[idx]

	switch cmd.Action {
	case ActionConfirm:
		item.State = StateConfirmed

	case ActionExclude:
		item.State = StateExcluded

	case ActionRelabel:
		label := CanonicalLabel(cmd.Label)
		if label == "" {
			return fmt.Errorf("%w: relabel with a blank label", ErrBadCommand)
		}
		item.Span.Label = label
		item.State = StateRelabeled

	case ActionEdit:
		edited, err := Normalize(s.text, utils.CandidateSpan{
			Start:  cmd.Start,
			End:    cmd.End,
			Label:  item.Span.Label,
			Source: item.Span.Source,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadCommand, err)
		}
		item.Span = edited
		item.State = StateEdited

	default:
		return fmt.Errorf("%w: unknown action %q", ErrBadCommand, cmd.Action)
	}
	return nil
}

// ApplyAll executes a command queue in order, counting what happened.
// Failures are counted and skipped; a malformed command never aborts the
// queue.
func (s *ReviewSession) ApplyAll(cmds []ReviewCommand) ReviewOutcome {
	var outcome ReviewOutcome
	for _, cmd := range cmds {
		if err := s.Apply(cmd); err != nil {
			outcome.Rejected++
			continue
		}
		switch cmd.Action {
		case ActionConfirm:
			outcome.Confirmed++
		case ActionExclude:
			outcome.Excluded++
		case ActionRelabel:
			outcome.Relabeled++
		case ActionEdit:
			outcome.Edited++
		}
	}
	return outcome
}

// Resolve produces the post-review span set: excluded spans drop out and
// the survivors go through reconciliation again, because edits and relabels
// can introduce fresh same-label overlaps.
func (s *ReviewSession) Resolve() ReconcileResult {
	survivors := make([]utils.CandidateSpan, 0, len(s.items))
	for _, item := range s.items {
		if item.State == StateExcluded {
			continue
		}
		survivors = append(survivors, utils.CandidateSpan{
			Start:  item.Span.Start,
			End:    item.Span.End,
			Value:  item.Span.Value,
			Label:  item.Span.Label,
			Source: item.Span.Source,
		})
	}
	return Reconcile(s.text, survivors)
}
