package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"fieldveil/utils"
)

// ErrInvalidSpan is returned when a candidate's offsets do not describe a
// real region of the document it claims to come from.
var ErrInvalidSpan = errors.New("invalid span bounds")

// NormalizedSpan is a validated, position-resolved sensitive span. Offsets
// are byte positions into the document; the half-open range [Start, End)
// always satisfies 0 <= Start < End <= len(text) for the text it was
// normalized against.
type NormalizedSpan struct {
	Start int
	End   int
	Label string
	Value string

	// Line-relative position, for rendering and review. LineNumber is
	// 1-based. Left and Right are byte columns relative to the start of
	// the line holding Start; Right is not clamped, so a span crossing a
	// newline reports Right past the end of its first line.
	LineNumber int
	Left       int
	Right      int

	Source utils.Source
}

// Width returns the span's length in bytes.
func (s NormalizedSpan) Width() int { return s.End - s.Start }

// Overlaps reports whether two half-open spans share at least one byte.
func (s NormalizedSpan) Overlaps(o NormalizedSpan) bool {
	return s.Start < o.End && o.Start < s.End
}

// CanonicalLabel converts a producer-supplied label to the canonical form
// used everywhere downstream: surrounding whitespace trimmed, interior
// whitespace and hyphens replaced with underscores, upper-cased. Producers
// disagree about casing ("ssn", "Ssn", "SSN-Number"); reconciliation only
// works if they collapse to one spelling.
func CanonicalLabel(label string) string {
	trimmed := strings.TrimSpace(label)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return '_'
		}
		return unicode.ToUpper(r)
	}, trimmed)
}

// Normalize validates a raw candidate against the document and resolves its
// label and line position. Candidates whose offsets fall outside the
// document, or whose range is empty or inverted, are rejected with
// ErrInvalidSpan; callers count rejections rather than aborting.
//
// The candidate's Value is kept when the producer supplied one (fixed-width
// extraction reports the trimmed cell, which is more useful than the raw
// slice); otherwise the value is cut from the document.
func Normalize(text string, raw utils.CandidateSpan) (NormalizedSpan, error) {
	if raw.Start < 0 || raw.Start >= raw.End || raw.End > len(text) {
		return NormalizedSpan{}, fmt.Errorf("%w: [%d, %d) in a %d byte document",
			ErrInvalidSpan, raw.Start, raw.End, len(text))
	}

	value := raw.Value
	if value == "" {
		value = text[raw.Start:raw.End]
	}

	line, left, right := linePosition(text, raw.Start, raw.End)

	return NormalizedSpan{
		Start:      raw.Start,
		End:        raw.End,
		Label:      CanonicalLabel(raw.Label),
		Value:      value,
		LineNumber: line,
		Left:       left,
		Right:      right,
		Source:     raw.Source,
	}, nil
}

// linePosition walks line boundaries to find the 1-based line containing
// start, plus the byte columns of start and end relative to that line.
// Every line contributes len(line)+1 bytes (the trailing newline); the last
// line may be shorter. Callers pass bounds-checked offsets, so the walk
// always terminates inside the document.
func linePosition(text string, start, end int) (line, left, right int) {
	offset := 0
	for i, ln := range strings.Split(text, "\n") {
		lineLen := len(ln) + 1
		if start < offset+lineLen {
			return i + 1, start - offset, end - offset
		}
		offset += lineLen
	}
	return -1, -1, -1
}
