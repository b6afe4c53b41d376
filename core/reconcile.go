package core

import (
	"sort"

	"fieldveil/utils"
)

// ProducerFunc is the shape every span source shares: given a document,
// return candidate spans. Fixed-width extraction, pattern scanning and the
// external recognizer client all adapt to this, so the pipeline can treat
// them as an ordered, interchangeable list.
type ProducerFunc func(text string) ([]utils.CandidateSpan, error)

// ReconcileResult is the merged view of every producer's claims about one
// document. Spans is sorted by Start ascending (ties: wider first, then
// label) and contains no exact duplicates and no same-label overlaps.
// Rejected counts candidates whose offsets failed validation; Dropped counts
// duplicates and overlap losers. Treat the result as read-only.
type ReconcileResult struct {
	Spans    []NormalizedSpan
	Rejected int
	Dropped  int
}

// Reconcile merges candidate batches from independent producers into one
// consistent span set. Each candidate is normalized first (invalid offsets
// are counted, never fatal). Exact (start, end, label) duplicates collapse
// to the first seen. When two spans of the same label overlap, the wider
// one wins; ties prefer the earlier start, then the more trustworthy
// source. Spans with different labels are left alone even when they
// overlap, since producers legitimately disagree about what a region is;
// that conflict is resolved at application time, not here.
func Reconcile(text string, batches ...[]utils.CandidateSpan) ReconcileResult {
	var result ReconcileResult

	total := 0
	for _, batch := range batches {
		total += len(batch)
	}
	normalized := make([]NormalizedSpan, 0, total)
	for _, batch := range batches {
		for _, raw := range batch {
			span, err := Normalize(text, raw)
			if err != nil {
				result.Rejected++
				continue
			}
			normalized = append(normalized, span)
		}
	}

	// Widest-first within a start position, so the survivor of an overlap
	// cluster is already in place when narrower claims arrive.
	sort.SliceStable(normalized, func(i, j int) bool {
		if normalized[i].Start != normalized[j].Start {
			return normalized[i].Start < normalized[j].Start
		}
		return normalized[i].End > normalized[j].End
	})

	accepted := make([]NormalizedSpan, 0, len(normalized))
	for _, span := range normalized {
		clash, dup := findClash(accepted, span)
		switch {
		case dup:
			result.Dropped++
		case clash >= 0:
			if preferFirst(span, accepted[clash]) {
				accepted[clash] = span
			}
			result.Dropped++
		default:
			accepted = append(accepted, span)
		}
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		a, b := accepted[i], accepted[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End > b.End
		}
		return a.Label < b.Label
	})
	result.Spans = accepted
	return result
}

// findClash locates the accepted span the candidate collides with: dup is
// true for an exact (start, end, label) repeat, otherwise idx is the index
// of a same-label overlap or -1 when the candidate is clean. Accepted
// same-label spans never overlap each other, so at most one index can match.
func findClash(accepted []NormalizedSpan, span NormalizedSpan) (idx int, dup bool) {
	for i, kept := range accepted {
		if kept.Start == span.Start && kept.End == span.End && kept.Label == span.Label {
			return -1, true
		}
		if kept.Label == span.Label && kept.Overlaps(span) {
			return i, false
		}
	}
	return -1, false
}

// preferFirst decides an overlap between two same-label spans: wider wins,
// then earlier start, then higher source priority.
func preferFirst(a, b NormalizedSpan) bool {
	if a.Width() != b.Width() {
		return a.Width() > b.Width()
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.Source.Priority() > b.Source.Priority()
}
