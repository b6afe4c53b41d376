package utils

// Source identifies which producer emitted a candidate span. Producers are
// independent and may disagree about the same region of text; the source is
// used to break ties when overlapping candidates are reconciled.
type Source string

const (
	// SourceFixedWidth marks spans cut from configured column positions.
	SourceFixedWidth Source = "fixed_width"
	// SourcePattern marks spans found by regular-expression scanning.
	SourcePattern Source = "pattern"
	// SourceRecognizer marks spans returned by an external entity recognizer.
	SourceRecognizer Source = "recognizer"
)

// Priority ranks sources for overlap tie-breaking. Positional extraction is
// the most trustworthy (an operator measured those columns), patterns are
// next, and statistical recognizers rank last. Unknown sources rank below
// all known ones.
func (s Source) Priority() int {
	switch s {
	case SourceFixedWidth:
		return 3
	case SourcePattern:
		return 2
	case SourceRecognizer:
		return 1
	default:
		return 0
	}
}

// CandidateSpan is the raw claim a producer makes about a document: the
// half-open byte range [Start, End) holds a sensitive value of the given
// label. Candidates are untrusted input; offsets may be stale or malformed
// and labels arrive in whatever casing the producer used. Normalization and
// reconciliation happen downstream.
type CandidateSpan struct {
	// Match location information
	Start int
	End   int
	Value string

	// Classification information
	Label  string
	Source Source
}
