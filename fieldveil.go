// Package fieldveil locates sensitive fields in fixed-width financial
// reports and replaces them with structure-preserving substitutes. Span
// candidates come from pluggable producers (column layouts, pattern
// libraries, an external recognizer), get reconciled into a single span
// set, optionally pass human review, and are then rewritten in place.
package fieldveil

import (
	"github.com/google/uuid"

	"fieldveil/core"
	"fieldveil/recognizer"
	"fieldveil/synth"
	"fieldveil/utils"
)

// Producer is one source of candidate spans. Producers run in order and
// all of them always run; a failing producer is reported, never silently
// substituted by another.
type Producer struct {
	Name    string
	Extract core.ProducerFunc
}

// ProducerReport says what one producer contributed to a detection pass
type ProducerReport struct {
	Name  string
	Count int
	Err   error
}

// Options configures a Pipeline
type Options struct {
	// Fixed-width column extractor, optional
	Columns *core.FixedWidth

	// Pattern library scanner, optional
	Patterns *core.PatternSet

	// External recognizer client, optional
	Recognizer *recognizer.Client

	// Extra producers appended after the built-in ones
	Producers []Producer

	// Key material for identifier pseudonymization. Resolved on first
	// obfuscation, so detect-only pipelines run without a key.
	Key core.KeyConfig

	// Digits kept at the tail of pseudonymized identifiers; 0 means the
	// default of 4, negative keeps none
	PreserveLast int

	// Re-check gap text for SSN-shaped values after field replacement
	InlineSweep bool

	// Synthesizer seed; rerunning a document with the same seed and key
	// reproduces the output byte for byte
	SynthSeed int64

	// Reviewer identity recorded on review audit events
	Reviewer string

	// Optional audit trail; nil disables auditing
	Audit *core.AuditLogger
}

// Pipeline runs detection, review and obfuscation over report text. It is
// assembled once, carries no global state, and is safe for concurrent use:
// every obfuscation pass gets its own synthesizer, so fake values never
// leak between documents.
type Pipeline struct {
	producers []Producer
	opts      Options
}

// New assembles a pipeline. Built-in producers run fixed-width first, then
// patterns, then the recognizer, then any extras; the order matches their
// reconciliation priority.
func New(opts Options) *Pipeline {
	producers := make([]Producer, 0, 3+len(opts.Producers))
	if opts.Columns != nil {
		producers = append(producers, Producer{Name: "fixed_width", Extract: opts.Columns.Producer()})
	}
	if opts.Patterns != nil {
		producers = append(producers, Producer{Name: "pattern", Extract: opts.Patterns.Producer()})
	}
	if opts.Recognizer != nil {
		producers = append(producers, Producer{Name: "recognizer", Extract: opts.Recognizer.Producer()})
	}
	producers = append(producers, opts.Producers...)

	return &Pipeline{
		producers: producers,
		opts:      opts,
	}
}

// Detect runs every producer over text and reconciles their candidates.
// A producer error empties that producer's contribution and is surfaced in
// its report; the other producers still count.
func (p *Pipeline) Detect(text string) (core.ReconcileResult, []ProducerReport) {
	batches := make([][]utils.CandidateSpan, len(p.producers))
	reports := make([]ProducerReport, len(p.producers))

	for i, producer := range p.producers {
		candidates, err := producer.Extract(text)
		if err != nil {
			candidates = nil
		}
		batches[i] = candidates
		reports[i] = ProducerReport{Name: producer.Name, Count: len(candidates), Err: err}
	}

	return core.Reconcile(text, batches...), reports
}

// Review applies a command queue to a reconciled span set. The returned
// session exposes the per-span end states; call Resolve on it for the
// final set.
func (p *Pipeline) Review(text string, set core.ReconcileResult, cmds []core.ReviewCommand) (*core.ReviewSession, core.ReviewOutcome) {
	session := core.NewReviewSession(text, set)
	outcome := session.ApplyAll(cmds)
	return session, outcome
}

// Obfuscate rewrites the spans in text with structure-preserving
// substitutes. The pseudonymization key is resolved here; a missing key is
// a hard error, never a silent pass-through.
func (p *Pipeline) Obfuscate(text string, set core.ReconcileResult) (string, core.ObfuscateStats, error) {
	pseudo, err := core.NewPseudonymizer(p.opts.Key)
	if err != nil {
		return "", core.ObfuscateStats{}, err
	}

	obf := core.NewObfuscator(pseudo, synth.New(p.opts.SynthSeed), core.ObfuscatorConfig{
		PreserveLast: p.opts.PreserveLast,
		InlineSweep:  p.opts.InlineSweep,
	})
	output, stats := obf.ObfuscateText(text, set.Spans)
	return output, stats, nil
}

// ReviewFunc turns the detected spans into review commands. It sees the
// session items, ids included, so command sources that address spans some
// other way (by listing position, by offsets) can resolve their targets.
type ReviewFunc func(items []core.ReviewItem) []core.ReviewCommand

// ProcessResult carries everything one end-to-end pass produced
type ProcessResult struct {
	// Obfuscated document text
	Output string

	// What each producer contributed
	Reports []ProducerReport

	// Aggregate effect of the review command queue
	Outcome core.ReviewOutcome

	// Final reviewed span set that was applied
	Spans []core.NormalizedSpan

	// Review items with their end states, for feedback export
	Items []core.ReviewItem

	// Replacement accounting
	Stats core.ObfuscateStats
}

// Process runs the full pass over one document: detect, review, obfuscate.
// review may be nil to apply the detected spans as-is. document is an
// identifier for audit entries only; its content never reaches the audit
// trail.
func (p *Pipeline) Process(document, text string, review ReviewFunc) (ProcessResult, error) {
	requestID := uuid.NewString()

	set, reports := p.Detect(text)
	if p.opts.Audit != nil {
		for _, report := range reports {
			if report.Err != nil {
				p.opts.Audit.LogProducerFailure(requestID, document, report.Name, report.Err)
			}
		}
	}

	session := core.NewReviewSession(text, set)
	var outcome core.ReviewOutcome
	if review != nil {
		cmds := review(session.Items())
		outcome = session.ApplyAll(cmds)
		if p.opts.Audit != nil && len(cmds) > 0 {
			p.opts.Audit.LogReviewApplied(requestID, document, p.opts.Reviewer, outcome)
		}
	}

	final := session.Resolve()

	output, stats, err := p.Obfuscate(text, final)
	if err != nil {
		return ProcessResult{}, err
	}

	if p.opts.Audit != nil {
		counts := map[string]int{
			"detected":  len(set.Spans),
			"rejected":  set.Rejected,
			"dropped":   set.Dropped,
			"spans":     len(final.Spans),
			"replaced":  stats.Replaced,
			"passed":    stats.Passed,
			"conflicts": stats.Conflicts,
			"invalid":   stats.Invalid,
		}
		for _, span := range final.Spans {
			counts["label_"+span.Label]++
		}
		p.opts.Audit.LogDocumentProcessed(requestID, document, counts)
	}

	return ProcessResult{
		Output:  output,
		Reports: reports,
		Outcome: outcome,
		Spans:   final.Spans,
		Items:   session.Items(),
		Stats:   stats,
	}, nil
}

// Run processes a single document end to end with a one-off pipeline. It
// is a convenience for scripts; longer-lived callers should construct a
// Pipeline once and reuse it.
func Run(document, text string, opts Options) (ProcessResult, error) {
	return New(opts).Process(document, text, nil)
}
