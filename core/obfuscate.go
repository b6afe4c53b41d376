package core

import (
	"sort"
	"strings"

	"fieldveil/synth"
)

// defaultPreserveLast is how many trailing digits pseudonymized identifiers
// keep by default, enough for support staff to cross-check a record without
// seeing the full number
const defaultPreserveLast = 4

// labelAliases folds the label spellings different producers emit onto the
// canonical routing labels
var labelAliases = map[string]string{
	"SSN":                    "SSN_NUMBER",
	"SOCIAL_SECURITY_NUMBER": "SSN_NUMBER",
	"ACCT":                   "ACCOUNT_NUMBER",
	"ACCOUNT":                "ACCOUNT_NUMBER",
	"LOAN_NUMBER":            "ACCOUNT_NUMBER",
	"PHONE":                  "PHONE_NUMBER",
	"CHECK_AMOUNT":           "MONEY",
	"AMOUNT":                 "MONEY",
	"CITY":                   "GPE",
	"NAME":                   "PERSON",
	"CUSTOMER_NAME":          "PERSON",
	"BORROWER":               "PERSON",
	"COMPANY":                "ORG",
	"STREET":                 "ADDRESS",
	"ADDRESS_NUMBER":         "ADDRESS",
}

// ObfuscatorConfig tunes how spans are rewritten
type ObfuscatorConfig struct {
	// PreserveLast is how many trailing digits pseudonymized identifiers
	// keep. Zero selects the default of 4; negative preserves nothing.
	PreserveLast int

	// InlineSweep additionally pseudonymizes SSN-shaped numbers found in
	// the text between spans, catching identifiers every producer missed
	InlineSweep bool
}

// ObfuscateStats reports what happened to each span during rewriting
type ObfuscateStats struct {
	// Replaced counts spans rewritten with a new value
	Replaced int

	// Passed counts spans whose label has no routing rule; their original
	// value was written back unchanged
	Passed int

	// Conflicts counts spans skipped because they overlap a span that was
	// already applied. Reconciliation keeps cross-label overlaps, so the
	// earliest-starting (widest on ties) claim wins here.
	Conflicts int

	// Invalid counts spans whose offsets did not fit the document
	Invalid int
}

// Obfuscator rewrites a document's sensitive spans. Identifier-shaped
// fields go through the keyed pseudonymizer, so equal identifiers rewrite
// equally everywhere; everything else is synthesized. Build one per
// document: the synthesizer's name cache must not leak replacements from
// one customer's document into another's.
type Obfuscator struct {
	pseudo       *Pseudonymizer
	syn          *synth.Synthesizer
	preserveLast int
	inlineSweep  bool
}

// NewObfuscator assembles a per-document obfuscator from a pseudonymizer
// and a synthesizer
func NewObfuscator(pseudo *Pseudonymizer, syn *synth.Synthesizer, cfg ObfuscatorConfig) *Obfuscator {
	preserve := cfg.PreserveLast
	if preserve == 0 {
		preserve = defaultPreserveLast
	}
	if preserve < 0 {
		preserve = 0
	}
	return &Obfuscator{
		pseudo:       pseudo,
		syn:          syn,
		preserveLast: preserve,
		inlineSweep:  cfg.InlineSweep,
	}
}

// RouteLabel resolves a canonical label through the alias table
func RouteLabel(label string) string {
	if alias, ok := labelAliases[label]; ok {
		return alias
	}
	return label
}

// Replacement produces the rewritten value for one span. The second return
// is false when the label has no routing rule and the value passes through
// unchanged.
func (o *Obfuscator) Replacement(span NormalizedSpan) (string, bool) {
	switch RouteLabel(span.Label) {
	case "ACCOUNT_NUMBER", "NOTE_NUMBER", "CUSTOMER_ID", "MEMBER_ID",
		"SSN_NUMBER", "ROUTING_NUMBER", "PHONE_NUMBER":
		return o.pseudo.Pseudonymize(span.Value, o.preserveLast), true
	case "PERSON":
		return o.syn.Name(span.Value), true
	case "ORG":
		return o.syn.Company(span.Value), true
	case "OFFICER":
		return o.syn.Officer(span.Value), true
	case "BANK":
		return o.syn.Letters(span.Value), true
	case "ADDRESS":
		return o.syn.Address(span.Value), true
	case "GPE":
		return o.syn.City(span.Value), true
	case "DATE":
		return o.syn.Date(span.Value), true
	case "MONEY":
		return o.syn.Amount(span.Value), true
	case "RATE":
		return o.syn.Rate(span.Value), true
	case "EMAIL":
		return o.syn.Email(span.Value), true
	case "REFERENCE":
		return o.syn.Reference(span.Value), true
	default:
		return span.Value, false
	}
}

// ObfuscateText splices replacements for every span into the document.
// Spans are applied in start order; a span overlapping an already-applied
// one is skipped and counted, never silently merged. With InlineSweep on,
// the text between spans is swept for SSN-shaped numbers as well.
func (o *Obfuscator) ObfuscateText(text string, spans []NormalizedSpan) (string, ObfuscateStats) {
	var stats ObfuscateStats

	ordered := make([]NormalizedSpan, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start != ordered[j].Start {
			return ordered[i].Start < ordered[j].Start
		}
		return ordered[i].End > ordered[j].End
	})

	var builder strings.Builder
	lastIndex := 0

	for _, span := range ordered {
		if span.Start < 0 || span.End > len(text) || span.Start >= span.End {
			stats.Invalid++
			continue
		}
		if span.Start < lastIndex {
			stats.Conflicts++
			continue
		}

		if span.Start > lastIndex {
			builder.WriteString(o.gap(text[lastIndex:span.Start]))
		}

		replacement, changed := o.Replacement(span)
		builder.WriteString(replacement)
		lastIndex = span.End

		if changed {
			stats.Replaced++
		} else {
			stats.Passed++
		}
	}

	if lastIndex < len(text) {
		builder.WriteString(o.gap(text[lastIndex:]))
	}

	return builder.String(), stats
}

// gap processes the text between spans
func (o *Obfuscator) gap(segment string) string {
	if !o.inlineSweep {
		return segment
	}
	return o.pseudo.PseudonymizeInline(segment, o.preserveLast)
}
