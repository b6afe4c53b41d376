package core

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"fieldveil/utils"
)

// PatternInfo stores one compiled pattern and its provenance
type PatternInfo struct {
	Regex       *regexp.Regexp
	Description string
}

// Built-in identifier patterns for financial report text. Labels are
// canonical; operator libraries merge on top of these and may add more
// patterns under the same labels.
var builtinPatterns = map[string][]PatternInfo{
	"SSN_NUMBER": {
		{
			Regex:       regexp.MustCompile(`\b\d{3}[ -]?\d{2}[ -]?\d{4}\b`),
			Description: "US Social Security number, with or without separators",
		},
	},
	"PHONE_NUMBER": {
		{
			Regex:       regexp.MustCompile(`\b\d{3}[-. ]\d{3}[-. ]\d{4}\b`),
			Description: "US phone number with separators",
		},
		{
			Regex:       regexp.MustCompile(`\(\d{3}\) ?\d{3}[-. ]\d{4}\b`),
			Description: "US phone number with parenthesized area code",
		},
	},
	"EMAIL": {
		{
			Regex:       regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`),
			Description: "Email address",
		},
	},
	"ACCOUNT_NUMBER": {
		{
			Regex:       regexp.MustCompile(`\b\d{10,12}\b`),
			Description: "Bare account number, 10 to 12 digits",
		},
	},
	"ROUTING_NUMBER": {
		{
			Regex:       regexp.MustCompile(`\b(?:0\d|1[0-2]|2[1-9]|3[0-2])\d{7}\b`),
			Description: "ABA routing number, constrained to valid prefix ranges",
		},
	},
	"MONEY": {
		{
			Regex:       regexp.MustCompile(`\$ ?\d[\d,]*(?:\.\d{2})?`),
			Description: "Dollar amount with currency sign",
		},
		{
			Regex:       regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+\.\d{2}\b`),
			Description: "Comma-grouped amount without currency sign",
		},
	},
	"DATE": {
		{
			Regex:       regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
			Description: "Slash-separated date",
		},
		{
			Regex:       regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
			Description: "ISO date",
		},
	},
}

// patternLibraryFile is the YAML shape of an operator pattern library:
// a map of label to regex list
type patternLibraryFile struct {
	Metadata ConfigMetadata      `yaml:"metadata"`
	Fields   map[string][]string `yaml:"fields"`
}

// PatternSet scans documents with labeled regular expressions. It starts
// from the built-in table; operator-authored YAML libraries merge on top.
// Patterns that fail to compile are skipped and counted, never fatal, so a
// bad line in a library cannot take detection down with it.
type PatternSet struct {
	patterns map[string][]PatternInfo

	// Skipped counts library entries dropped because their regex did not
	// compile or their label was blank
	Skipped int

	// Hash of the last merged library file, for integrity echo
	Hash string
}

// NewPatternSet creates a pattern set seeded with the built-in patterns
func NewPatternSet() *PatternSet {
	patterns := make(map[string][]PatternInfo, len(builtinPatterns))
	for label, infos := range builtinPatterns {
		patterns[label] = append([]PatternInfo(nil), infos...)
	}
	return &PatternSet{patterns: patterns}
}

// EmptyPatternSet creates a pattern set with no built-ins, for callers that
// want the operator library to be the only source of patterns
func EmptyPatternSet() *PatternSet {
	return &PatternSet{patterns: make(map[string][]PatternInfo)}
}

// LoadPatternLibrary creates a pattern set from the built-ins plus one
// operator library file
func LoadPatternLibrary(path string) (*PatternSet, error) {
	ps := NewPatternSet()
	if err := ps.MergeLibrary(path); err != nil {
		return nil, err
	}
	return ps, nil
}

// MergeLibrary reads a YAML pattern library and adds its patterns to the
// set. Entries that fail to compile are skipped and counted.
func (ps *PatternSet) MergeLibrary(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read pattern library: %w", err)
	}

	var file patternLibraryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse pattern library: %w", err)
	}

	for label, exprs := range file.Fields {
		for _, expr := range exprs {
			if err := ps.AddPattern(label, expr, fmt.Sprintf("library pattern for %s", CanonicalLabel(label))); err != nil {
				ps.Skipped++
			}
		}
	}

	ps.Hash = calculateConfigHash(data)
	return nil
}

// AddPattern compiles and registers one pattern under a canonical label
func (ps *PatternSet) AddPattern(label, pattern, description string) error {
	canon := CanonicalLabel(label)
	if canon == "" {
		return fmt.Errorf("pattern has no label")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern for %s: %w", canon, err)
	}
	ps.patterns[canon] = append(ps.patterns[canon], PatternInfo{
		Regex:       re,
		Description: description,
	})
	return nil
}

// Labels returns the registered labels in sorted order
func (ps *PatternSet) Labels() []string {
	labels := make([]string, 0, len(ps.patterns))
	for label := range ps.patterns {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Scan runs every registered pattern over the document and emits one
// candidate per match. Labels are scanned in sorted order so output is
// deterministic. Matches spanning a line break are dropped; report fields
// never cross lines, so such a match is always a pattern misfire.
func (ps *PatternSet) Scan(text string) []utils.CandidateSpan {
	var spans []utils.CandidateSpan
	for _, label := range ps.Labels() {
		for _, info := range ps.patterns[label] {
			for _, loc := range info.Regex.FindAllStringIndex(text, -1) {
				value := text[loc[0]:loc[1]]
				if strings.ContainsRune(value, '\n') {
					continue
				}
				spans = append(spans, utils.CandidateSpan{
					Start:  loc[0],
					End:    loc[1],
					Value:  value,
					Label:  label,
					Source: utils.SourcePattern,
				})
			}
		}
	}
	return spans
}

// Producer adapts the pattern set to the pipeline producer shape
func (ps *PatternSet) Producer() ProducerFunc {
	return func(text string) ([]utils.CandidateSpan, error) {
		return ps.Scan(text), nil
	}
}
