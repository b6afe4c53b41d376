package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"fieldveil/utils"
)

// ColumnField locates one field inside a column group
type ColumnField struct {
	// Canonical label emitted for values cut from this field
	Label string `yaml:"label"`

	// Group this field belongs to; fields in one group repeat together
	Group int `yaml:"group"`

	// Line offset within the group's row block (0 = the anchor line)
	Line int `yaml:"line"`

	// Left byte column, inclusive
	Left int `yaml:"left"`

	// Right byte column, exclusive
	Right int `yaml:"right"`
}

// ConfigMetadata contains information about an operator-authored config
// file (column layouts, pattern libraries)
type ConfigMetadata struct {
	// Version of the layout
	Version string `yaml:"version,omitempty"`

	// When the layout was created
	CreatedAt time.Time `yaml:"created_at,omitempty"`

	// Description of the report this layout decodes
	Description string `yaml:"description,omitempty"`

	// Author of the layout
	Author string `yaml:"author,omitempty"`

	// Hash of the layout content for integrity verification
	Hash string `yaml:"hash,omitempty"`
}

// ColumnGroupConfig describes the repeating column layout of one report
// family: how many header and footer lines to ignore, and where each
// labeled field sits. Layouts are operator-authored YAML, measured by hand
// against real report samples, so loading is deliberately forgiving about
// individual field entries.
type ColumnGroupConfig struct {
	// Metadata about the layout
	Metadata ConfigMetadata `yaml:"metadata,omitempty"`

	// Name of the report family this layout applies to
	ReportName string `yaml:"report_name"`

	// Lines ignored at the top of the document
	HeaderSkip int `yaml:"header_skip"`

	// Lines ignored at the bottom of the document
	FooterSkip int `yaml:"footer_skip"`

	// Field positions
	Fields []ColumnField `yaml:"fields"`

	// Count of field entries dropped during load because they were
	// malformed. Populated by LoadColumnConfig, never serialized.
	SkippedFields int `yaml:"-"`
}

// columnConfigFile mirrors ColumnGroupConfig but defers field decoding so a
// single malformed entry can be skipped instead of failing the whole file.
type columnConfigFile struct {
	Metadata   ConfigMetadata `yaml:"metadata"`
	ReportName string         `yaml:"report_name"`
	HeaderSkip int            `yaml:"header_skip"`
	FooterSkip int            `yaml:"footer_skip"`
	Fields     []yaml.Node    `yaml:"fields"`
}

// LoadColumnConfig reads a YAML column-group layout. Malformed field
// entries (wrong types, missing label, inverted columns) are skipped and
// counted in SkippedFields rather than failing the load; structural
// problems with the file itself are errors.
func LoadColumnConfig(path string) (*ColumnGroupConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read column layout: %w", err)
	}

	var file columnConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse column layout: %w", err)
	}

	cfg := &ColumnGroupConfig{
		Metadata:   file.Metadata,
		ReportName: file.ReportName,
		HeaderSkip: file.HeaderSkip,
		FooterSkip: file.FooterSkip,
	}

	if cfg.HeaderSkip < 0 || cfg.FooterSkip < 0 {
		return nil, fmt.Errorf("invalid column layout: negative header_skip or footer_skip")
	}

	for _, node := range file.Fields {
		var field ColumnField
		if err := node.Decode(&field); err != nil {
			cfg.SkippedFields++
			continue
		}
		if err := validateColumnField(field); err != nil {
			cfg.SkippedFields++
			continue
		}
		cfg.Fields = append(cfg.Fields, field)
	}

	// Generate hash for integrity checking
	cfg.Metadata.Hash = calculateConfigHash(data)

	return cfg, nil
}

// SaveColumnConfig serializes a layout to YAML with a refreshed content hash
func SaveColumnConfig(cfg *ColumnGroupConfig, path string) error {
	cfg.Metadata.Hash = ""

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize column layout: %w", err)
	}

	cfg.Metadata.Hash = calculateConfigHash(data)

	data, err = yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to re-serialize column layout with hash: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write column layout: %w", err)
	}

	return nil
}

// validateColumnField checks the parts of a field spec that would make
// extraction meaningless
func validateColumnField(field ColumnField) error {
	if strings.TrimSpace(field.Label) == "" {
		return fmt.Errorf("field has no label")
	}
	if field.Line < 0 {
		return fmt.Errorf("field %q has a negative line offset", field.Label)
	}
	if field.Left < 0 {
		return fmt.Errorf("field %q has a negative left column", field.Label)
	}
	if field.Right <= field.Left {
		return fmt.Errorf("field %q has right column %d <= left column %d",
			field.Label, field.Right, field.Left)
	}
	return nil
}

// calculateConfigHash generates a hash of config content for integrity checking
func calculateConfigHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// FixedWidth cuts labeled values out of reports whose fields live at known
// column positions. Statistical recognizers are unreliable on columnar
// text, so measured positions take priority over every other producer.
type FixedWidth struct {
	cfg ColumnGroupConfig
}

// NewFixedWidth creates an extractor for one column-group layout
func NewFixedWidth(cfg ColumnGroupConfig) *FixedWidth {
	return &FixedWidth{cfg: cfg}
}

// Extract walks the document window and cuts one candidate span per
// populated field. For each group the anchor row is the group's smallest
// line offset; the row block then slides down one physical line at a time
// until it produces no values, which ends that group. An anchor row that
// yields nothing ends the group immediately with zero spans. Field lines
// that fall outside the window are skipped without ending the group.
//
// Offsets are computed from prefix sums of line lengths, so the cost is one
// pass over the document plus one slice per field per row.
func (f *FixedWidth) Extract(text string) []utils.CandidateSpan {
	lines := strings.Split(text, "\n")

	offsets := make([]int, len(lines))
	acc := 0
	for i, line := range lines {
		offsets[i] = acc
		acc += len(line) + 1
	}

	winFirst := f.cfg.HeaderSkip
	winLast := len(lines) - f.cfg.FooterSkip
	if winFirst < 0 {
		winFirst = 0
	}
	if winLast > len(lines) {
		winLast = len(lines)
	}
	if winFirst >= winLast {
		return nil
	}

	groups := make(map[int][]ColumnField)
	for _, field := range f.cfg.Fields {
		groups[field.Group] = append(groups[field.Group], field)
	}
	groupIDs := make([]int, 0, len(groups))
	for id := range groups {
		groupIDs = append(groupIDs, id)
	}
	sort.Ints(groupIDs)

	var spans []utils.CandidateSpan
	for _, id := range groupIDs {
		fields := groups[id]

		base := fields[0].Line
		for _, field := range fields[1:] {
			if field.Line < base {
				base = field.Line
			}
		}

		for row := winFirst + base; row < winLast; row++ {
			produced := 0
			for _, field := range fields {
				lineIdx := row + field.Line - base
				if lineIdx < winFirst || lineIdx >= winLast {
					continue
				}
				line := lines[lineIdx]
				if field.Left >= len(line) {
					continue
				}
				right := field.Right
				if right < field.Left {
					right = field.Left
				}
				if right > len(line) {
					right = len(line)
				}
				raw := line[field.Left:right]
				value := strings.TrimSpace(raw)
				if value == "" {
					continue
				}
				lead := len(raw) - len(strings.TrimLeftFunc(raw, unicode.IsSpace))
				start := offsets[lineIdx] + field.Left + lead
				spans = append(spans, utils.CandidateSpan{
					Start:  start,
					End:    start + len(value),
					Value:  value,
					Label:  field.Label,
					Source: utils.SourceFixedWidth,
				})
				produced++
			}
			if produced == 0 {
				break
			}
		}
	}
	return spans
}

// Producer adapts the extractor to the pipeline producer shape
func (f *FixedWidth) Producer() ProducerFunc {
	return func(text string) ([]utils.CandidateSpan, error) {
		return f.Extract(text), nil
	}
}
