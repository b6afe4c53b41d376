package core

import "time"

// ColumnConfigBuilder provides a fluent interface for assembling
// column-group layouts in code, mostly for tests and for bootstrapping a
// starter layout that operators then tune by hand.
type ColumnConfigBuilder struct {
	cfg     *ColumnGroupConfig
	skipped int
}

// NewColumnConfigBuilder creates a builder for the named report family
func NewColumnConfigBuilder(reportName string) *ColumnConfigBuilder {
	return &ColumnConfigBuilder{
		cfg: &ColumnGroupConfig{
			Metadata: ConfigMetadata{
				CreatedAt: time.Now(),
			},
			ReportName: reportName,
			Fields:     []ColumnField{},
		},
	}
}

// WithMetadata sets the layout metadata
func (b *ColumnConfigBuilder) WithMetadata(version, description, author string) *ColumnConfigBuilder {
	b.cfg.Metadata.Version = version
	b.cfg.Metadata.Description = description
	b.cfg.Metadata.Author = author
	return b
}

// SkipHeader sets the number of lines ignored at the top of the document
func (b *ColumnConfigBuilder) SkipHeader(lines int) *ColumnConfigBuilder {
	b.cfg.HeaderSkip = lines
	return b
}

// SkipFooter sets the number of lines ignored at the bottom of the document
func (b *ColumnConfigBuilder) SkipFooter(lines int) *ColumnConfigBuilder {
	b.cfg.FooterSkip = lines
	return b
}

// Group starts configuring the fields of one repeating row block
func (b *ColumnConfigBuilder) Group(id int) *GroupConfigurator {
	return &GroupConfigurator{
		builder: b,
		group:   id,
	}
}

// Build returns the assembled layout. Fields rejected by the configurator
// have already been dropped and counted in SkippedFields, matching the
// behavior of LoadColumnConfig.
func (b *ColumnConfigBuilder) Build() *ColumnGroupConfig {
	b.cfg.SkippedFields = b.skipped
	return b.cfg
}

// GroupConfigurator adds fields to one column group
type GroupConfigurator struct {
	builder *ColumnConfigBuilder
	group   int
}

// Field adds one labeled field at byte columns [left, right) on the given
// line offset within the group's row block. Positions that could never
// extract anything are dropped and counted rather than kept.
func (c *GroupConfigurator) Field(label string, line, left, right int) *GroupConfigurator {
	field := ColumnField{
		Label: label,
		Group: c.group,
		Line:  line,
		Left:  left,
		Right: right,
	}
	if err := validateColumnField(field); err != nil {
		c.builder.skipped++
		return c
	}
	c.builder.cfg.Fields = append(c.builder.cfg.Fields, field)
	return c
}

// Done returns to the layout builder
func (c *GroupConfigurator) Done() *ColumnConfigBuilder {
	return c.builder
}

// GenerateSampleColumnConfig creates a starter layout for a single-group
// loan trial balance report, the shape most fixed-width bank spools take.
// Operators copy it, re-measure the columns against a real sample, and save
// it with SaveColumnConfig.
func GenerateSampleColumnConfig() *ColumnGroupConfig {
	return NewColumnConfigBuilder("LOAN TRIAL BALANCE").
		WithMetadata("1.0.0", "Starter layout for a loan trial balance spool", "fieldveil").
		SkipHeader(5).
		SkipFooter(2).
		Group(1).
		Field("ACCOUNT_NUMBER", 0, 0, 13).
		Field("PERSON", 0, 13, 35).
		Field("SSN_NUMBER", 0, 35, 50).
		Field("NOTE_NUMBER", 0, 50, 60).
		Done().
		Build()
}
