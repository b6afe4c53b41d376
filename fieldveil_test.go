package fieldveil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"fieldveil/core"
	"fieldveil/utils"
)

// setTestKey points the pseudonymization key env var at a throwaway test
// key and restores the prior value when the test ends
func setTestKey(t *testing.T) {
	t.Helper()
	prior, had := os.LookupEnv(core.PseudoKeyEnv)
	os.Setenv(core.PseudoKeyEnv, "pipeline-test-key")
	t.Cleanup(func() {
		if had {
			os.Setenv(core.PseudoKeyEnv, prior)
		} else {
			os.Unsetenv(core.PseudoKeyEnv)
		}
	})
}

// clearTestKey guarantees the key env var is unset for the test
func clearTestKey(t *testing.T) {
	t.Helper()
	prior, had := os.LookupEnv(core.PseudoKeyEnv)
	os.Unsetenv(core.PseudoKeyEnv)
	t.Cleanup(func() {
		if had {
			os.Setenv(core.PseudoKeyEnv, prior)
		}
	})
}

// trialBalanceLayout is a two-row spool report layout: account, borrower,
// SSN and note number in fixed columns
func trialBalanceLayout() *core.FixedWidth {
	cfg := core.NewColumnConfigBuilder("LOAN TRIAL BALANCE").
		SkipHeader(2).
		SkipFooter(1).
		Group(1).
		Field("ACCOUNT_NUMBER", 0, 0, 13).
		Field("PERSON", 0, 13, 35).
		Field("SSN_NUMBER", 0, 35, 50).
		Field("NOTE_NUMBER", 0, 50, 60).
		Done().
		Build()
	return core.NewFixedWidth(*cfg)
}

var trialBalanceDoc = strings.Join([]string{
	"LOAN TRIAL BALANCE        PAGE 1",
	"",
	"0001234567   SMITH, JOHN A         563-73-6000    0000101",
	"0007654321   DOE, JANE             987-65-4321    0000102",
	"",
	"END OF REPORT",
}, "\n")

// excludeNotes drops every note number span from the review session
func excludeNotes(items []core.ReviewItem) []core.ReviewCommand {
	var cmds []core.ReviewCommand
	for _, item := range items {
		if item.Span.Label == "NOTE_NUMBER" {
			cmds = append(cmds, core.ReviewCommand{Action: core.ActionExclude, Target: item.ID})
		}
	}
	return cmds
}

// TestPipelineDetect verifies that the column and pattern producers both
// run, their duplicate findings collapse, and offsets land on the report's
// actual columns
func TestPipelineDetect(t *testing.T) {
	pipeline := New(Options{
		Columns:  trialBalanceLayout(),
		Patterns: core.NewPatternSet(),
	})

	set, reports := pipeline.Detect(trialBalanceDoc)

	assert.Len(t, reports, 2)
	assert.Equal(t, "fixed_width", reports[0].Name)
	assert.Equal(t, 8, reports[0].Count)
	assert.NoError(t, reports[0].Err)
	assert.Equal(t, "pattern", reports[1].Name)
	assert.Equal(t, 4, reports[1].Count)

	// The pattern producer re-finds both accounts and both SSNs at the
	// columns' exact offsets, so reconciliation collapses them
	assert.Len(t, set.Spans, 8)
	assert.Equal(t, 4, set.Dropped)
	assert.Equal(t, 0, set.Rejected)

	first := set.Spans[0]
	assert.Equal(t, "ACCOUNT_NUMBER", first.Label)
	assert.Equal(t, "0001234567", first.Value)
	assert.Equal(t, 34, first.Start)
	assert.Equal(t, 44, first.End)

	ssn := set.Spans[2]
	assert.Equal(t, "SSN_NUMBER", ssn.Label)
	assert.Equal(t, "563-73-6000", ssn.Value)
	assert.Equal(t, 69, ssn.Start)
	assert.Equal(t, 80, ssn.End)
	assert.Equal(t, 3, ssn.LineNumber)
	assert.Equal(t, 35, ssn.Left)
	assert.Equal(t, 46, ssn.Right)

	assert.Equal(t, "NOTE_NUMBER", set.Spans[7].Label)
	assert.Equal(t, "0000102", set.Spans[7].Value)
}

// TestPipelineProcess verifies the full pass: every sensitive field is
// rewritten in place, surrounding report text survives untouched, and the
// same seed and key reproduce the output exactly
func TestPipelineProcess(t *testing.T) {
	setTestKey(t)

	pipeline := New(Options{
		Columns:      trialBalanceLayout(),
		Patterns:     core.NewPatternSet(),
		PreserveLast: -1,
		InlineSweep:  true,
		SynthSeed:    7,
	})

	result, err := pipeline.Process("trial_balance.rpt", trialBalanceDoc, nil)
	assert.NoError(t, err)

	assert.Len(t, result.Output, len(trialBalanceDoc))
	assert.NotContains(t, result.Output, "0001234567")
	assert.NotContains(t, result.Output, "SMITH, JOHN A")
	assert.NotContains(t, result.Output, "563-73-6000")
	assert.NotContains(t, result.Output, "DOE, JANE")
	assert.NotContains(t, result.Output, "987-65-4321")
	assert.Contains(t, result.Output, "LOAN TRIAL BALANCE")
	assert.Contains(t, result.Output, "END OF REPORT")

	assert.Equal(t, 8, result.Stats.Replaced)
	assert.Equal(t, 0, result.Stats.Passed)
	assert.Equal(t, 0, result.Stats.Conflicts)
	assert.Equal(t, 0, result.Stats.Invalid)
	assert.Len(t, result.Spans, 8)
	assert.Len(t, result.Items, 8)
	assert.Equal(t, core.ReviewOutcome{}, result.Outcome)

	again, err := pipeline.Process("trial_balance.rpt", trialBalanceDoc, nil)
	assert.NoError(t, err)
	assert.Equal(t, result.Output, again.Output)
}

// TestPipelineReview verifies that review commands shape the final span
// set: excluded spans stay in the output as-is while everything else is
// still rewritten
func TestPipelineReview(t *testing.T) {
	setTestKey(t)

	pipeline := New(Options{
		Columns:      trialBalanceLayout(),
		PreserveLast: -1,
		SynthSeed:    7,
	})

	result, err := pipeline.Process("trial_balance.rpt", trialBalanceDoc, excludeNotes)
	assert.NoError(t, err)

	assert.Equal(t, 2, result.Outcome.Excluded)
	assert.Equal(t, 0, result.Outcome.Rejected)
	assert.Len(t, result.Spans, 6)

	assert.Contains(t, result.Output, "0000101")
	assert.Contains(t, result.Output, "0000102")
	assert.NotContains(t, result.Output, "563-73-6000")

	excluded := 0
	for _, item := range result.Items {
		if item.State == core.StateExcluded {
			excluded++
			assert.Equal(t, "NOTE_NUMBER", item.Span.Label)
		}
	}
	assert.Equal(t, 2, excluded)
}

// TestPipelineMissingKey verifies that detection runs without key material
// but obfuscation refuses to
func TestPipelineMissingKey(t *testing.T) {
	clearTestKey(t)

	pipeline := New(Options{Columns: trialBalanceLayout()})

	set, _ := pipeline.Detect(trialBalanceDoc)
	assert.Len(t, set.Spans, 8)

	_, err := pipeline.Process("trial_balance.rpt", trialBalanceDoc, nil)
	assert.ErrorIs(t, err, core.ErrMissingKey)
}

// TestPipelineProducerFailure verifies that one producer failing never
// stops the pass: its report carries the error and the other producers'
// spans still go through
func TestPipelineProducerFailure(t *testing.T) {
	setTestKey(t)

	manual := Producer{Name: "manual", Extract: func(text string) ([]utils.CandidateSpan, error) {
		return []utils.CandidateSpan{{Label: "REFERENCE", Start: 0, End: 3}}, nil
	}}
	flaky := Producer{Name: "flaky", Extract: func(text string) ([]utils.CandidateSpan, error) {
		return nil, errors.New("model unavailable")
	}}

	pipeline := New(Options{
		Patterns:     core.NewPatternSet(),
		Producers:    []Producer{manual, flaky},
		PreserveLast: -1,
	})

	text := "REF 563-73-6000"
	set, reports := pipeline.Detect(text)

	assert.Len(t, reports, 3)
	assert.Equal(t, "pattern", reports[0].Name)
	assert.Equal(t, 1, reports[0].Count)
	assert.Equal(t, "manual", reports[1].Name)
	assert.Equal(t, 1, reports[1].Count)
	assert.Equal(t, "flaky", reports[2].Name)
	assert.Equal(t, 0, reports[2].Count)
	assert.EqualError(t, reports[2].Err, "model unavailable")

	assert.Len(t, set.Spans, 2)
	assert.Equal(t, "REFERENCE", set.Spans[0].Label)
	assert.Equal(t, "REF", set.Spans[0].Value)
	assert.Equal(t, "SSN_NUMBER", set.Spans[1].Label)

	result, err := pipeline.Process("memo.txt", text, nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, result.Stats.Replaced)
	assert.EqualError(t, result.Reports[2].Err, "model unavailable")
}

// TestPipelineAuditTrail verifies what reaches the audit log: event types,
// counts and the reviewer, never field values or document text
func TestPipelineAuditTrail(t *testing.T) {
	setTestKey(t)

	path := filepath.Join(t.TempDir(), "audit.log")
	audit, err := core.NewAuditLogger(core.AuditConfig{Path: path})
	assert.NoError(t, err)

	flaky := Producer{Name: "flaky", Extract: func(text string) ([]utils.CandidateSpan, error) {
		return nil, errors.New("model unavailable")
	}}

	pipeline := New(Options{
		Columns:      trialBalanceLayout(),
		Producers:    []Producer{flaky},
		PreserveLast: -1,
		SynthSeed:    3,
		Reviewer:     "analyst1",
		Audit:        audit,
	})

	_, err = pipeline.Process("trial_balance.rpt", trialBalanceDoc, excludeNotes)
	assert.NoError(t, err)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	log := string(data)

	assert.Contains(t, log, "producer_failed")
	assert.Contains(t, log, "review_applied")
	assert.Contains(t, log, "document_processed")
	assert.Contains(t, log, `"reviewer":"analyst1"`)
	assert.Contains(t, log, `"document":"trial_balance.rpt"`)

	assert.NotContains(t, log, "563-73-6000")
	assert.NotContains(t, log, "SMITH, JOHN A")
	assert.NotContains(t, log, "0001234567")
	assert.NotContains(t, log, "pipeline-test-key")
	assert.NotContains(t, log, "label_")
}

// TestRun verifies the one-call convenience wrapper on memo-style text
func TestRun(t *testing.T) {
	setTestKey(t)

	text := "SSN 563-73-6000 CALL 555-867-5309"
	result, err := Run("memo.txt", text, Options{
		Patterns:     core.NewPatternSet(),
		PreserveLast: -1,
		SynthSeed:    1,
	})
	assert.NoError(t, err)

	assert.Len(t, result.Output, len(text))
	assert.NotContains(t, result.Output, "563-73-6000")
	assert.NotContains(t, result.Output, "555-867-5309")
	assert.Equal(t, 2, result.Stats.Replaced)
	assert.True(t, strings.HasPrefix(result.Output, "SSN "))
}
