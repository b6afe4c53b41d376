package core

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// readAuditEvents parses every JSONL record in the audit log
func readAuditEvents(t *testing.T, path string) []AuditEvent {
	t.Helper()

	data, err := os.ReadFile(path)
	assert.NoError(t, err)

	var events []AuditEvent
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var event AuditEvent
		assert.NoError(t, json.Unmarshal([]byte(line), &event))
		events = append(events, event)
	}
	return events
}

// TestAuditLoggerWritesJSONL verifies that events land as one parseable
// JSON object per line with timestamps and severities filled in
func TestAuditLoggerWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewAuditLogger(AuditConfig{Path: path})
	assert.NoError(t, err)

	assert.NoError(t, logger.LogDocumentProcessed("req-1", "statement.rpt", map[string]int{
		"spans":    4,
		"replaced": 4,
	}))
	assert.NoError(t, logger.LogConfigLoaded("req-1", "columns", "columns.yaml", "abc123", 0))

	events := readAuditEvents(t, path)
	assert.Len(t, events, 2)

	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Equal(t, "document_processed", events[0].EventType)
	assert.Equal(t, SeverityInfo, events[0].Severity)
	assert.Equal(t, "statement.rpt", events[0].Document)
	assert.Equal(t, 4, events[0].Counts["spans"])
	assert.NotEmpty(t, events[0].Timestamp)

	assert.Equal(t, "config_loaded", events[1].EventType)
	assert.Equal(t, SeverityInfo, events[1].Severity)
	assert.Equal(t, "columns.yaml", events[1].Metadata["path"])
	assert.Equal(t, "abc123", events[1].Metadata["hash"])
}

// TestAuditStandardStripsLabelCounts verifies that per-label breakdowns
// are dropped at the default level
func TestAuditStandardStripsLabelCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewAuditLogger(AuditConfig{Path: path, Level: AuditLevelStandard})
	assert.NoError(t, err)

	assert.NoError(t, logger.LogDocumentProcessed("req-2", "statement.rpt", map[string]int{
		"spans":            3,
		"label_SSN_NUMBER": 2,
		"label_PERSON":     1,
	}))

	events := readAuditEvents(t, path)
	assert.Len(t, events, 1)
	assert.Equal(t, 3, events[0].Counts["spans"])
	assert.NotContains(t, events[0].Counts, "label_SSN_NUMBER")
	assert.NotContains(t, events[0].Counts, "label_PERSON")
}

// TestAuditVerboseKeepsLabelCounts verifies per-label breakdowns survive
// at verbose level
func TestAuditVerboseKeepsLabelCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewAuditLogger(AuditConfig{Path: path, Level: AuditLevelVerbose})
	assert.NoError(t, err)

	assert.NoError(t, logger.LogDocumentProcessed("req-3", "statement.rpt", map[string]int{
		"spans":            3,
		"label_SSN_NUMBER": 2,
	}))

	events := readAuditEvents(t, path)
	assert.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Counts["label_SSN_NUMBER"])
}

// TestAuditMinimalSkipsInfo verifies that minimal level drops info events
// but keeps warnings
func TestAuditMinimalSkipsInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewAuditLogger(AuditConfig{Path: path, Level: AuditLevelMinimal})
	assert.NoError(t, err)

	assert.NoError(t, logger.LogDocumentProcessed("req-4", "statement.rpt", map[string]int{"spans": 1}))
	assert.NoError(t, logger.LogProducerFailure("req-4", "statement.rpt", "recognizer", errors.New("connection refused")))

	events := readAuditEvents(t, path)
	assert.Len(t, events, 1)
	assert.Equal(t, "producer_failed", events[0].EventType)
	assert.Equal(t, SeverityWarning, events[0].Severity)
	assert.Equal(t, "recognizer", events[0].Metadata["producer"])
	assert.Equal(t, "connection refused", events[0].Metadata["error"])
}

// TestAuditRotation verifies that the log rotates once past the size limit
// and keeps writing into a fresh file
func TestAuditRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	logger, err := NewAuditLogger(AuditConfig{Path: path, RotationSize: 1})
	assert.NoError(t, err)

	assert.NoError(t, logger.LogDocumentProcessed("req-5", "doc-one", map[string]int{"spans": 1}))
	assert.NoError(t, logger.LogDocumentProcessed("req-5", "doc-two", map[string]int{"spans": 1}))

	events := readAuditEvents(t, path)
	assert.Len(t, events, 1)
	assert.Equal(t, "doc-two", events[0].Document)

	rotated, err := filepath.Glob(path + ".*")
	assert.NoError(t, err)
	assert.Len(t, rotated, 1)

	old := readAuditEvents(t, rotated[0])
	assert.Len(t, old, 1)
	assert.Equal(t, "doc-one", old[0].Document)
}

// TestAuditConfigLoadedSeverity verifies that skipped config entries raise
// the event to a warning
func TestAuditConfigLoadedSeverity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewAuditLogger(AuditConfig{Path: path})
	assert.NoError(t, err)

	assert.NoError(t, logger.LogConfigLoaded("req-6", "patterns", "patterns.yaml", "def456", 3))

	events := readAuditEvents(t, path)
	assert.Len(t, events, 1)
	assert.Equal(t, SeverityWarning, events[0].Severity)
	assert.Equal(t, 3, events[0].Counts["skipped_entries"])
}

// TestAuditReviewApplied verifies the review outcome counts that land in
// the audit trail
func TestAuditReviewApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewAuditLogger(AuditConfig{Path: path})
	assert.NoError(t, err)

	outcome := ReviewOutcome{Confirmed: 2, Excluded: 1, Rejected: 1}
	assert.NoError(t, logger.LogReviewApplied("req-7", "statement.rpt", "analyst1", outcome))

	events := readAuditEvents(t, path)
	assert.Len(t, events, 1)
	assert.Equal(t, "review_applied", events[0].EventType)
	assert.Equal(t, "analyst1", events[0].Reviewer)
	assert.Equal(t, 2, events[0].Counts["confirmed"])
	assert.Equal(t, 1, events[0].Counts["excluded"])
	assert.Equal(t, 0, events[0].Counts["relabeled"])
	assert.Equal(t, 1, events[0].Counts["rejected"])
}
