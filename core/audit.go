package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AuditLevel defines the verbosity of audit logging
type AuditLevel string

const (
	// AuditLevelMinimal logs only warnings and errors
	AuditLevelMinimal AuditLevel = "minimal"

	// AuditLevelStandard logs all pipeline events
	AuditLevelStandard AuditLevel = "standard"

	// AuditLevelVerbose additionally keeps per-label count breakdowns
	AuditLevelVerbose AuditLevel = "verbose"
)

// AuditSeverity defines the severity of audit events
type AuditSeverity string

const (
	// SeverityInfo for normal operations
	SeverityInfo AuditSeverity = "info"

	// SeverityWarning for recoverable problems (rejected spans, skipped
	// fields, producer failures)
	SeverityWarning AuditSeverity = "warning"

	// SeverityError for failures that stopped a document
	SeverityError AuditSeverity = "error"
)

// AuditEvent is one JSONL audit record. Events carry counts and operator
// metadata only. Span values, document content and key material must never
// be placed in an event; the audit log outlives the documents it describes
// and is not access-controlled like they are.
type AuditEvent struct {
	RequestID string        `json:"request_id"`
	Timestamp string        `json:"timestamp"`
	EventType string        `json:"event_type"`
	Severity  AuditSeverity `json:"severity"`

	// Document is the caller's identifier for the document, never content
	Document string `json:"document,omitempty"`

	// Reviewer identifies who drove a review session
	Reviewer string `json:"reviewer,omitempty"`

	Counts   map[string]int    `json:"counts,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// AuditConfig configures the audit logger
type AuditConfig struct {
	// Path of the JSONL audit log. Empty means "audit.log".
	Path string

	// Level controls verbosity. Empty means standard.
	Level AuditLevel

	// RotationSize is the byte size after which the log rotates.
	// Zero means 100MB.
	RotationSize int64

	// RetentionDays is how long rotated logs are kept. Zero means 90.
	RetentionDays int

	// EnableConsole mirrors events to stdout
	EnableConsole bool
}

// AuditLogger writes pipeline audit events as JSONL with size-based
// rotation and retention cleanup. Construct one explicitly and hand it to
// whatever needs it; there is no package-level instance.
type AuditLogger struct {
	mu            sync.Mutex
	logPath       string
	level         AuditLevel
	writer        io.Writer
	rotationSize  int64
	currentSize   int64
	retentionDays int
	enableConsole bool
}

// NewAuditLogger opens the audit log and returns a ready logger
func NewAuditLogger(cfg AuditConfig) (*AuditLogger, error) {
	logger := &AuditLogger{
		logPath:       cfg.Path,
		level:         cfg.Level,
		rotationSize:  cfg.RotationSize,
		retentionDays: cfg.RetentionDays,
		enableConsole: cfg.EnableConsole,
	}
	if logger.logPath == "" {
		logger.logPath = "audit.log"
	}
	if logger.level == "" {
		logger.level = AuditLevelStandard
	}
	if logger.rotationSize == 0 {
		logger.rotationSize = 100 * 1024 * 1024
	}
	if logger.retentionDays == 0 {
		logger.retentionDays = 90
	}

	if err := logger.open(); err != nil {
		return nil, err
	}
	return logger, nil
}

// open prepares the log file for appending
func (l *AuditLogger) open() error {
	dir := filepath.Dir(l.logPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat audit log: %w", err)
	}
	l.currentSize = info.Size()

	if l.enableConsole {
		l.writer = io.MultiWriter(f, os.Stdout)
	} else {
		l.writer = f
	}
	return nil
}

// maybeRotate rotates the log once it crosses the configured size
func (l *AuditLogger) maybeRotate() error {
	if l.currentSize < l.rotationSize {
		return nil
	}

	if closer, ok := l.writer.(io.Closer); ok {
		closer.Close()
	}

	timestamp := time.Now().Format("20060102-150405")
	rotatedPath := fmt.Sprintf("%s.%s", l.logPath, timestamp)
	if err := os.Rename(l.logPath, rotatedPath); err != nil {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}

	l.cleanupOldLogs()
	return l.open()
}

// cleanupOldLogs removes rotated files older than the retention period
func (l *AuditLogger) cleanupOldLogs() {
	dir := filepath.Dir(l.logPath)
	base := filepath.Base(l.logPath)
	cutoff := time.Now().AddDate(0, 0, -l.retentionDays)

	files, err := filepath.Glob(filepath.Join(dir, base+".*"))
	if err != nil {
		return
	}
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(file)
		}
	}
}

// LogEvent writes one audit event
func (l *AuditLogger) LogEvent(event AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.maybeRotate(); err != nil {
		return err
	}

	if event.Timestamp == "" {
		event.Timestamp = time.Now().Format(time.RFC3339Nano)
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	if l.level == AuditLevelMinimal && event.Severity == SeverityInfo {
		return nil
	}
	if l.level != AuditLevelVerbose {
		// Per-label breakdowns reveal document structure; keep them only
		// when an operator asked for verbose logs
		for key := range event.Counts {
			if strings.HasPrefix(key, "label_") {
				delete(event.Counts, key)
			}
		}
	}

	entry, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	n, err := fmt.Fprintln(l.writer, string(entry))
	if err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	l.currentSize += int64(n)
	return nil
}

// LogDocumentProcessed records the outcome of one document run
func (l *AuditLogger) LogDocumentProcessed(requestID, document string, counts map[string]int) error {
	return l.LogEvent(AuditEvent{
		RequestID: requestID,
		EventType: "document_processed",
		Severity:  SeverityInfo,
		Document:  document,
		Counts:    counts,
	})
}

// LogProducerFailure records one producer failing on one document. The
// document still proceeds with the remaining producers.
func (l *AuditLogger) LogProducerFailure(requestID, document, producer string, err error) error {
	return l.LogEvent(AuditEvent{
		RequestID: requestID,
		EventType: "producer_failed",
		Severity:  SeverityWarning,
		Document:  document,
		Metadata: map[string]string{
			"producer": producer,
			"error":    err.Error(),
		},
	})
}

// LogReviewApplied records a review session's outcome
func (l *AuditLogger) LogReviewApplied(requestID, document, reviewer string, outcome ReviewOutcome) error {
	return l.LogEvent(AuditEvent{
		RequestID: requestID,
		EventType: "review_applied",
		Severity:  SeverityInfo,
		Document:  document,
		Reviewer:  reviewer,
		Counts: map[string]int{
			"confirmed": outcome.Confirmed,
			"excluded":  outcome.Excluded,
			"relabeled": outcome.Relabeled,
			"edited":    outcome.Edited,
			"rejected":  outcome.Rejected,
		},
	})
}

// LogConfigLoaded records an operator config load with its integrity hash
func (l *AuditLogger) LogConfigLoaded(requestID, kind, path, hash string, skipped int) error {
	severity := SeverityInfo
	if skipped > 0 {
		severity = SeverityWarning
	}
	return l.LogEvent(AuditEvent{
		RequestID: requestID,
		EventType: "config_loaded",
		Severity:  severity,
		Counts: map[string]int{
			"skipped_entries": skipped,
		},
		Metadata: map[string]string{
			"kind": kind,
			"path": path,
			"hash": hash,
		},
	})
}
