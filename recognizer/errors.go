package recognizer

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCategory classifies recognizer failures for audit correlation
type ErrorCategory string

const (
	ErrorCategoryValidation ErrorCategory = "validation"
	ErrorCategoryRateLimit  ErrorCategory = "rate_limit"
	ErrorCategoryTimeout    ErrorCategory = "timeout"
	ErrorCategoryNetwork    ErrorCategory = "network"
	ErrorCategoryTool       ErrorCategory = "tool"
	ErrorCategorySystem     ErrorCategory = "system"
)

// RecognizerError wraps client failures with the category and request ID
// needed to correlate them with audit entries
type RecognizerError struct {
	Category    ErrorCategory
	OriginalErr error
	RequestID   string
	Timestamp   time.Time
}

func (e RecognizerError) Error() string {
	return fmt.Sprintf("[%s] %s (request: %s)", e.Category, e.OriginalErr.Error(), e.RequestID)
}

func (e RecognizerError) Unwrap() error {
	return e.OriginalErr
}

// newRecognizerError creates a new RecognizerError with standard fields
func newRecognizerError(category ErrorCategory, err error, requestID string) RecognizerError {
	return RecognizerError{
		Category:    category,
		OriginalErr: err,
		RequestID:   requestID,
		Timestamp:   time.Now(),
	}
}

// categorizeError buckets an error based on its message
func categorizeError(err error) ErrorCategory {
	errStr := err.Error()

	if strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "too many requests") {
		return ErrorCategoryRateLimit
	} else if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		return ErrorCategoryTimeout
	} else if strings.Contains(errStr, "broken pipe") || strings.Contains(errStr, "connection") {
		return ErrorCategoryNetwork
	} else if strings.Contains(errStr, "invalid") || strings.Contains(errStr, "validation") {
		return ErrorCategoryValidation
	}

	return ErrorCategorySystem
}
