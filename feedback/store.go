package feedback

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fieldveil/core"
)

// Record is one reviewed span decision kept for recognizer tuning. Unlike
// audit entries, records carry the field value on purpose; the store holds
// training data and must be protected accordingly.
type Record struct {
	ID         uuid.UUID
	Document   string
	Label      string
	Value      string
	Start      int
	End        int
	LineNumber int
	Source     string
	Decision   string
	ReviewedAt time.Time
}

// Store persists review decisions
type Store interface {
	Save(ctx context.Context, records []Record) error
	ListByDocument(ctx context.Context, document string) ([]Record, error)
}

// RecordsFromReview converts a review session's items into records for
// document, stamped with reviewedAt
func RecordsFromReview(document string, items []core.ReviewItem, reviewedAt time.Time) []Record {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		records = append(records, Record{
			ID:         item.ID,
			Document:   document,
			Label:      item.Span.Label,
			Value:      item.Span.Value,
			Start:      item.Span.Start,
			End:        item.Span.End,
			LineNumber: item.Span.LineNumber,
			Source:     string(item.Span.Source),
			Decision:   string(item.State),
			ReviewedAt: reviewedAt,
		})
	}
	return records
}
