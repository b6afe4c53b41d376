package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"fieldveil/core"
	"fieldveil/utils"
)

// TestInMemoryStoreSaveAndList verifies per-document isolation and that
// listings are copies
func TestInMemoryStoreSaveAndList(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	now := time.Now()
	err := store.Save(ctx, []Record{
		{ID: uuid.New(), Document: "trial_balance.txt", Label: "SSN_NUMBER", Decision: "confirmed", ReviewedAt: now},
		{ID: uuid.New(), Document: "trial_balance.txt", Label: "PERSON", Decision: "excluded", ReviewedAt: now},
		{ID: uuid.New(), Document: "other.txt", Label: "PERSON", Decision: "confirmed", ReviewedAt: now},
	})
	assert.NoError(t, err)

	records, err := store.ListByDocument(ctx, "trial_balance.txt")
	assert.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = store.ListByDocument(ctx, "other.txt")
	assert.NoError(t, err)
	assert.Len(t, records, 1)

	// Mutating the returned slice must not touch the store
	records[0].Decision = "tampered"
	fresh, err := store.ListByDocument(ctx, "other.txt")
	assert.NoError(t, err)
	assert.Equal(t, "confirmed", fresh[0].Decision)

	// Unknown document lists empty, not an error
	records, err = store.ListByDocument(ctx, "missing.txt")
	assert.NoError(t, err)
	assert.Empty(t, records)
}

// TestRecordsFromReview verifies the conversion from review items
func TestRecordsFromReview(t *testing.T) {
	text := "ACCT 0001234567 JOHN DOE"
	set := core.Reconcile(text, []utils.CandidateSpan{
		{Start: 5, End: 15, Label: "ACCOUNT_NUMBER", Source: utils.SourcePattern},
		{Start: 16, End: 24, Label: "PERSON", Source: utils.SourceRecognizer},
	})

	session := core.NewReviewSession(text, set)
	items := session.Items()
	err := session.Apply(core.ReviewCommand{Action: core.ActionConfirm, Target: items[0].ID})
	assert.NoError(t, err)

	reviewedAt := time.Now()
	records := RecordsFromReview("trial_balance.txt", session.Items(), reviewedAt)

	assert.Len(t, records, 2)
	assert.Equal(t, items[0].ID, records[0].ID)
	assert.Equal(t, "trial_balance.txt", records[0].Document)
	assert.Equal(t, "ACCOUNT_NUMBER", records[0].Label)
	assert.Equal(t, "0001234567", records[0].Value)
	assert.Equal(t, "confirmed", records[0].Decision)
	assert.Equal(t, "pattern", records[0].Source)
	assert.Equal(t, reviewedAt, records[0].ReviewedAt)

	// Untouched spans stay in the proposed state
	assert.Equal(t, "proposed", records[1].Decision)
	assert.Equal(t, "JOHN DOE", records[1].Value)
}
