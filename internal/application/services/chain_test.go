package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permitworks/backend/internal/domain/models"
	appErrors "github.com/permitworks/backend/pkg/errors"
)

func testApprover(id, name string) *models.UserSession {
	return &models.UserSession{ID: id, Name: name, Role: "approver"}
}

// makeChain builds an in-memory chain of n standard levels: level 1 PENDING,
// the rest WAITING.
func makeChain(n int) []*models.ApprovalRecord {
	records := make([]*models.ApprovalRecord, 0, n)
	for i := 1; i <= n; i++ {
		status := models.RecordWaiting
		if i == 1 {
			status = models.RecordPending
		}
		records = append(records, &models.ApprovalRecord{
			ID:            fmt.Sprintf("rec-%d", i),
			ApplicationID: "app-1",
			Kind:          models.SlotStandard,
			Level:         i,
			Status:        status,
			RoleName:      "Approver",
		})
	}
	return records
}

func pendingCount(records []*models.ApprovalRecord) int {
	count := 0
	for _, rec := range records {
		if rec.Status == models.RecordPending {
			count++
		}
	}
	return count
}

func TestAdvanceChainSequentialApproval(t *testing.T) {
	records := makeChain(3)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Level 1 approves: level 2 promoted, chain not done.
	outcome, err := advanceChain(records, "rec-1", models.RecordApproved, testApprover("u1", "Alice"), "ok", now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, outcome.Kind)
	require.NotNil(t, outcome.NewlyPending)
	assert.Equal(t, "rec-2", outcome.NewlyPending.ID)
	assert.Equal(t, models.RecordApproved, records[0].Status)
	assert.Equal(t, "Alice", records[0].ApproverName)
	require.NotNil(t, records[0].DecidedAt)
	assert.Equal(t, models.RecordPending, records[1].Status)
	assert.Equal(t, models.RecordWaiting, records[2].Status)
	assert.Equal(t, 1, pendingCount(records))

	// Level 2 approves.
	outcome, err = advanceChain(records, "rec-2", models.RecordApproved, testApprover("u2", "Bob"), "", now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, outcome.Kind)
	require.NotNil(t, outcome.NewlyPending)
	assert.Equal(t, "rec-3", outcome.NewlyPending.ID)
	assert.Equal(t, 1, pendingCount(records))

	// Level 3 approves: fully approved, nothing left to promote.
	outcome, err = advanceChain(records, "rec-3", models.RecordApproved, testApprover("u3", "Cara"), "", now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFullyApproved, outcome.Kind)
	assert.Equal(t, models.SlotStandard, outcome.DecidedKind)
	assert.Nil(t, outcome.NewlyPending)
	assert.Equal(t, 0, pendingCount(records))
}

func TestAdvanceChainRejectionShortCircuits(t *testing.T) {
	records := makeChain(3)
	now := time.Now()

	_, err := advanceChain(records, "rec-1", models.RecordApproved, testApprover("u1", "Alice"), "", now)
	require.NoError(t, err)

	outcome, err := advanceChain(records, "rec-2", models.RecordRejected, testApprover("u2", "Bob"), "unsafe conditions", now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome.Kind)
	assert.Nil(t, outcome.NewlyPending)
	assert.Equal(t, models.RecordRejected, records[1].Status)
	assert.Equal(t, "unsafe conditions", records[1].Remarks)

	// Level 3 was never promoted and stays waiting forever.
	assert.Equal(t, models.RecordWaiting, records[2].Status)
	assert.Equal(t, 0, pendingCount(records))
}

func TestAdvanceChainRepeatedDecision(t *testing.T) {
	records := makeChain(2)
	now := time.Now()

	_, err := advanceChain(records, "rec-1", models.RecordApproved, testApprover("u1", "Alice"), "", now)
	require.NoError(t, err)

	// A retried or raced duplicate must not re-run promotion.
	_, err = advanceChain(records, "rec-1", models.RecordApproved, testApprover("u1", "Alice"), "", now)
	require.Error(t, err)
	assert.True(t, appErrors.IsAlreadyDecided(err))

	// Rejecting an already approved record is refused the same way.
	_, err = advanceChain(records, "rec-1", models.RecordRejected, testApprover("u9", "Mallory"), "", now)
	assert.True(t, appErrors.IsAlreadyDecided(err))
	assert.Equal(t, models.RecordApproved, records[0].Status)
}

func TestAdvanceChainOutOfOrder(t *testing.T) {
	records := makeChain(3)

	_, err := advanceChain(records, "rec-3", models.RecordApproved, testApprover("u3", "Cara"), "", time.Now())
	require.Error(t, err)

	var notYet *appErrors.NotYetActionableError
	require.ErrorAs(t, err, &notYet)
	assert.Equal(t, 3, notYet.Level)
	assert.Equal(t, models.RecordWaiting, records[2].Status)
}

func TestAdvanceChainRejectsBadDecision(t *testing.T) {
	records := makeChain(1)

	_, err := advanceChain(records, "rec-1", models.RecordPending, testApprover("u1", "Alice"), "", time.Now())
	assert.True(t, appErrors.IsValidation(err))

	_, err = advanceChain(records, "rec-1", models.RecordWaiting, testApprover("u1", "Alice"), "", time.Now())
	assert.True(t, appErrors.IsValidation(err))
}

func TestAdvanceChainUnknownRecord(t *testing.T) {
	records := makeChain(2)

	_, err := advanceChain(records, "rec-missing", models.RecordApproved, testApprover("u1", "Alice"), "", time.Now())
	assert.True(t, appErrors.IsNotFound(err))
}

func TestAdvanceChainCompletionRecord(t *testing.T) {
	// An ACTIVE permit's chain: original levels approved plus the injected
	// completion-flow record, currently pending.
	records := makeChain(2)
	records[0].Status = models.RecordApproved
	records[1].Status = models.RecordApproved
	records = append(records, &models.ApprovalRecord{
		ID:            "rec-completion",
		ApplicationID: "app-1",
		Kind:          models.SlotCompletion,
		Level:         models.CompletionSlotLevel,
		Status:        models.RecordPending,
		RoleName:      "Supervisor",
	})

	outcome, err := advanceChain(records, "rec-completion", models.RecordApproved, testApprover("sup", "Sam"), "all clear", time.Now())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFullyApproved, outcome.Kind)
	assert.Equal(t, models.SlotCompletion, outcome.DecidedKind)
}

func TestValidateTemplate(t *testing.T) {
	uid := "user-1"
	gid := "group-1"

	slot := func(level int, userID, groupID *string) *models.ApprovalTemplateSlot {
		return &models.ApprovalTemplateSlot{ID: "slot", WorkflowID: "wf-1", Level: level, UserID: userID, GroupID: groupID}
	}

	tests := []struct {
		name    string
		slots   []*models.ApprovalTemplateSlot
		wantErr bool
	}{
		{"valid user and group slots", []*models.ApprovalTemplateSlot{slot(1, &uid, nil), slot(2, nil, &gid)}, false},
		{"empty template", nil, true},
		{"level gap", []*models.ApprovalTemplateSlot{slot(1, &uid, nil), slot(3, &uid, nil)}, true},
		{"does not start at 1", []*models.ApprovalTemplateSlot{slot(2, &uid, nil)}, true},
		{"no assignee", []*models.ApprovalTemplateSlot{slot(1, nil, nil)}, true},
		{"both assignees", []*models.ApprovalTemplateSlot{slot(1, &uid, &gid)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTemplate("wf-1", tt.slots)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
