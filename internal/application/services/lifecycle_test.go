package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permitworks/backend/internal/domain/models"
	appErrors "github.com/permitworks/backend/pkg/errors"
)

func TestNextStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current models.ApplicationStatus
		trigger Trigger
		want    models.ApplicationStatus
	}{
		{"submit draft", models.StatusDraft, TriggerSubmit, models.StatusSubmitted},
		{"chain approves submitted", models.StatusSubmitted, TriggerChainApproved, models.StatusApproved},
		{"entry activates approved", models.StatusApproved, TriggerConfirmEntry, models.StatusActive},
		{"job done on active", models.StatusActive, TriggerJobDone, models.StatusExitPending},
		{"exit completes", models.StatusExitPending, TriggerConfirmExit, models.StatusCompleted},
		{"expiry completes active", models.StatusActive, TriggerExpire, models.StatusCompleted},
		{"reject submitted", models.StatusSubmitted, TriggerChainRejected, models.StatusRejected},
		{"reject active", models.StatusActive, TriggerChainRejected, models.StatusRejected},
		{"reject exit-pending", models.StatusExitPending, TriggerChainRejected, models.StatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextStatus(tt.current, tt.trigger)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextStatusRefusesBadTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current models.ApplicationStatus
		trigger Trigger
	}{
		{"entry before approval", models.StatusSubmitted, TriggerConfirmEntry},
		{"entry on draft", models.StatusDraft, TriggerConfirmEntry},
		{"exit before job done", models.StatusActive, TriggerConfirmExit},
		{"job done before entry", models.StatusApproved, TriggerJobDone},
		{"submit twice", models.StatusSubmitted, TriggerSubmit},
		{"expire non-active", models.StatusApproved, TriggerExpire},
		{"reject completed", models.StatusCompleted, TriggerChainRejected},
		{"reject rejected", models.StatusRejected, TriggerChainRejected},
		{"anything from completed", models.StatusCompleted, TriggerConfirmEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := nextStatus(tt.current, tt.trigger)
			require.Error(t, err)
			assert.True(t, appErrors.IsInvalidTransition(err))
		})
	}
}

func TestNextStatusErrorNamesExpectedState(t *testing.T) {
	_, err := nextStatus(models.StatusSubmitted, TriggerConfirmEntry)
	require.Error(t, err)

	var invalid *appErrors.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "confirm entry", invalid.Action)
	assert.Equal(t, string(models.StatusSubmitted), invalid.From)
	assert.Equal(t, string(models.StatusApproved), invalid.Expected)
	assert.Contains(t, err.Error(), "expected APPROVED")
}

func TestEvaluateExtension(t *testing.T) {
	end := time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC)

	t.Run("not active", func(t *testing.T) {
		got := evaluateExtension(models.StatusApproved, &end, end.AddDate(0, 0, -1))
		assert.False(t, got.Eligible)
		assert.Contains(t, got.Reason, "APPROVED")
	})

	t.Run("no end time", func(t *testing.T) {
		got := evaluateExtension(models.StatusActive, nil, end)
		assert.False(t, got.Eligible)
		assert.Contains(t, got.Reason, "no scheduled end time")
	})

	t.Run("too early", func(t *testing.T) {
		now := end.AddDate(0, 0, -10)
		got := evaluateExtension(models.StatusActive, &end, now)
		assert.False(t, got.Eligible)
		assert.Contains(t, got.Reason, "opens on 2026-03-17")
	})

	t.Run("window boundary is inclusive", func(t *testing.T) {
		opens := end.AddDate(0, 0, -3)
		got := evaluateExtension(models.StatusActive, &end, opens)
		assert.True(t, got.Eligible)
		assert.Empty(t, got.Reason)
	})

	t.Run("inside window", func(t *testing.T) {
		got := evaluateExtension(models.StatusActive, &end, end.AddDate(0, 0, -1))
		assert.True(t, got.Eligible)
	})

	t.Run("one second before window opens", func(t *testing.T) {
		now := end.AddDate(0, 0, -3).Add(-time.Second)
		got := evaluateExtension(models.StatusActive, &end, now)
		assert.False(t, got.Eligible)
	})
}
