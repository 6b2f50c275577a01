package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permitworks/backend/internal/domain/models"
)

func recordRow(id string, kind models.SlotKind, level int, status models.RecordStatus, now time.Time) []driverValue {
	return []driverValue{
		id, "app-1", "wd-1", nil, string(kind), level, string(status),
		nil, nil, "", "Approver", "", nil, now, now,
	}
}

type driverValue = driver.Value

func recordRows(now time.Time, rows ...[]driverValue) *sqlmock.Rows {
	cols := []string{"id", "application_id", "workflow_data_id", "slot_id", "kind", "level", "status",
		"approver_id", "group_id", "approver_name", "role_name", "remarks", "decided_at", "created_time", "updated_time"}
	r := sqlmock.NewRows(cols)
	for _, row := range rows {
		r.AddRow(row...)
	}
	return r
}

func TestUpdateDecisionGuardedByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewApprovalRepository(db)
	now := time.Now()

	// First writer wins: the PENDING guard matches one row.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_record")).
		WithArgs(models.RecordApproved, "user-1", "Alice", "ok", now, now, "rec-1", models.RecordPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := repo.UpdateDecision(context.Background(), db, "rec-1", models.RecordApproved, "user-1", "Alice", "ok", now)
	assert.NoError(t, err)
	assert.True(t, updated)

	// Second writer loses: the record is no longer PENDING, zero rows match.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_record")).
		WithArgs(models.RecordRejected, "user-2", "Bob", "", now, now, "rec-1", models.RecordPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err = repo.UpdateDecision(context.Background(), db, "rec-1", models.RecordRejected, "user-2", "Bob", "", now)
	assert.NoError(t, err)
	assert.False(t, updated)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteOnlyMovesWaitingRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewApprovalRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_record")).
		WithArgs(models.RecordPending, now, "rec-2", models.RecordWaiting).
		WillReturnResult(sqlmock.NewResult(0, 1))

	promoted, err := repo.Promote(context.Background(), db, "rec-2", now)
	assert.NoError(t, err)
	assert.True(t, promoted)

	// Already promoted by the same decision being retried.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_record")).
		WithArgs(models.RecordPending, now, "rec-2", models.RecordWaiting).
		WillReturnResult(sqlmock.NewResult(0, 0))

	promoted, err = repo.Promote(context.Background(), db, "rec-2", now)
	assert.NoError(t, err)
	assert.False(t, promoted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCompletionRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewApprovalRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM approval_record")).
		WithArgs("app-1", models.SlotCompletion).
		WillReturnRows(recordRows(now, recordRow("rec-c", models.SlotCompletion, models.CompletionSlotLevel, models.RecordPending, now)))

	rec, err := repo.GetCompletionRecord(context.Background(), db, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.SlotCompletion, rec.Kind)
	assert.Equal(t, models.CompletionSlotLevel, rec.Level)

	// No completion record injected yet.
	mock.ExpectQuery(regexp.QuoteMeta("FROM approval_record")).
		WithArgs("app-2", models.SlotCompletion).
		WillReturnRows(recordRows(now))

	_, err = repo.GetCompletionRecord(context.Background(), db, "app-2")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByApplicationOrdersByLevel(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewApprovalRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY level ASC")).
		WithArgs("app-1").
		WillReturnRows(recordRows(now,
			recordRow("rec-1", models.SlotStandard, 1, models.RecordApproved, now),
			recordRow("rec-2", models.SlotStandard, 2, models.RecordPending, now),
		))

	records, err := repo.ListByApplication(context.Background(), db, "app-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Level)
	assert.Equal(t, models.RecordPending, records[1].Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingForApproverIncludesGroups(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewApprovalRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("group_id IN (?, ?)")).
		WithArgs(models.RecordPending, "user-1", "grp-1", "grp-2").
		WillReturnRows(recordRows(now, recordRow("rec-2", models.SlotStandard, 2, models.RecordPending, now)))

	records, err := repo.ListPendingForApprover(context.Background(), "user-1", []string{"grp-1", "grp-2"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-2", records[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}
