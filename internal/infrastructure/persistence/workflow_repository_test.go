package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestUpdateEndTimeRefusesShortening(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewWorkflowRepository(db)
	newEnd := time.Now().AddDate(0, 0, 2)

	// Extension: the current end time is earlier, one row matches.
	mock.ExpectExec(regexp.QuoteMeta("SET end_time = ?")).
		WithArgs(newEnd, "wd-1", newEnd).
		WillReturnResult(sqlmock.NewResult(0, 1))

	extended, err := repo.UpdateEndTime(context.Background(), db, "wd-1", newEnd)
	assert.NoError(t, err)
	assert.True(t, extended)

	// Stale request with an earlier end time: the guard matches nothing.
	mock.ExpectExec(regexp.QuoteMeta("SET end_time = ?")).
		WithArgs(newEnd, "wd-1", newEnd).
		WillReturnResult(sqlmock.NewResult(0, 0))

	extended, err = repo.UpdateEndTime(context.Background(), db, "wd-1", newEnd)
	assert.NoError(t, err)
	assert.False(t, extended)

	assert.NoError(t, mock.ExpectationsWereMet())
}
