package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permitworks/backend/internal/domain/models"
)

func applicationRows(rows ...[]driverValue) *sqlmock.Rows {
	cols := []string{"id", "permit_type_id", "workflow_data_id", "location_id", "applicant_id",
		"name", "status", "created_by", "updated_by", "created_time", "updated_time"}
	r := sqlmock.NewRows(cols)
	for _, row := range rows {
		r.AddRow(row...)
	}
	return r
}

func TestGetApplicationWithoutWorkWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewApplicationRepository(db)
	now := time.Now()

	// Drafts have no bound work window; the column is NULL.
	mock.ExpectQuery(regexp.QuoteMeta("FROM application")).
		WithArgs("app-1").
		WillReturnRows(applicationRows([]driverValue{
			"app-1", "pt-1", nil, "loc-1", "user-1", "Hot work bay 3", string(models.StatusDraft),
			"user-1", "user-1", now, now,
		}))

	app, err := repo.Get(context.Background(), db, "app-1")
	require.NoError(t, err)
	assert.Nil(t, app.WorkflowDataID)
	assert.Equal(t, models.StatusDraft, app.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusStampsAudit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewApplicationRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE application")).
		WithArgs(models.StatusActive, "sec-1", now, "app-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpdateStatus(context.Background(), db, "app-1", models.StatusActive, "sec-1", now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindExpiredActiveIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewApplicationRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("wd.end_time < ?")).
		WithArgs(models.StatusActive, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("app-1").AddRow("app-2"))

	ids, err := repo.FindExpiredActiveIDs(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []string{"app-1", "app-2"}, ids)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBindWorkflowData(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewApplicationRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("SET workflow_data_id = ?")).
		WithArgs("wd-1", now, "app-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.BindWorkflowData(context.Background(), db, "app-1", "wd-1", now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
