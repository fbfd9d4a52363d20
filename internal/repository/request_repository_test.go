package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-request-api/internal/models"
)

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func strPtr(s string) *string { return &s }

func TestRequestRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subject_lines")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO status_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	request := &models.Request{
		Type:          models.RequestTypeOverload,
		Semester:      "2026-1",
		Status:        models.StatusForEvaluation,
		RequestedByID: "student-1",
		Subjects: []models.SubjectLine{
			{Code: "CS101", Title: "Intro to Computing", Units: 3},
		},
	}

	err := repo.Create(context.Background(), request, "Submitted for evaluation")
	require.NoError(t, err)
	assert.NotEmpty(t, request.ID)
	require.Len(t, request.StatusHistory, 1)
	assert.Equal(t, models.StatusForEvaluation, request.StatusHistory[0].Status)
	require.NotNil(t, request.StatusHistory[0].Remark)
	assert.Equal(t, "Submitted for evaluation", *request.StatusHistory[0].Remark)
	assert.Equal(t, "student-1", request.StatusHistory[0].ChangedByID)
	assert.Equal(t, request.ID, request.Subjects[0].RequestID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryCreateRollsBackOnSubjectFailure(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subject_lines")).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	request := &models.Request{
		Type:          models.RequestTypeOverride,
		Semester:      "2026-1",
		Status:        models.StatusForEvaluation,
		RequestedByID: "student-1",
		Subjects: []models.SubjectLine{
			{Code: "CS102", Title: "Data Structures", Units: 3},
		},
	}

	err := repo.Create(context.Background(), request, "Submitted for evaluation")
	require.Error(t, err)
	assert.Empty(t, request.StatusHistory)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "type", "semester", "reason", "status", "remarks", "requested_by_id", "created_at", "updated_at"}).
		AddRow("req-1", "OVERLOAD", "2026-1", nil, "PENDING", nil, "student-1", now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM requests WHERE id = $1 FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status = $2, remarks = $3, updated_at = $4")).
		WithArgs("req-1", "APPROVED", "cleared by chair", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO status_history")).
		WithArgs(sqlmock.AnyArg(), "req-1", "APPROVED", "cleared by chair", "chair-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	updated, err := repo.UpdateStatus(context.Background(), "req-1", models.StatusApproved, strPtr("cleared by chair"), "chair-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)
	require.NotNil(t, updated.Remarks)
	assert.Equal(t, "cleared by chair", *updated.Remarks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateStatusUnknownID(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("req-missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	updated, err := repo.UpdateStatus(context.Background(), "req-missing", models.StatusPending, nil, "staff-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.Nil(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateStatusRollsBackOnLedgerFailure(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "type", "semester", "reason", "status", "remarks", "requested_by_id", "created_at", "updated_at"}).
		AddRow("req-1", "OVERLOAD", "2026-1", nil, "PENDING", nil, "student-1", now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO status_history")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	updated, err := repo.UpdateStatus(context.Background(), "req-1", models.StatusApproved, nil, "chair-1")
	require.Error(t, err)
	assert.Nil(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListScoped(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "type", "semester", "reason", "status", "remarks", "requested_by_id", "created_at", "updated_at", "student_email", "student_name", "student_no", "student_phone"}).
		AddRow("req-1", "OVERLOAD", "2026-1", nil, "FOR_EVALUATION", nil, "student-1", now, now, "ana@example.edu", "Ana Cruz", "2023-00123", nil)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.requested_by_id = $1")).
		WithArgs("student-1").
		WillReturnRows(rows)

	requests, err := repo.List(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "req-1", requests[0].ID)
	assert.Equal(t, "ana@example.edu", requests[0].StudentEmail)
	require.NotNil(t, requests[0].StudentName)
	assert.Equal(t, "Ana Cruz", *requests[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryHistoryByRequestID(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	later := time.Now().UTC()
	earlier := later.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"id", "request_id", "status", "remark", "changed_by_id", "created_at"}).
		AddRow("hist-2", "req-1", "PENDING", "endorsed", "staff-1", later).
		AddRow("hist-1", "req-1", "FOR_EVALUATION", "Submitted for evaluation", "student-1", earlier)

	mock.ExpectQuery(regexp.QuoteMeta("FROM status_history WHERE request_id = $1 ORDER BY created_at DESC")).
		WithArgs("req-1").
		WillReturnRows(rows)

	history, err := repo.HistoryByRequestID(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.StatusPending, history[0].Status)
	assert.Equal(t, models.StatusForEvaluation, history[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryCountsByStudent(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	rows := sqlmock.NewRows([]string{"requested_by_id", "status", "total"}).
		AddRow("student-1", "FOR_EVALUATION", 2).
		AddRow("student-1", "PENDING", 1).
		AddRow("student-1", "APPROVED", 3).
		AddRow("student-2", "REJECTED", 1)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY requested_by_id, status")).
		WillReturnRows(rows)

	counts, err := repo.CountsByStudent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RequestCounts{Pending: 3, Approved: 3, Total: 6}, counts["student-1"])
	assert.Equal(t, models.RequestCounts{Pending: 0, Approved: 0, Total: 1}, counts["student-2"])
	require.NoError(t, mock.ExpectationsWereMet())
}
