package service

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-request-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-request-api/pkg/errors"
	"github.com/noah-isme/enrollment-request-api/pkg/export"
)

type requestReaderStub struct {
	listItems  []models.RequestDetail
	listErr    error
	listScope  []string
	detail     *models.RequestDetail
	detailErr  error
	subjects   map[string][]models.SubjectLine
	history    []models.StatusHistoryEntry
	historyErr error
}

func (s *requestReaderStub) List(ctx context.Context, requestedByID string) ([]models.RequestDetail, error) {
	s.listScope = append(s.listScope, requestedByID)
	return s.listItems, s.listErr
}

func (s *requestReaderStub) FindDetailByID(ctx context.Context, id string) (*models.RequestDetail, error) {
	if s.detailErr != nil {
		return nil, s.detailErr
	}
	return s.detail, nil
}

func (s *requestReaderStub) SubjectsByRequestIDs(ctx context.Context, requestIDs []string) (map[string][]models.SubjectLine, error) {
	if s.subjects == nil {
		return map[string][]models.SubjectLine{}, nil
	}
	return s.subjects, nil
}

func (s *requestReaderStub) HistoryByRequestID(ctx context.Context, requestID string) ([]models.StatusHistoryEntry, error) {
	return s.history, s.historyErr
}

func detailFor(studentID string) *models.RequestDetail {
	return &models.RequestDetail{
		Request: models.Request{
			ID:            "req-1",
			Type:          models.RequestTypeOverload,
			Semester:      "2026-1",
			Status:        models.StatusPending,
			RequestedByID: studentID,
			CreatedAt:     time.Now().UTC(),
		},
		StudentEmail: "ana@example.edu",
	}
}

func newRequestService(repo *requestReaderStub) *RequestService {
	return NewRequestService(repo, nil, time.Minute, export.NewCSVExporter(), export.NewPDFExporter(), nil)
}

func TestRequestListScopesStudents(t *testing.T) {
	repo := &requestReaderStub{listItems: []models.RequestDetail{*detailFor("user-1")}}
	svc := newRequestService(repo)

	requests, err := svc.List(context.Background(), claimsFor(models.RoleStudent))
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Len(t, repo.listScope, 1)
	assert.Equal(t, "user-1", repo.listScope[0])
}

func TestRequestListStaffSeesEverything(t *testing.T) {
	repo := &requestReaderStub{listItems: []models.RequestDetail{*detailFor("student-1"), *detailFor("student-2")}}
	svc := newRequestService(repo)

	requests, err := svc.List(context.Background(), claimsFor(models.RoleStaff))
	require.NoError(t, err)
	assert.Len(t, requests, 2)
	require.Len(t, repo.listScope, 1)
	assert.Equal(t, "", repo.listScope[0])
}

func TestRequestListAllForbiddenForStudents(t *testing.T) {
	svc := newRequestService(&requestReaderStub{})

	_, err := svc.ListAll(context.Background(), claimsFor(models.RoleStudent))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestRequestGetOwnerAndStaff(t *testing.T) {
	repo := &requestReaderStub{
		detail: detailFor("user-1"),
		history: []models.StatusHistoryEntry{
			{ID: "hist-1", RequestID: "req-1", Status: models.StatusPending},
		},
		subjects: map[string][]models.SubjectLine{
			"req-1": {{ID: "line-1", RequestID: "req-1", Code: "CS101", Title: "Intro", Units: 3}},
		},
	}
	svc := newRequestService(repo)

	for _, role := range []models.UserRole{models.RoleStudent, models.RoleStaff, models.RoleChair, models.RoleAdmin} {
		detail, err := svc.Get(context.Background(), claimsFor(role), "req-1")
		require.NoError(t, err, "role %s", role)
		assert.Len(t, detail.Subjects, 1)
		assert.Len(t, detail.StatusHistory, 1)
	}
}

func TestRequestGetForbiddenForNonOwnerStudent(t *testing.T) {
	repo := &requestReaderStub{detail: detailFor("someone-else")}
	svc := newRequestService(repo)

	_, err := svc.Get(context.Background(), claimsFor(models.RoleStudent), "req-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestRequestGetNotFound(t *testing.T) {
	repo := &requestReaderStub{detailErr: sql.ErrNoRows}
	svc := newRequestService(repo)

	_, err := svc.Get(context.Background(), claimsFor(models.RoleStaff), "req-missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestRequestHistoryVisibility(t *testing.T) {
	repo := &requestReaderStub{
		detail: detailFor("someone-else"),
		history: []models.StatusHistoryEntry{
			{ID: "hist-2", Status: models.StatusPending},
			{ID: "hist-1", Status: models.StatusForEvaluation},
		},
	}
	svc := newRequestService(repo)

	history, err := svc.History(context.Background(), claimsFor(models.RoleStaff), "req-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = svc.History(context.Background(), claimsFor(models.RoleStudent), "req-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestRequestExportCSV(t *testing.T) {
	remarks := "needs prereq check"
	item := *detailFor("student-1")
	item.Remarks = &remarks
	repo := &requestReaderStub{
		listItems: []models.RequestDetail{item},
		subjects: map[string][]models.SubjectLine{
			"req-1": {{Code: "CS101", Title: "Intro", Units: 3}},
		},
	}
	svc := newRequestService(repo)

	payload, err := svc.ExportCSV(context.Background(), claimsFor(models.RoleStaff))
	require.NoError(t, err)
	assert.True(t, bytes.Contains(payload, []byte("Request ID")))
	assert.True(t, bytes.Contains(payload, []byte("req-1")))
	assert.True(t, bytes.Contains(payload, []byte("needs prereq check")))

	_, err = svc.ExportCSV(context.Background(), claimsFor(models.RoleStudent))
	require.Error(t, err)
}

func TestRequestExportPDF(t *testing.T) {
	repo := &requestReaderStub{
		detail: detailFor("user-1"),
		subjects: map[string][]models.SubjectLine{
			"req-1": {{Code: "CS101", Title: "Intro", Units: 3}},
		},
	}
	svc := newRequestService(repo)

	payload, err := svc.ExportPDF(context.Background(), claimsFor(models.RoleStudent), "req-1")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}
