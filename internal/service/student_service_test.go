package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-request-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-request-api/pkg/errors"
)

type rosterStub struct {
	items []models.StudentRosterItem
	err   error
}

func (s *rosterStub) ListRoster(ctx context.Context) ([]models.StudentRosterItem, error) {
	return s.items, s.err
}

type countsStub struct {
	counts map[string]models.RequestCounts
	err    error
}

func (s *countsStub) CountsByStudent(ctx context.Context) (map[string]models.RequestCounts, error) {
	return s.counts, s.err
}

func TestStudentRosterForbiddenForStudents(t *testing.T) {
	svc := NewStudentService(&rosterStub{}, &countsStub{}, nil, time.Minute, nil)

	_, err := svc.ListWithRequestCounts(context.Background(), claimsFor(models.RoleStudent))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestStudentRosterMergesRequestCounts(t *testing.T) {
	roster := &rosterStub{items: []models.StudentRosterItem{
		{StudentProfile: models.StudentProfile{UserID: "student-1", StudentNo: "2023-00123"}},
		{StudentProfile: models.StudentProfile{UserID: "student-2", StudentNo: "2023-00456"}},
	}}
	counts := &countsStub{counts: map[string]models.RequestCounts{
		"student-1": {Pending: 2, Approved: 1, Total: 4},
	}}
	svc := NewStudentService(roster, counts, nil, time.Minute, nil)

	items, err := svc.ListWithRequestCounts(context.Background(), claimsFor(models.RoleStaff))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, models.RequestCounts{Pending: 2, Approved: 1, Total: 4}, items[0].Requests)
	assert.Equal(t, models.RequestCounts{}, items[1].Requests)
}
