package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-request-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-request-api/pkg/errors"
)

type workflowRepoStub struct {
	created      *models.Request
	createRemark string
	createErr    error

	updated      *models.Request
	updateErr    error
	updateID     string
	updateStatus models.RequestStatus
	updateRemark *string
	updateActor  string
}

func (s *workflowRepoStub) Create(ctx context.Context, request *models.Request, initialRemark string) error {
	if s.createErr != nil {
		return s.createErr
	}
	request.ID = "req-1"
	s.created = request
	s.createRemark = initialRemark
	return nil
}

func (s *workflowRepoStub) UpdateStatus(ctx context.Context, id string, status models.RequestStatus, remarks *string, actorID string) (*models.Request, error) {
	s.updateID = id
	s.updateStatus = status
	s.updateRemark = remarks
	s.updateActor = actorID
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	if s.updated != nil {
		return s.updated, nil
	}
	return &models.Request{ID: id, Status: status, Remarks: remarks}, nil
}

type auditStub struct {
	logs []*models.AuditLog
	err  error
}

func (s *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return s.err
}

func claimsFor(role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: role, Email: "user@example.edu"}
}

func TestWorkflowCreateForcesInitialStatus(t *testing.T) {
	repo := &workflowRepoStub{}
	audit := &auditStub{}
	svc := NewWorkflowService(repo, audit, nil, nil, nil, nil)

	request, err := svc.Create(context.Background(), claimsFor(models.RoleStudent), CreateRequestInput{
		Type:     models.RequestTypeOverload,
		Semester: "2026-1",
		Reason:   "graduating",
		Subjects: []SubjectLineInput{
			{Code: "CS401", Title: "Thesis 2", Units: 3},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusForEvaluation, request.Status)
	assert.Equal(t, "user-1", request.RequestedByID)
	assert.Equal(t, "Submitted for evaluation", repo.createRemark)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionRequestCreate, audit.logs[0].Action)
}

func TestWorkflowCreateRejectsNonStudents(t *testing.T) {
	for _, role := range []models.UserRole{models.RoleStaff, models.RoleChair, models.RoleAdmin} {
		svc := NewWorkflowService(&workflowRepoStub{}, nil, nil, nil, nil, nil)
		_, err := svc.Create(context.Background(), claimsFor(role), CreateRequestInput{
			Type:     models.RequestTypeOverride,
			Semester: "2026-1",
			Subjects: []SubjectLineInput{{Code: "CS101", Title: "Intro", Units: 3}},
		})
		require.Error(t, err)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code, "role %s", role)
	}
}

func TestWorkflowCreateValidatesSubjects(t *testing.T) {
	svc := NewWorkflowService(&workflowRepoStub{}, nil, nil, nil, nil, nil)

	cases := []struct {
		name  string
		input CreateRequestInput
	}{
		{
			name: "no subjects",
			input: CreateRequestInput{
				Type:     models.RequestTypeOverload,
				Semester: "2026-1",
			},
		},
		{
			name: "zero units",
			input: CreateRequestInput{
				Type:     models.RequestTypeOverload,
				Semester: "2026-1",
				Subjects: []SubjectLineInput{{Code: "CS101", Title: "Intro", Units: 0}},
			},
		},
		{
			name: "unknown type",
			input: CreateRequestInput{
				Type:     "SHIFTING",
				Semester: "2026-1",
				Subjects: []SubjectLineInput{{Code: "CS101", Title: "Intro", Units: 3}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), claimsFor(models.RoleStudent), tc.input)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
		})
	}
}

func TestWorkflowApplyStatusStaffTransitions(t *testing.T) {
	for _, status := range []models.RequestStatus{models.StatusForEvaluation, models.StatusPending, models.StatusDiscrepancy} {
		repo := &workflowRepoStub{}
		svc := NewWorkflowService(repo, nil, nil, nil, nil, nil)

		updated, err := svc.ApplyStatus(context.Background(), claimsFor(models.RoleStaff), "req-1", ApplyStatusInput{
			Status:  status,
			Remarks: "checked",
		})
		require.NoError(t, err, "status %s", status)
		assert.Equal(t, status, updated.Status)
		require.NotNil(t, repo.updateRemark)
		assert.Equal(t, "checked", *repo.updateRemark)
	}
}

func TestWorkflowApplyStatusChairOnlyDecisions(t *testing.T) {
	for _, status := range []models.RequestStatus{models.StatusApproved, models.StatusRejected} {
		repo := &workflowRepoStub{}
		svc := NewWorkflowService(repo, nil, nil, nil, nil, nil)

		_, err := svc.ApplyStatus(context.Background(), claimsFor(models.RoleStaff), "req-1", ApplyStatusInput{Status: status})
		require.Error(t, err, "status %s", status)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrChairOnly.Code, appErr.Code)
		assert.Equal(t, "Chairperson only", appErr.Message)
		assert.Empty(t, repo.updateID, "repository must not be touched on denial")
	}
}

func TestWorkflowApplyStatusChairAndAdminMayDecide(t *testing.T) {
	for _, role := range []models.UserRole{models.RoleChair, models.RoleAdmin} {
		repo := &workflowRepoStub{}
		svc := NewWorkflowService(repo, nil, nil, nil, nil, nil)

		updated, err := svc.ApplyStatus(context.Background(), claimsFor(role), "req-1", ApplyStatusInput{Status: models.StatusApproved})
		require.NoError(t, err, "role %s", role)
		assert.Equal(t, models.StatusApproved, updated.Status)
		assert.Equal(t, "user-1", repo.updateActor)
	}
}

func TestWorkflowApplyStatusStudentForbidden(t *testing.T) {
	repo := &workflowRepoStub{}
	svc := NewWorkflowService(repo, nil, nil, nil, nil, nil)

	_, err := svc.ApplyStatus(context.Background(), claimsFor(models.RoleStudent), "req-1", ApplyStatusInput{Status: models.StatusPending})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, repo.updateID)
}

func TestWorkflowApplyStatusClearsRemarksWhenOmitted(t *testing.T) {
	repo := &workflowRepoStub{}
	svc := NewWorkflowService(repo, nil, nil, nil, nil, nil)

	_, err := svc.ApplyStatus(context.Background(), claimsFor(models.RoleStaff), "req-1", ApplyStatusInput{Status: models.StatusPending})
	require.NoError(t, err)
	assert.Nil(t, repo.updateRemark)
}

func TestWorkflowApplyStatusUnknownRequest(t *testing.T) {
	repo := &workflowRepoStub{updateErr: sql.ErrNoRows}
	svc := NewWorkflowService(repo, nil, nil, nil, nil, nil)

	_, err := svc.ApplyStatus(context.Background(), claimsFor(models.RoleChair), "req-missing", ApplyStatusInput{Status: models.StatusApproved})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestWorkflowApplyStatusRejectsUnknownStatus(t *testing.T) {
	repo := &workflowRepoStub{}
	svc := NewWorkflowService(repo, nil, nil, nil, nil, nil)

	_, err := svc.ApplyStatus(context.Background(), claimsFor(models.RoleAdmin), "req-1", ApplyStatusInput{Status: "ARCHIVED"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.updateID)
}

func TestRoleMayEnterTable(t *testing.T) {
	assert.True(t, RoleMayEnter(models.RoleStaff, models.StatusPending))
	assert.True(t, RoleMayEnter(models.RoleStaff, models.StatusDiscrepancy))
	assert.False(t, RoleMayEnter(models.RoleStaff, models.StatusApproved))
	assert.False(t, RoleMayEnter(models.RoleStaff, models.StatusRejected))
	assert.True(t, RoleMayEnter(models.RoleChair, models.StatusRejected))
	assert.True(t, RoleMayEnter(models.RoleAdmin, models.StatusApproved))
	assert.False(t, RoleMayEnter(models.RoleStudent, models.StatusForEvaluation))
}
