package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-request-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-request-api/pkg/errors"
)

// initialRemark is written to the ledger when a student files a request.
const initialRemark = "Submitted for evaluation"

type workflowRepository interface {
	Create(ctx context.Context, request *models.Request, initialRemark string) error
	UpdateStatus(ctx context.Context, id string, status models.RequestStatus, remarks *string, actorID string) (*models.Request, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// transitionRoles is the per-target-status authorization table. Entering
// APPROVED or REJECTED is reserved for the chairperson and admin; every
// other status is open to the full review staff. Students never transition.
var transitionRoles = map[models.RequestStatus][]models.UserRole{
	models.StatusForEvaluation: {models.RoleStaff, models.RoleChair, models.RoleAdmin},
	models.StatusPending:       {models.RoleStaff, models.RoleChair, models.RoleAdmin},
	models.StatusDiscrepancy:   {models.RoleStaff, models.RoleChair, models.RoleAdmin},
	models.StatusApproved:      {models.RoleChair, models.RoleAdmin},
	models.StatusRejected:      {models.RoleChair, models.RoleAdmin},
}

// RoleMayEnter reports whether the role may transition a request into the
// target status.
func RoleMayEnter(role models.UserRole, target models.RequestStatus) bool {
	for _, allowed := range transitionRoles[target] {
		if role == allowed {
			return true
		}
	}
	return false
}

// SubjectLineInput describes one requested course/section.
type SubjectLineInput struct {
	Code     string `json:"code" validate:"required"`
	Title    string `json:"title" validate:"required"`
	Units    int    `json:"units" validate:"required,gt=0"`
	Section  string `json:"section"`
	Schedule string `json:"schedule"`
}

// CreateRequestInput describes a new enrollment request submission.
type CreateRequestInput struct {
	Type     models.RequestType `json:"request_type" validate:"required,oneof=OVERLOAD OVERRIDE MANUAL_TAGGING"`
	Semester string             `json:"semester" validate:"required"`
	Reason   string             `json:"reason"`
	Subjects []SubjectLineInput `json:"subjects" validate:"required,min=1,dive"`
}

// ApplyStatusInput describes a status transition. Remarks replace the
// request's current remarks; omitting them clears the field. The previous
// remark stays readable through the status history.
type ApplyStatusInput struct {
	Status  models.RequestStatus `json:"status" validate:"required,oneof=FOR_EVALUATION PENDING DISCREPANCY APPROVED REJECTED"`
	Remarks string               `json:"remarks"`
}

// WorkflowService is the request status workflow engine: it validates and
// applies status transitions against the authorization table and keeps the
// request row and the status history ledger consistent.
type WorkflowService struct {
	repo      workflowRepository
	audit     auditWriter
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWorkflowService constructs WorkflowService.
func NewWorkflowService(repo workflowRepository, audit auditWriter, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *WorkflowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{repo: repo, audit: audit, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// Create files a new request on behalf of the acting student. The request,
// its subject lines and the initial FOR_EVALUATION ledger entry are written
// as one atomic unit; client-supplied statuses are ignored.
func (s *WorkflowService) Create(ctx context.Context, actor *models.JWTClaims, input CreateRequestInput) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may file requests")
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}

	request := &models.Request{
		Type:          input.Type,
		Semester:      input.Semester,
		Reason:        optional(input.Reason),
		Status:        models.StatusForEvaluation,
		RequestedByID: actor.UserID,
		Subjects:      make([]models.SubjectLine, len(input.Subjects)),
	}
	for i, line := range input.Subjects {
		request.Subjects[i] = models.SubjectLine{
			Code:     line.Code,
			Title:    line.Title,
			Units:    line.Units,
			Section:  optional(line.Section),
			Schedule: optional(line.Schedule),
		}
	}

	if err := s.repo.Create(ctx, request, initialRemark); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	s.recordAudit(ctx, actor, models.AuditActionRequestCreate, request.ID, map[string]interface{}{
		"request_type": request.Type,
		"semester":     request.Semester,
		"subjects":     len(request.Subjects),
	})
	s.invalidateCaches(ctx)

	return request, nil
}

// ApplyStatus validates and applies a status transition. The request update
// and the ledger append commit in a single transaction; re-affirming the
// current status with a fresh remark is permitted.
func (s *WorkflowService) ApplyStatus(ctx context.Context, actor *models.JWTClaims, requestID string, input ApplyStatusInput) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	if !RoleMayEnter(actor.Role, input.Status) {
		if input.Status == models.StatusApproved || input.Status == models.StatusRejected {
			if actor.Role == models.RoleStaff {
				return nil, appErrors.ErrChairOnly
			}
		}
		return nil, appErrors.ErrForbidden
	}

	updated, err := s.repo.UpdateStatus(ctx, requestID, input.Status, optional(input.Remarks), actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request status")
	}

	s.metrics.RecordStatusChange(string(input.Status))
	s.recordAudit(ctx, actor, models.AuditActionStatusChange, requestID, map[string]interface{}{
		"status":  input.Status,
		"remarks": input.Remarks,
	})
	s.invalidateCaches(ctx)

	return updated, nil
}

func (s *WorkflowService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(values)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "requests",
		ResourceID: &resourceID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *WorkflowService) invalidateCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cacheKeyRequestsPattern); err != nil {
		s.logger.Warn("failed to invalidate request caches", zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx, cacheKeyRosterPattern); err != nil {
		s.logger.Warn("failed to invalidate roster cache", zap.Error(err))
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
