package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-request-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-request-api/pkg/errors"
	"github.com/noah-isme/enrollment-request-api/pkg/export"
)

type requestReader interface {
	List(ctx context.Context, requestedByID string) ([]models.RequestDetail, error)
	FindDetailByID(ctx context.Context, id string) (*models.RequestDetail, error)
	SubjectsByRequestIDs(ctx context.Context, requestIDs []string) (map[string][]models.SubjectLine, error)
	HistoryByRequestID(ctx context.Context, requestID string) ([]models.StatusHistoryEntry, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type slipRenderer interface {
	Render(slip export.Slip) ([]byte, error)
}

// RequestService serves the read side of enrollment requests: listings,
// detail views, history and exports. Visibility follows the actor's role;
// students only ever see their own requests.
type RequestService struct {
	repo    requestReader
	cache   *CacheService
	listTTL time.Duration
	csv     csvRenderer
	pdf     slipRenderer
	logger  *zap.Logger
}

// NewRequestService constructs RequestService.
func NewRequestService(repo requestReader, cache *CacheService, listTTL time.Duration, csv csvRenderer, pdf slipRenderer, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{repo: repo, cache: cache, listTTL: listTTL, csv: csv, pdf: pdf, logger: logger}
}

// List returns the requests visible to the actor: students get their own,
// review staff get everything.
func (s *RequestService) List(ctx context.Context, actor *models.JWTClaims) ([]models.RequestDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		requests, err := s.repo.List(ctx, actor.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
		}
		if err := s.attachSubjects(ctx, requests); err != nil {
			return nil, err
		}
		return requests, nil
	}
	return s.ListAll(ctx, actor)
}

// ListAll returns every request with student identity attached. Reserved for
// review staff; the result is cached briefly since the review queue is the
// hottest listing.
func (s *RequestService) ListAll(ctx context.Context, actor *models.JWTClaims) ([]models.RequestDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.ErrForbidden
	}

	var cached []models.RequestDetail
	if hit, err := s.cache.Get(ctx, cacheKeyRequestsAll, &cached); err == nil && hit {
		return cached, nil
	}

	requests, err := s.repo.List(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	if err := s.attachSubjects(ctx, requests); err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cacheKeyRequestsAll, requests, s.listTTL); err != nil {
		s.logger.Warn("failed to cache request listing", zap.Error(err))
	}
	return requests, nil
}

// Get returns one request with subjects and full status history. Students may
// only read requests they filed.
func (s *RequestService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.RequestDetail, error) {
	detail, err := s.visibleDetail(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	subjects, err := s.repo.SubjectsByRequestIDs(ctx, []string{detail.ID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject lines")
	}
	detail.Subjects = subjects[detail.ID]

	history, err := s.repo.HistoryByRequestID(ctx, detail.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}
	detail.StatusHistory = history

	return detail, nil
}

// History returns the status ledger for a request, newest first, under the
// same visibility rules as Get.
func (s *RequestService) History(ctx context.Context, actor *models.JWTClaims, id string) ([]models.StatusHistoryEntry, error) {
	if _, err := s.visibleDetail(ctx, actor, id); err != nil {
		return nil, err
	}
	history, err := s.repo.HistoryByRequestID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}
	return history, nil
}

// ExportCSV renders the full request listing as CSV for review staff.
func (s *RequestService) ExportCSV(ctx context.Context, actor *models.JWTClaims) ([]byte, error) {
	requests, err := s.ListAll(ctx, actor)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Request ID", "Student No", "Student", "Email", "Type", "Semester", "Status", "Remarks", "Units", "Filed At"},
	}
	for _, request := range requests {
		units := 0
		for _, line := range request.Subjects {
			units += line.Units
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Request ID": request.ID,
			"Student No": deref(request.StudentNo),
			"Student":    deref(request.StudentName),
			"Email":      request.StudentEmail,
			"Type":       string(request.Type),
			"Semester":   request.Semester,
			"Status":     string(request.Status),
			"Remarks":    deref(request.Remarks),
			"Units":      strconv.Itoa(units),
			"Filed At":   request.CreatedAt.Format(time.RFC3339),
		})
	}

	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
	}
	return payload, nil
}

// ExportPDF renders a printable slip for one request, under the same
// visibility rules as Get.
func (s *RequestService) ExportPDF(ctx context.Context, actor *models.JWTClaims, id string) ([]byte, error) {
	detail, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	slip := export.Slip{
		Title: fmt.Sprintf("%s Request Slip", detail.Type),
		Fields: []export.SlipField{
			{Label: "Request ID", Value: detail.ID},
			{Label: "Student", Value: deref(detail.StudentName)},
			{Label: "Student No", Value: deref(detail.StudentNo)},
			{Label: "Email", Value: detail.StudentEmail},
			{Label: "Semester", Value: detail.Semester},
			{Label: "Status", Value: string(detail.Status)},
			{Label: "Remarks", Value: deref(detail.Remarks)},
			{Label: "Filed At", Value: detail.CreatedAt.Format("2006-01-02 15:04")},
		},
		Table: export.Dataset{
			Headers: []string{"Code", "Title", "Units", "Section", "Schedule"},
		},
	}
	for _, line := range detail.Subjects {
		slip.Table.Rows = append(slip.Table.Rows, map[string]string{
			"Code":     line.Code,
			"Title":    line.Title,
			"Units":    strconv.Itoa(line.Units),
			"Section":  deref(line.Section),
			"Schedule": deref(line.Schedule),
		})
	}

	payload, err := s.pdf.Render(slip)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
	}
	return payload, nil
}

func (s *RequestService) visibleDetail(ctx context.Context, actor *models.JWTClaims, id string) (*models.RequestDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if actor.Role == models.RoleStudent && detail.RequestedByID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return detail, nil
}

func (s *RequestService) attachSubjects(ctx context.Context, requests []models.RequestDetail) error {
	if len(requests) == 0 {
		return nil
	}
	ids := make([]string, len(requests))
	for i := range requests {
		ids[i] = requests[i].ID
	}
	subjects, err := s.repo.SubjectsByRequestIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject lines")
	}
	for i := range requests {
		requests[i].Subjects = subjects[requests[i].ID]
	}
	return nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
