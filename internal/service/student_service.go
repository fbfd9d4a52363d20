package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-request-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-request-api/pkg/errors"
)

type rosterReader interface {
	ListRoster(ctx context.Context) ([]models.StudentRosterItem, error)
}

type requestCounter interface {
	CountsByStudent(ctx context.Context) (map[string]models.RequestCounts, error)
}

// StudentService serves the staff-facing student roster with per-student
// request counters attached.
type StudentService struct {
	students  rosterReader
	requests  requestCounter
	cache     *CacheService
	rosterTTL time.Duration
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(students rosterReader, requests requestCounter, cache *CacheService, rosterTTL time.Duration, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{students: students, requests: requests, cache: cache, rosterTTL: rosterTTL, logger: logger}
}

// ListWithRequestCounts returns the roster for review staff, each entry
// carrying pending/approved/total request counts.
func (s *StudentService) ListWithRequestCounts(ctx context.Context, actor *models.JWTClaims) ([]models.StudentRosterItem, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.ErrForbidden
	}

	var cached []models.StudentRosterItem
	if hit, err := s.cache.Get(ctx, cacheKeyRoster, &cached); err == nil && hit {
		return cached, nil
	}

	roster, err := s.students.ListRoster(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	counts, err := s.requests.CountsByStudent(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests")
	}
	for i := range roster {
		roster[i].Requests = counts[roster[i].UserID]
	}

	if err := s.cache.Set(ctx, cacheKeyRoster, roster, s.rosterTTL); err != nil {
		s.logger.Warn("failed to cache student roster", zap.Error(err))
	}
	return roster, nil
}
