package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-request-api/internal/models"
)

// RequestRepository handles persistence of enrollment requests, their
// subject lines and the append-only status history ledger.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, type, semester, reason, status, remarks, requested_by_id, created_at, updated_at`

const requestDetailQuery = `SELECT r.id, r.type, r.semester, r.reason, r.status, r.remarks, r.requested_by_id, r.created_at, r.updated_at,
        u.email AS student_email,
        NULLIF(TRIM(CONCAT(sp.first_name, ' ', sp.last_name)), '') AS student_name,
        sp.student_no AS student_no,
        sp.phone AS student_phone
        FROM requests r
        JOIN users u ON u.id = r.requested_by_id
        LEFT JOIN student_profiles sp ON sp.user_id = r.requested_by_id`

// Create persists a request together with its subject lines and the initial
// history entry as a single transaction. A partially created request must
// never be observable.
func (r *RequestRepository) Create(ctx context.Context, request *models.Request, initialRemark string) (err error) {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create request: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertRequest = `INSERT INTO requests (id, type, semester, reason, status, remarks, requested_by_id, created_at, updated_at)
        VALUES (:id, :type, :semester, :reason, :status, :remarks, :requested_by_id, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertRequest, request); err != nil {
		return fmt.Errorf("insert request: %w", err)
	}

	const insertSubject = `INSERT INTO subject_lines (id, request_id, code, title, units, section, schedule)
        VALUES (:id, :request_id, :code, :title, :units, :section, :schedule)`
	for i := range request.Subjects {
		request.Subjects[i].ID = uuid.NewString()
		request.Subjects[i].RequestID = request.ID
		if _, err = tx.NamedExecContext(ctx, insertSubject, request.Subjects[i]); err != nil {
			return fmt.Errorf("insert subject line: %w", err)
		}
	}

	entry := models.StatusHistoryEntry{
		ID:          uuid.NewString(),
		RequestID:   request.ID,
		Status:      request.Status,
		Remark:      &initialRemark,
		ChangedByID: request.RequestedByID,
		CreatedAt:   now,
	}
	const insertHistory = `INSERT INTO status_history (id, request_id, status, remark, changed_by_id, created_at)
        VALUES (:id, :request_id, :status, :remark, :changed_by_id, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertHistory, entry); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create request: %w", err)
	}
	request.StatusHistory = []models.StatusHistoryEntry{entry}
	return nil
}

// UpdateStatus applies a status transition: the request row update and the
// ledger append commit together or not at all. The request row is locked for
// the duration of the transaction; concurrent transitions serialize and the
// ledger keeps every entry. Returns sql.ErrNoRows when the id is unknown.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id string, status models.RequestStatus, remarks *string, actorID string) (updated *models.Request, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Request
	const lockQuery = `SELECT ` + requestColumns + ` FROM requests WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock request: %w", err)
	}

	now := time.Now().UTC()
	const updateQuery = `UPDATE requests SET status = $2, remarks = $3, updated_at = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, id, status, remarks, now); err != nil {
		return nil, fmt.Errorf("update request status: %w", err)
	}

	const insertHistory = `INSERT INTO status_history (id, request_id, status, remark, changed_by_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err = tx.ExecContext(ctx, insertHistory, uuid.NewString(), id, status, remarks, actorID, now); err != nil {
		return nil, fmt.Errorf("insert status history: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status update: %w", err)
	}

	current.Status = status
	current.Remarks = remarks
	current.UpdatedAt = now
	return &current, nil
}

// List returns request projections with student identity attached, newest
// first. An empty requestedByID returns every request.
func (r *RequestRepository) List(ctx context.Context, requestedByID string) ([]models.RequestDetail, error) {
	query := requestDetailQuery
	var args []interface{}
	if requestedByID != "" {
		query += " WHERE r.requested_by_id = $1"
		args = append(args, requestedByID)
	}
	query += " ORDER BY r.created_at DESC"

	var requests []models.RequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

// FindByID returns the bare request row.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.Request, error) {
	const query = `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	var request models.Request
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// FindDetailByID returns a request with student identity attached.
func (r *RequestRepository) FindDetailByID(ctx context.Context, id string) (*models.RequestDetail, error) {
	query := requestDetailQuery + " WHERE r.id = $1"
	var detail models.RequestDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// SubjectsByRequestIDs returns subject lines keyed by request ID.
func (r *RequestRepository) SubjectsByRequestIDs(ctx context.Context, requestIDs []string) (map[string][]models.SubjectLine, error) {
	result := make(map[string][]models.SubjectLine, len(requestIDs))
	if len(requestIDs) == 0 {
		return result, nil
	}
	placeholders := make([]string, len(requestIDs))
	args := make([]interface{}, len(requestIDs))
	for i, id := range requestIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, request_id, code, title, units, section, schedule FROM subject_lines WHERE request_id IN (%s) ORDER BY code ASC`, strings.Join(placeholders, ","))

	var lines []models.SubjectLine
	if err := r.db.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, fmt.Errorf("list subject lines: %w", err)
	}
	for _, line := range lines {
		result[line.RequestID] = append(result[line.RequestID], line)
	}
	return result, nil
}

// HistoryByRequestID returns the ledger for one request, newest first.
func (r *RequestRepository) HistoryByRequestID(ctx context.Context, requestID string) ([]models.StatusHistoryEntry, error) {
	const query = `SELECT id, request_id, status, remark, changed_by_id, created_at FROM status_history WHERE request_id = $1 ORDER BY created_at DESC`
	var entries []models.StatusHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, requestID); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return entries, nil
}

// CountsByStudent aggregates request counts per student and status bucket.
func (r *RequestRepository) CountsByStudent(ctx context.Context) (map[string]models.RequestCounts, error) {
	const query = `SELECT requested_by_id, status, COUNT(*) AS total FROM requests GROUP BY requested_by_id, status`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count requests: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]models.RequestCounts)
	for rows.Next() {
		var (
			studentID string
			status    models.RequestStatus
			total     int
		)
		if err := rows.Scan(&studentID, &status, &total); err != nil {
			return nil, fmt.Errorf("scan request counts: %w", err)
		}
		entry := counts[studentID]
		entry.Total += total
		switch status {
		case models.StatusForEvaluation, models.StatusPending:
			entry.Pending += total
		case models.StatusApproved:
			entry.Approved += total
		}
		counts[studentID] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request counts: %w", err)
	}
	return counts, nil
}
