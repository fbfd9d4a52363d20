package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-request-api/internal/models"
)

// StudentRepository reads student profiles for the staff roster. Profiles
// are owned by registration; this repository never mutates them.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const profileColumns = `sp.id, sp.user_id, sp.student_no, sp.first_name, sp.last_name, sp.phone, sp.section, sp.year_level, sp.course, sp.created_at, sp.updated_at`

// ListRoster returns every student profile joined with account identity,
// ordered by student number.
func (r *StudentRepository) ListRoster(ctx context.Context) ([]models.StudentRosterItem, error) {
	const query = `SELECT ` + profileColumns + `, u.email AS email, u.role AS role
        FROM student_profiles sp
        JOIN users u ON u.id = sp.user_id
        ORDER BY sp.student_no ASC`
	var items []models.StudentRosterItem
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list student roster: %w", err)
	}
	return items, nil
}

// FindByUserID returns the profile linked to a user account, or nil when the
// account has none.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	const query = `SELECT id, user_id, student_no, first_name, last_name, phone, section, year_level, course, created_at, updated_at
        FROM student_profiles WHERE user_id = $1 LIMIT 1`
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find student profile: %w", err)
	}
	return &profile, nil
}
