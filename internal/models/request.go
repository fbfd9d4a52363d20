package models

import "time"

// RequestType enumerates the kinds of enrollment exceptions a student may file.
type RequestType string

const (
	RequestTypeOverload      RequestType = "OVERLOAD"
	RequestTypeOverride      RequestType = "OVERRIDE"
	RequestTypeManualTagging RequestType = "MANUAL_TAGGING"
)

// Valid reports whether the type is a known enumeration value.
func (t RequestType) Valid() bool {
	switch t {
	case RequestTypeOverload, RequestTypeOverride, RequestTypeManualTagging:
		return true
	}
	return false
}

// RequestStatus enumerates the review lifecycle of a request.
// FOR_EVALUATION is the initial state; APPROVED and REJECTED are terminal
// by convention, though the engine does not forbid further transitions.
type RequestStatus string

const (
	StatusForEvaluation RequestStatus = "FOR_EVALUATION"
	StatusPending       RequestStatus = "PENDING"
	StatusDiscrepancy   RequestStatus = "DISCREPANCY"
	StatusApproved      RequestStatus = "APPROVED"
	StatusRejected      RequestStatus = "REJECTED"
)

// Valid reports whether the status is a known enumeration value.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusForEvaluation, StatusPending, StatusDiscrepancy, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// SubjectLine is one course/section entry attached to a request. Lines are
// created together with their request and never change afterwards.
type SubjectLine struct {
	ID        string  `db:"id" json:"id"`
	RequestID string  `db:"request_id" json:"request_id"`
	Code      string  `db:"code" json:"code"`
	Title     string  `db:"title" json:"title"`
	Units     int     `db:"units" json:"units"`
	Section   *string `db:"section" json:"section,omitempty"`
	Schedule  *string `db:"schedule" json:"schedule,omitempty"`
}

// Request is a student's submitted enrollment exception awaiting review.
// Status always mirrors the most recent status history entry; remarks hold
// the latest remark, denormalized from the ledger.
type Request struct {
	ID            string        `db:"id" json:"id"`
	Type          RequestType   `db:"type" json:"request_type"`
	Semester      string        `db:"semester" json:"semester"`
	Reason        *string       `db:"reason" json:"reason,omitempty"`
	Status        RequestStatus `db:"status" json:"status"`
	Remarks       *string       `db:"remarks" json:"remarks,omitempty"`
	RequestedByID string        `db:"requested_by_id" json:"requested_by_id"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`

	Subjects      []SubjectLine        `json:"subjects,omitempty"`
	StatusHistory []StatusHistoryEntry `json:"status_history,omitempty"`
}

// StatusHistoryEntry is one immutable audit record of a status change.
// Entries are appended in the same transaction as the request update and
// are never modified or deleted.
type StatusHistoryEntry struct {
	ID          string        `db:"id" json:"id"`
	RequestID   string        `db:"request_id" json:"request_id"`
	Status      RequestStatus `db:"status" json:"status"`
	Remark      *string       `db:"remark" json:"remark,omitempty"`
	ChangedByID string        `db:"changed_by_id" json:"changed_by_id"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// RequestDetail enriches Request with the submitting student's identity for
// staff-facing views.
type RequestDetail struct {
	Request
	StudentEmail string  `db:"student_email" json:"student_email"`
	StudentName  *string `db:"student_name" json:"student_name,omitempty"`
	StudentNo    *string `db:"student_no" json:"student_no,omitempty"`
	StudentPhone *string `db:"student_phone" json:"student_phone,omitempty"`
}

// RequestCounts aggregates a student's requests by status bucket. Computed
// from the requests table on demand, never stored.
type RequestCounts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Total    int `json:"total"`
}

// StudentRosterItem pairs a student profile with their request counts for
// the staff roster view.
type StudentRosterItem struct {
	StudentProfile
	Email    string        `db:"email" json:"email"`
	Role     UserRole      `db:"role" json:"role"`
	Requests RequestCounts `json:"requests"`
}
