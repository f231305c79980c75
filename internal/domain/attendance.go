package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceRecord is one proven co-presence of a subject with a session.
// SessionKey is the session id for session-reference payloads or the
// displayed token for self-contained ones; the composite unique constraint
// on (session_key, subject_id) is what makes recording idempotent.
type AttendanceRecord struct {
	ID             uuid.UUID `db:"id" json:"id"`
	SessionKey     string    `db:"session_key" json:"session_key"`
	SubjectID      uuid.UUID `db:"subject_id" json:"subject_id"`
	DistanceMeters *float64  `db:"distance_meters" json:"distance_meters,omitempty"`
	RecordedAt     time.Time `db:"recorded_at" json:"recorded_at"`
}

// AttendanceListItem is a record joined with the subject's account fields,
// as shown on the issuer's roster.
type AttendanceListItem struct {
	ID             uuid.UUID `db:"id" json:"id"`
	SessionKey     string    `db:"session_key" json:"session_key"`
	SubjectID      uuid.UUID `db:"subject_id" json:"subject_id"`
	SubjectEmail   string    `db:"subject_email" json:"subject_email"`
	SubjectName    *string   `db:"subject_name" json:"subject_name,omitempty"`
	DistanceMeters *float64  `db:"distance_meters" json:"distance_meters,omitempty"`
	RecordedAt     time.Time `db:"recorded_at" json:"recorded_at"`
}
