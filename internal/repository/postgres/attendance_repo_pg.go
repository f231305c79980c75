package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/classtrack/attendance-api/internal/domain"
	"github.com/classtrack/attendance-api/internal/repository/ports"
)

type AttendanceRepository struct {
	db *sqlx.DB
}

func NewAttendanceRepo(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Insert makes no existence pre-check; a duplicate surfaces as the unique
// constraint violation on (session_key, subject_id) and is classified by
// the service layer.
func (r *AttendanceRepository) Insert(ctx context.Context, record *domain.AttendanceRecord) (*domain.AttendanceRecord, error) {
	const query = `
		INSERT INTO attendance_record (session_key, subject_id, distance_meters, recorded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, session_key, subject_id, distance_meters, recorded_at
	`
	row := r.db.QueryRowxContext(ctx, query,
		record.SessionKey, record.SubjectID, record.DistanceMeters, record.RecordedAt)

	var stored domain.AttendanceRecord
	if err := row.StructScan(&stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *AttendanceRepository) ListByKeys(ctx context.Context, keys []string) ([]domain.AttendanceListItem, error) {
	const query = `
		SELECT
			a.id,
			a.session_key,
			a.subject_id,
			u.email AS subject_email,
			u.full_name AS subject_name,
			a.distance_meters,
			a.recorded_at
		FROM attendance_record a
		JOIN user_account u ON u.id = a.subject_id
		WHERE a.session_key = ANY($1)
		ORDER BY a.recorded_at ASC, a.id ASC
	`
	rows, err := r.db.QueryxContext(ctx, query, pq.Array(keys))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.AttendanceListItem, 0)
	for rows.Next() {
		var item domain.AttendanceListItem
		if err := rows.StructScan(&item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

var _ ports.AttendanceRepository = (*AttendanceRepository)(nil)
