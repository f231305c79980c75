package ports

import (
	"context"

	"github.com/classtrack/attendance-api/internal/domain"
)

type AttendanceRepository interface {
	// Insert attempts the write unconditionally; the store's unique
	// constraint on (session_key, subject_id) is the only duplicate check.
	Insert(ctx context.Context, record *domain.AttendanceRecord) (*domain.AttendanceRecord, error)
	// ListByKeys returns the roster for every given session key, joined
	// with subject account fields.
	ListByKeys(ctx context.Context, keys []string) ([]domain.AttendanceListItem, error)
}
