package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/classtrack/attendance-api/internal/domain"
	"github.com/classtrack/attendance-api/internal/repository/ports"
)

// ErrPersistence wraps any store failure other than the duplicate
// constraint. It is the one retryable error class in the protocol.
var ErrPersistence = errors.New("attendance store unavailable")

type RecordOutcome string

const (
	OutcomeRecorded  RecordOutcome = "recorded"
	OutcomeDuplicate RecordOutcome = "duplicate"
)

// AttendanceService records verification outcomes, one per
// (subject, session key). The insert is unconditional: there is no
// existence pre-check, so two concurrent identical scans race only inside
// the store, where the unique constraint settles it.
type AttendanceService struct {
	records ports.AttendanceRepository
	now     func() time.Time
}

func NewAttendanceService(records ports.AttendanceRepository) *AttendanceService {
	return &AttendanceService{records: records, now: time.Now}
}

func (s *AttendanceService) Record(ctx context.Context, subjectID uuid.UUID, sessionKey string, distanceMeters *float64) (*domain.AttendanceRecord, RecordOutcome, error) {
	record := &domain.AttendanceRecord{
		SessionKey:     sessionKey,
		SubjectID:      subjectID,
		DistanceMeters: distanceMeters,
		RecordedAt:     s.now(),
	}

	stored, err := s.records.Insert(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, OutcomeDuplicate, nil
		}
		return nil, "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return stored, OutcomeRecorded, nil
}

func (s *AttendanceService) ListByKeys(ctx context.Context, keys []string) ([]domain.AttendanceListItem, error) {
	items, err := s.records.ListByKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return items, nil
}
