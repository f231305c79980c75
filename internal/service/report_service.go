package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/classtrack/attendance-api/internal/repository/ports"
)

// ReportService exports a session's roster as CSV to object storage and
// hands back the object URL.
type ReportService struct {
	attendance *AttendanceService
	storage    ports.ObjectStorage
	bucket     string
	now        func() time.Time
}

func NewReportService(attendance *AttendanceService, storage ports.ObjectStorage, bucket string) *ReportService {
	return &ReportService{
		attendance: attendance,
		storage:    storage,
		bucket:     bucket,
		now:        time.Now,
	}
}

func (s *ReportService) ExportCSV(ctx context.Context, sessionID uuid.UUID, keys []string) (string, error) {
	items, err := s.attendance.ListByKeys(ctx, keys)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"subject_email", "subject_name", "distance_meters", "recorded_at"})
	for _, item := range items {
		name := ""
		if item.SubjectName != nil {
			name = *item.SubjectName
		}
		distance := ""
		if item.DistanceMeters != nil {
			distance = strconv.FormatFloat(*item.DistanceMeters, 'f', 1, 64)
		}
		_ = w.Write([]string{
			item.SubjectEmail,
			name,
			distance,
			item.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	objectName := fmt.Sprintf("sessions/%s/attendance-%s.csv",
		sessionID, s.now().UTC().Format("20060102T150405Z"))

	url, err := s.storage.Upload(ctx, s.bucket, objectName, "text/csv",
		bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return url, nil
}
