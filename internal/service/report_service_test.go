package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
)

type fakeStorage struct {
	bucket      string
	objectName  string
	contentType string
	body        []byte
	uploadErr   error
}

func (f *fakeStorage) Upload(_ context.Context, bucket, objectName, contentType string, reader io.Reader, size int64) (string, error) {
	f.bucket = bucket
	f.objectName = objectName
	f.contentType = contentType
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	f.body = body
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "https://storage.classtrack.example/" + bucket + "/" + objectName, nil
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	records := &memoryAttendanceRepo{}
	attendance := NewAttendanceService(records)
	storage := &fakeStorage{}
	svc := NewReportService(attendance, storage, "classtrack-reports")

	sessionID := uuid.New()
	distance := 7.3
	subject := uuid.New()
	if _, _, err := attendance.Record(ctx, subject, sessionID.String(), &distance); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	url, err := svc.ExportCSV(ctx, sessionID, []string{sessionID.String()})
	if err != nil {
		t.Fatalf("ExportCSV returned error: %v", err)
	}
	if !strings.Contains(url, "classtrack-reports") {
		t.Fatalf("unexpected url %q", url)
	}
	if storage.bucket != "classtrack-reports" || storage.contentType != "text/csv" {
		t.Fatalf("unexpected upload metadata: %+v", storage)
	}
	if !strings.HasPrefix(storage.objectName, "sessions/"+sessionID.String()+"/attendance-") {
		t.Fatalf("unexpected object name %q", storage.objectName)
	}

	csv := string(storage.body)
	if !strings.HasPrefix(csv, "subject_email,subject_name,distance_meters,recorded_at\n") {
		t.Fatalf("missing header row: %q", csv)
	}
	if !strings.Contains(csv, "7.3") {
		t.Fatalf("expected distance column, got %q", csv)
	}
}

func TestExportCSVUploadFailure(t *testing.T) {
	attendance := NewAttendanceService(&memoryAttendanceRepo{})
	svc := NewReportService(attendance, &fakeStorage{uploadErr: errors.New("bucket gone")}, "classtrack-reports")

	_, err := svc.ExportCSV(context.Background(), uuid.New(), []string{"key"})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}
