package service

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/classtrack/attendance-api/internal/domain"
)

func TestRotatorSelfContainedEmissionIsStable(t *testing.T) {
	r := NewRotator(10 * time.Millisecond)
	session := &domain.Session{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Minute),
	}

	first, err := r.StartSelfContained(session, "teacher@classtrack.example")
	if err != nil {
		t.Fatalf("StartSelfContained returned error: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	current, ok := r.Current(session.ID)
	if !ok || current != first {
		t.Fatalf("self-contained emission should not rotate: %q vs %q", current, first)
	}
}

func TestRotatorStopForgetsEmission(t *testing.T) {
	r := NewRotator(10 * time.Millisecond)
	session := &domain.Session{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Minute),
	}

	if _, err := r.StartSessionRef(session); err != nil {
		t.Fatalf("StartSessionRef returned error: %v", err)
	}
	r.Stop(session.ID)

	if _, ok := r.Current(session.ID); ok {
		t.Fatal("stopped session should have no emission")
	}
	// Stopping again is harmless.
	r.Stop(session.ID)
}

func TestRotatorStopsAtExpiry(t *testing.T) {
	r := NewRotator(5 * time.Millisecond)
	session := &domain.Session{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(20 * time.Millisecond),
	}

	if _, err := r.StartSessionRef(session); err != nil {
		t.Fatalf("StartSessionRef returned error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := r.Current(session.ID); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("rotation task did not release itself after expiry")
}

func TestRotatorShutdownReleasesEverything(t *testing.T) {
	r := NewRotator(10 * time.Millisecond)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		session := &domain.Session{
			ID:        uuid.New(),
			CreatedAt: time.Now(),
			ExpiresAt: time.Now().Add(time.Minute),
		}
		if _, err := r.StartSessionRef(session); err != nil {
			t.Fatalf("StartSessionRef returned error: %v", err)
		}
		ids = append(ids, session.ID)
	}

	r.Shutdown()
	for _, id := range ids {
		if _, ok := r.Current(id); ok {
			t.Fatalf("session %s still has an emission after shutdown", id)
		}
	}
}
