package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/classtrack/attendance-api/internal/domain"
	"github.com/classtrack/attendance-api/internal/geo"
	"github.com/classtrack/attendance-api/internal/qrpayload"
	"github.com/classtrack/attendance-api/internal/util"
)

// emission is the payload a session currently displays. For session-reference
// sessions it is replaced on every tick; for self-contained sessions it is
// fixed for the session's lifetime.
type emission struct {
	payload string
	cancel  context.CancelFunc
}

// Rotator owns the per-session re-emission tasks. Rotation never touches the
// session row: id, anchor and expiry stay as issued, only the displayed
// artifact changes. Every task is cancelled on session end, on expiry, and on
// Shutdown, so no ticker outlives its session.
type Rotator struct {
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[uuid.UUID]*emission
}

func NewRotator(interval time.Duration) *Rotator {
	return &Rotator{
		interval: interval,
		now:      time.Now,
		entries:  make(map[uuid.UUID]*emission),
	}
}

// StartSelfContained emits the delimited payload once, carrying the token
// stored on the session. The token never changes for a session's lifetime,
// so a subject scanning at any point produces the same attendance key and a
// restarted process re-emits the identical payload.
func (r *Rotator) StartSelfContained(session *domain.Session, issuerIdentity string) (string, error) {
	token := uuid.NewString()
	if session.Token != nil && *session.Token != "" {
		token = *session.Token
	}
	p := qrpayload.Payload{
		Kind:           qrpayload.KindSelfContained,
		Token:          token,
		ExpiresAt:      session.ExpiresAt,
		IssuerIdentity: issuerIdentity,
	}
	if session.HasAnchor() {
		p.Anchor = anchorPoint(session)
	}
	encoded, err := qrpayload.Encode(p)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked(session.ID)
	r.entries[session.ID] = &emission{payload: encoded}
	return encoded, nil
}

// StartSessionRef emits the JSON session-reference payload and schedules
// re-emission every interval until the session expires or is stopped.
func (r *Rotator) StartSessionRef(session *domain.Session) (string, error) {
	encoded, err := r.emitSessionRef(session.ID)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.stopLocked(session.ID)
	r.entries[session.ID] = &emission{payload: encoded, cancel: cancel}
	r.mu.Unlock()

	go r.run(ctx, session)
	return encoded, nil
}

func (r *Rotator) run(ctx context.Context, session *domain.Session) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.now().Before(session.ExpiresAt) {
				r.Stop(session.ID)
				return
			}
			encoded, err := r.emitSessionRef(session.ID)
			if err != nil {
				continue
			}
			r.mu.Lock()
			if entry, ok := r.entries[session.ID]; ok {
				entry.payload = encoded
			}
			r.mu.Unlock()
		}
	}
}

func (r *Rotator) emitSessionRef(sessionID uuid.UUID) (string, error) {
	nonce, err := util.GenerateNumericNonce(6)
	if err != nil {
		return "", err
	}
	return qrpayload.Encode(qrpayload.Payload{
		Kind:      qrpayload.KindSessionRef,
		SessionID: sessionID,
		EmittedAt: r.now(),
		Nonce:     nonce,
	})
}

// Current returns the payload the session displays right now.
func (r *Rotator) Current(sessionID uuid.UUID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[sessionID]
	if !ok {
		return "", false
	}
	return entry.payload, true
}

// Stop cancels the session's rotation task and forgets its emission.
func (r *Rotator) Stop(sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked(sessionID)
}

func (r *Rotator) stopLocked(sessionID uuid.UUID) {
	if entry, ok := r.entries[sessionID]; ok {
		if entry.cancel != nil {
			entry.cancel()
		}
		delete(r.entries, sessionID)
	}
}

// Shutdown releases every running task. Called on process teardown.
func (r *Rotator) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, entry := range r.entries {
		if entry.cancel != nil {
			entry.cancel()
		}
		delete(r.entries, id)
	}
}

func anchorPoint(session *domain.Session) *geo.Point {
	return &geo.Point{Lat: *session.AnchorLat, Lng: *session.AnchorLng}
}
