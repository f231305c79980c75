package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/classtrack/attendance-api/internal/domain"
	"github.com/classtrack/attendance-api/internal/geo"
	"github.com/classtrack/attendance-api/internal/qrpayload"
	"github.com/classtrack/attendance-api/internal/repository/ports"
)

// State names a step of the verification machine. Transitions only move
// forward; a new scan starts a fresh attempt at StateIdle.
type State string

const (
	StateIdle             State = "idle"
	StateDecoded          State = "decoded"
	StateExpiryChecked    State = "expiry_checked"
	StateLocationAcquired State = "location_acquired"
	StateProximityChecked State = "proximity_checked"
	StateIdentityResolved State = "identity_resolved"
	StateRecorded         State = "recorded"
	StateRejected         State = "rejected"
)

// Reason is the stable machine-readable code attached to every terminal
// outcome that is not a plain recording.
type Reason string

const (
	ReasonMalformedPayload    Reason = "malformed_payload"
	ReasonExpired             Reason = "expired"
	ReasonLocationUnavailable Reason = "location_unavailable"
	ReasonAccuracyTooLow      Reason = "accuracy_too_low"
	ReasonOutOfRange          Reason = "out_of_range"
	ReasonNotAuthenticated    Reason = "not_authenticated"
	ReasonDuplicateSubmission Reason = "duplicate_submission"
	ReasonPersistenceFailure  Reason = "persistence_failure"
)

// Outcome is the terminal result of one attempt. AlreadyRecorded marks the
// duplicate-submission case, which is success-adjacent: attendance exists,
// nothing to retry. Retryable is set only for persistence failures.
type Outcome struct {
	State           State
	Reason          Reason
	Message         string
	DistanceMeters  *float64
	Record          *domain.AttendanceRecord
	AlreadyRecorded bool
	Retryable       bool
}

// ErrAttemptInFlight is returned when a scan arrives for a scanner whose
// previous attempt has not finished. The new event is dropped, never queued,
// so one physical scan cannot produce concurrent inserts.
var ErrAttemptInFlight = errors.New("verification attempt already in flight")

// LocationSource yields the subject's current fix. Acquisition is the only
// suspending step of the flow and always runs under the configured timeout.
type LocationSource interface {
	Acquire(ctx context.Context) (geo.Sample, error)
}

// IdentityResolver yields the authenticated subject. Absence is signalled
// with ErrNotAuthenticated (or a nil user); any other error is treated as an
// infrastructure failure the subject may retry.
type IdentityResolver interface {
	Resolve(ctx context.Context) (*domain.User, error)
}

type VerificationConfig struct {
	Validator       geo.Validator
	LocationTimeout time.Duration
}

// VerificationService drives the subject-side state machine. Gates run in a
// fixed order (decode, expiry, location, proximity, identity, record) and the
// first failed gate short-circuits the attempt.
type VerificationService struct {
	sessions ports.SessionRepository
	recorder *AttendanceService
	cfg      VerificationConfig
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewVerificationService(sessions ports.SessionRepository, recorder *AttendanceService, cfg VerificationConfig) *VerificationService {
	return &VerificationService{
		sessions: sessions,
		recorder: recorder,
		cfg:      cfg,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
}

// target is what a decoded payload resolves to: the key the record will
// carry, when the artifact stops being valid, and the anchor (nil under the
// anchor-less policy).
type target struct {
	key       string
	expiresAt time.Time
	anchor    *geo.Point
}

// Verify runs one attempt for the scanner identified by scannerKey.
// It returns ErrAttemptInFlight when that scanner already has an attempt
// running; every other path ends in a terminal Outcome.
func (s *VerificationService) Verify(ctx context.Context, scannerKey, raw string, location LocationSource, identity IdentityResolver) (Outcome, error) {
	if !s.begin(scannerKey) {
		return Outcome{}, ErrAttemptInFlight
	}
	defer s.finish(scannerKey)

	// Idle -> Decoded
	payload, err := qrpayload.Decode(raw)
	if err != nil {
		return reject(ReasonMalformedPayload, "code is not a valid attendance payload"), nil
	}

	tgt, outcome, ok := s.resolveTarget(ctx, payload)
	if !ok {
		return outcome, nil
	}

	// Decoded -> ExpiryChecked. Runs before any location work: an expired
	// artifact must never cost the subject a location fetch.
	if s.now().After(tgt.expiresAt) {
		return reject(ReasonExpired, "code has expired"), nil
	}

	var distance *float64
	if tgt.anchor != nil {
		// ExpiryChecked -> LocationAcquired
		sample, err := s.acquireLocation(ctx, location)
		if err != nil {
			return reject(ReasonLocationUnavailable, "location unavailable or permission denied"), nil
		}

		// LocationAcquired -> ProximityChecked
		result, err := s.cfg.Validator.Evaluate(sample, *tgt.anchor)
		if err != nil {
			if errors.Is(err, geo.ErrAccuracyTooLow) {
				return reject(ReasonAccuracyTooLow,
					fmt.Sprintf("location accuracy %.0fm is not precise enough, move and retry", sample.AccuracyMeters)), nil
			}
			return reject(ReasonLocationUnavailable, "location could not be evaluated"), nil
		}
		if !result.Pass {
			out := reject(ReasonOutOfRange, fmt.Sprintf("too far from the session (%.0fm)", result.DistanceMeters))
			out.DistanceMeters = &result.DistanceMeters
			return out, nil
		}
		distance = &result.DistanceMeters
	}

	// ProximityChecked -> IdentityResolved
	subject, err := identity.Resolve(ctx)
	if err != nil && !errors.Is(err, ErrNotAuthenticated) {
		out := reject(ReasonPersistenceFailure, "could not resolve the account, try again")
		out.Retryable = true
		return out, nil
	}
	if err != nil || subject == nil {
		return reject(ReasonNotAuthenticated, "sign in to mark attendance"), nil
	}

	// IdentityResolved -> Recorded
	record, recOutcome, err := s.recorder.Record(ctx, subject.ID, tgt.key, distance)
	if err != nil {
		out := reject(ReasonPersistenceFailure, "could not save attendance, try again")
		out.Retryable = true
		return out, nil
	}
	if recOutcome == OutcomeDuplicate {
		return Outcome{
			State:           StateRecorded,
			Reason:          ReasonDuplicateSubmission,
			Message:         "attendance already marked",
			AlreadyRecorded: true,
			DistanceMeters:  distance,
		}, nil
	}

	return Outcome{
		State:          StateRecorded,
		Message:        "attendance marked",
		Record:         record,
		DistanceMeters: distance,
	}, nil
}

// resolveTarget maps a decoded payload onto the fields the gates need.
// Self-contained payloads carry everything; session references are looked
// up. A reference to a session that does not exist or was ended is treated
// like an expired artifact.
func (s *VerificationService) resolveTarget(ctx context.Context, payload qrpayload.Payload) (target, Outcome, bool) {
	if payload.Kind == qrpayload.KindSelfContained {
		return target{
			key:       payload.Token,
			expiresAt: payload.ExpiresAt,
			anchor:    payload.Anchor,
		}, Outcome{}, true
	}

	session, err := s.sessions.FindByID(ctx, payload.SessionID)
	if err != nil {
		if isNotFound(err) {
			return target{}, reject(ReasonExpired, "session is no longer available"), false
		}
		out := reject(ReasonPersistenceFailure, "could not look up the session, try again")
		out.Retryable = true
		return target{}, out, false
	}
	if session.EndedAt != nil && !session.EndedAt.After(s.now()) {
		return target{}, reject(ReasonExpired, "session has ended"), false
	}

	tgt := target{
		key:       session.ID.String(),
		expiresAt: session.ExpiresAt,
	}
	if session.HasAnchor() {
		tgt.anchor = anchorPoint(session)
	}
	return tgt, Outcome{}, true
}

func (s *VerificationService) acquireLocation(ctx context.Context, source LocationSource) (geo.Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LocationTimeout)
	defer cancel()
	return source.Acquire(ctx)
}

func (s *VerificationService) begin(scannerKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[scannerKey]; busy {
		return false
	}
	s.inFlight[scannerKey] = struct{}{}
	return true
}

func (s *VerificationService) finish(scannerKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, scannerKey)
}

func reject(reason Reason, message string) Outcome {
	return Outcome{State: StateRejected, Reason: reason, Message: message}
}
