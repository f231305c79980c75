package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/classtrack/attendance-api/internal/domain"
	"github.com/classtrack/attendance-api/internal/geo"
	"github.com/classtrack/attendance-api/internal/qrpayload"
	"github.com/classtrack/attendance-api/internal/repository/ports"
)

var (
	ErrAnchorUnavailable = errors.New("session anchor location unavailable")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNotSessionIssuer  = errors.New("session belongs to another issuer")
	ErrSessionInactive   = errors.New("session has ended or expired")
)

// Payload wire formats a deployment can pick, aliased from the codec so the
// names cannot drift from the shapes it implements.
const (
	FormatDelimited  = qrpayload.FormatDelimited
	FormatSessionRef = qrpayload.FormatSessionRef
)

type SessionConfig struct {
	TTL              time.Duration
	RotationInterval time.Duration
	AnchorPolicy     domain.AnchorPolicy
	FixedAnchor      *geo.Point
	PayloadFormat    string
}

// SessionService is the issuer side of the protocol: it creates sessions,
// owns their rotation tasks, and ends them.
type SessionService struct {
	sessions ports.SessionRepository
	rotator  *Rotator
	cfg      SessionConfig
	now      func() time.Time
}

func NewSessionService(sessions ports.SessionRepository, cfg SessionConfig) *SessionService {
	return &SessionService{
		sessions: sessions,
		rotator:  NewRotator(cfg.RotationInterval),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Create issues a fresh session for the issuer and starts its payload
// emission. liveAnchor is the issuer's own location sample; it is required
// by the issuer-live anchor policy and ignored by the others.
func (s *SessionService) Create(ctx context.Context, issuer *domain.User, liveAnchor *geo.Point) (*domain.Session, string, error) {
	anchor, err := s.resolveAnchor(liveAnchor)
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	session := &domain.Session{
		ID:        uuid.New(),
		IssuerID:  issuer.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}
	if anchor != nil {
		session.AnchorLat = &anchor.Lat
		session.AnchorLng = &anchor.Lng
	}
	if s.cfg.PayloadFormat != FormatSessionRef {
		// The token is the attendance key for self-contained payloads, so
		// it is minted exactly once and stored with the session.
		token := uuid.NewString()
		session.Token = &token
	}

	stored, err := s.sessions.Create(ctx, session)
	if err != nil {
		return nil, "", err
	}

	payload, err := s.startEmission(stored, issuer.Email)
	if err != nil {
		return nil, "", err
	}
	return stored, payload, nil
}

func (s *SessionService) resolveAnchor(liveAnchor *geo.Point) (*geo.Point, error) {
	switch s.cfg.AnchorPolicy {
	case domain.AnchorFixed:
		if s.cfg.FixedAnchor == nil {
			return nil, ErrAnchorUnavailable
		}
		return s.cfg.FixedAnchor, nil
	case domain.AnchorIssuerLive:
		if liveAnchor == nil {
			return nil, ErrAnchorUnavailable
		}
		return liveAnchor, nil
	case domain.AnchorNone:
		return nil, nil
	}
	return nil, ErrAnchorUnavailable
}

func (s *SessionService) startEmission(session *domain.Session, issuerIdentity string) (string, error) {
	if s.cfg.PayloadFormat == FormatSessionRef {
		return s.rotator.StartSessionRef(session)
	}
	return s.rotator.StartSelfContained(session, issuerIdentity)
}

// CurrentPayload returns what the issuer's display should render right now.
// If the process restarted since creation the emission is rebuilt from the
// stored session, so self-contained payloads keep their original token.
func (s *SessionService) CurrentPayload(ctx context.Context, sessionID uuid.UUID, issuer *domain.User) (string, error) {
	session, err := s.ownedActiveSession(ctx, sessionID, issuer)
	if err != nil {
		return "", err
	}
	if payload, ok := s.rotator.Current(sessionID); ok {
		return payload, nil
	}
	return s.startEmission(session, issuer.Email)
}

// End marks the session terminal and releases its rotation task. Ending an
// already-ended session succeeds without changing the recorded end time.
func (s *SessionService) End(ctx context.Context, sessionID uuid.UUID, issuer *domain.User) (*domain.Session, error) {
	session, err := s.findOwned(ctx, sessionID, issuer)
	if err != nil {
		return nil, err
	}

	ended, err := s.sessions.End(ctx, session.ID, s.now())
	if err != nil {
		return nil, err
	}
	s.rotator.Stop(session.ID)
	return ended, nil
}

// Keys lists every attendance key records for this session may carry: the
// session id for session-reference payloads, plus the stored token when one
// was minted for a self-contained emission.
func (s *SessionService) Keys(ctx context.Context, sessionID uuid.UUID, issuer *domain.User) ([]string, error) {
	session, err := s.findOwned(ctx, sessionID, issuer)
	if err != nil {
		return nil, err
	}

	keys := []string{session.ID.String()}
	if session.Token != nil && *session.Token != "" {
		keys = append(keys, *session.Token)
	}
	return keys, nil
}

// Find returns the session when it belongs to the issuer.
func (s *SessionService) Find(ctx context.Context, sessionID uuid.UUID, issuer *domain.User) (*domain.Session, error) {
	return s.findOwned(ctx, sessionID, issuer)
}

// Shutdown cancels every rotation task. Called on process teardown.
func (s *SessionService) Shutdown() {
	s.rotator.Shutdown()
}

func (s *SessionService) findOwned(ctx context.Context, sessionID uuid.UUID, issuer *domain.User) (*domain.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.IssuerID != issuer.ID {
		return nil, ErrNotSessionIssuer
	}
	return session, nil
}

func (s *SessionService) ownedActiveSession(ctx context.Context, sessionID uuid.UUID, issuer *domain.User) (*domain.Session, error) {
	session, err := s.findOwned(ctx, sessionID, issuer)
	if err != nil {
		return nil, err
	}
	if !session.Active(s.now()) {
		s.rotator.Stop(session.ID)
		return nil, ErrSessionInactive
	}
	return session, nil
}
