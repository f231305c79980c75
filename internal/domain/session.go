package domain

import (
	"time"

	"github.com/google/uuid"
)

// AnchorPolicy decides where a session's reference coordinate comes from.
type AnchorPolicy string

const (
	// AnchorFixed pins every session to the coordinate configured for the
	// deployment (e.g. the classroom).
	AnchorFixed AnchorPolicy = "fixed"
	// AnchorIssuerLive embeds the issuer's own location sampled at session
	// creation.
	AnchorIssuerLive AnchorPolicy = "issuer-live"
	// AnchorNone issues sessions without a coordinate; verification then
	// relies on identity plus the uniqueness constraint alone.
	AnchorNone AnchorPolicy = "none"
)

func (p AnchorPolicy) Valid() bool {
	switch p {
	case AnchorFixed, AnchorIssuerLive, AnchorNone:
		return true
	}
	return false
}

type Session struct {
	ID       uuid.UUID `db:"id" json:"id"`
	IssuerID uuid.UUID `db:"issuer_id" json:"issuer_id"`
	// Token is the attendance key minted for self-contained emissions.
	// It is persisted with the session so a restarted process re-emits
	// the same key instead of stranding earlier records.
	Token     *string    `db:"token" json:"-"`
	AnchorLat *float64   `db:"anchor_lat" json:"anchor_lat,omitempty"`
	AnchorLng *float64   `db:"anchor_lng" json:"anchor_lng,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	EndedAt   *time.Time `db:"ended_at" json:"ended_at,omitempty"`
}

// Active reports whether the session may still accept new attendance
// records at the given instant. An expired or explicitly ended session is
// immutable.
func (s *Session) Active(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.EndedAt != nil && !s.EndedAt.After(now) {
		return false
	}
	return now.Before(s.ExpiresAt)
}

func (s *Session) HasAnchor() bool {
	return s != nil && s.AnchorLat != nil && s.AnchorLng != nil
}
