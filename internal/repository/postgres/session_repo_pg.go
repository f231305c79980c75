package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classtrack/attendance-api/internal/domain"
	"github.com/classtrack/attendance-api/internal/repository/ports"
)

type SessionRepository struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	const query = `
		INSERT INTO attendance_session (id, issuer_id, token, anchor_lat, anchor_lng, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, issuer_id, token, anchor_lat, anchor_lng, created_at, expires_at, ended_at
	`
	row := r.db.QueryRowxContext(ctx, query,
		session.ID, session.IssuerID, session.Token, session.AnchorLat, session.AnchorLng,
		session.CreatedAt, session.ExpiresAt)

	var stored domain.Session
	if err := row.StructScan(&stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *SessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	const query = `
		SELECT id, issuer_id, token, anchor_lat, anchor_lng, created_at, expires_at, ended_at
		FROM attendance_session
		WHERE id = $1
	`
	var session domain.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) End(ctx context.Context, id uuid.UUID, endedAt time.Time) (*domain.Session, error) {
	const query = `
		UPDATE attendance_session
		SET ended_at = COALESCE(ended_at, $2)
		WHERE id = $1
		RETURNING id, issuer_id, token, anchor_lat, anchor_lng, created_at, expires_at, ended_at
	`
	var session domain.Session
	if err := r.db.GetContext(ctx, &session, query, id, endedAt); err != nil {
		return nil, err
	}
	return &session, nil
}

var _ ports.SessionRepository = (*SessionRepository)(nil)
