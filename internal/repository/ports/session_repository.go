package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/classtrack/attendance-api/internal/domain"
)

type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) (*domain.Session, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	// End stamps ended_at once; ending an already-ended session is a no-op
	// that still succeeds.
	End(ctx context.Context, id uuid.UUID, endedAt time.Time) (*domain.Session, error)
}
