package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/classtrack/attendance-api/internal/domain"
)

type UserRepository interface {
	CreateEmailUser(ctx context.Context, email, role string, passwordHash, passwordSalt []byte) (*domain.User, error)
	UpsertGoogleUser(ctx context.Context, email string, fullName *string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}
