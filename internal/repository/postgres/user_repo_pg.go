package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classtrack/attendance-api/internal/domain"
	"github.com/classtrack/attendance-api/internal/repository/ports"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateEmailUser(ctx context.Context, email, role string, passwordHash, passwordSalt []byte) (*domain.User, error) {
	const query = `
		INSERT INTO user_account (email, role, password_hash, password_salt)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, full_name, role, password_hash, password_salt, created_at
	`
	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, email, role, passwordHash, passwordSalt); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) UpsertGoogleUser(ctx context.Context, email string, fullName *string) (*domain.User, error) {
	const query = `
		INSERT INTO user_account (email, full_name, role)
		VALUES ($1, $2, 'student')
		ON CONFLICT (email) DO UPDATE
		SET full_name = COALESCE(EXCLUDED.full_name, user_account.full_name)
		RETURNING id, email, full_name, role, password_hash, password_salt, created_at
	`
	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, email, fullName); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
		SELECT id, email, full_name, role, password_hash, password_salt, created_at
		FROM user_account
		WHERE email = $1
	`
	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const query = `
		SELECT id, email, full_name, role, password_hash, password_salt, created_at
		FROM user_account
		WHERE id = $1
	`
	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

var _ ports.UserRepository = (*UserRepository)(nil)
