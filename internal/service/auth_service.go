package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/idtoken"

	"github.com/classtrack/attendance-api/internal/domain"
	"github.com/classtrack/attendance-api/internal/repository/ports"
	"github.com/classtrack/attendance-api/internal/util"
)

var (
	ErrEmailAlreadyUsed   = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRole        = errors.New("role must be teacher or student")
	ErrWeakPassword       = errors.New("password does not meet the policy")
	ErrNotAuthenticated   = errors.New("not authenticated")
)

type AuthService struct {
	users ports.UserRepository
	jwt   *util.JWTManager
	aud   string

	// swapped out in tests
	validateGoogleToken func(ctx context.Context, idTok, audience string) (*idtoken.Payload, error)
}

func NewAuthService(users ports.UserRepository, jwt *util.JWTManager, googleAudience string) *AuthService {
	return &AuthService{
		users:               users,
		jwt:                 jwt,
		aud:                 googleAudience,
		validateGoogleToken: idtoken.Validate,
	}
}

func (s *AuthService) RegisterWithEmail(ctx context.Context, email, password, role string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	if role != domain.RoleTeacher && role != domain.RoleStudent {
		return nil, ErrInvalidRole
	}
	if err := util.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	hash, salt, err := util.DerivePassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateEmailUser(ctx, email, role, hash, salt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailAlreadyUsed
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) LoginWithEmail(ctx context.Context, email, password string) (string, time.Time, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return "", time.Time{}, nil, ErrInvalidCredentials
		}
		return "", time.Time{}, nil, err
	}
	if len(user.PasswordHash) == 0 || !util.VerifyPassword(password, user.PasswordSalt, user.PasswordHash) {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.jwt.Generate(user.ID, user.Email, user.Role)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return token, expiresAt, user, nil
}

func (s *AuthService) LoginWithGoogle(ctx context.Context, idTok string) (string, time.Time, *domain.User, error) {
	payload, err := s.validateGoogleToken(ctx, idTok, s.aud)
	if err != nil {
		return "", time.Time{}, nil, ErrNotAuthenticated
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return "", time.Time{}, nil, ErrNotAuthenticated
	}
	var fullName *string
	if name, ok := payload.Claims["name"].(string); ok && name != "" {
		fullName = &name
	}

	user, err := s.users.UpsertGoogleUser(ctx, strings.ToLower(email), fullName)
	if err != nil {
		return "", time.Time{}, nil, err
	}

	token, expiresAt, err := s.jwt.Generate(user.ID, user.Email, user.Role)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return token, expiresAt, user, nil
}

// Authenticate resolves the bearer token back to a live account. It backs
// both the HTTP middleware and the verification flow's identity gate.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.jwt.Parse(token)
	if err != nil {
		return nil, ErrNotAuthenticated
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}
	return user, nil
}
