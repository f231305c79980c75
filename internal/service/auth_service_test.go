package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"google.golang.org/api/idtoken"

	"github.com/classtrack/attendance-api/internal/domain"
	"github.com/classtrack/attendance-api/internal/util"
)

type fakeUserRepo struct {
	createEmail  string
	createRole   string
	createHash   []byte
	createResult *domain.User
	createErr    error

	upsertEmail  string
	upsertName   *string
	upsertResult *domain.User
	upsertErr    error

	findByEmailResult *domain.User
	findByEmailErr    error

	findByIDInput  uuid.UUID
	findByIDResult *domain.User
	findByIDErr    error
}

func (f *fakeUserRepo) CreateEmailUser(_ context.Context, email, role string, passwordHash, passwordSalt []byte) (*domain.User, error) {
	f.createEmail = email
	f.createRole = role
	f.createHash = append([]byte(nil), passwordHash...)
	return f.createResult, f.createErr
}

func (f *fakeUserRepo) UpsertGoogleUser(_ context.Context, email string, fullName *string) (*domain.User, error) {
	f.upsertEmail = email
	f.upsertName = fullName
	return f.upsertResult, f.upsertErr
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return f.findByEmailResult, f.findByEmailErr
}

func (f *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	f.findByIDInput = id
	return f.findByIDResult, f.findByIDErr
}

func newAuthServiceForTests(users *fakeUserRepo) *AuthService {
	return NewAuthService(users, util.NewJWTManager("test-secret", time.Hour), "test-audience")
}

func TestRegisterWithEmail(t *testing.T) {
	users := &fakeUserRepo{createResult: &domain.User{ID: uuid.New(), Email: "t@classtrack.example", Role: domain.RoleTeacher}}
	svc := newAuthServiceForTests(users)

	user, err := svc.RegisterWithEmail(context.Background(), "  T@ClassTrack.Example ", "long enough", domain.RoleTeacher)
	if err != nil {
		t.Fatalf("RegisterWithEmail returned error: %v", err)
	}
	if user == nil {
		t.Fatal("expected a user")
	}
	if users.createEmail != "t@classtrack.example" {
		t.Fatalf("expected normalized email, got %q", users.createEmail)
	}
	if users.createRole != domain.RoleTeacher {
		t.Fatalf("expected teacher role, got %q", users.createRole)
	}
	if len(users.createHash) == 0 {
		t.Fatal("expected a derived password hash")
	}
}

func TestRegisterWithEmailDuplicate(t *testing.T) {
	users := &fakeUserRepo{createErr: &pgconn.PgError{Code: "23505"}}
	svc := newAuthServiceForTests(users)

	_, err := svc.RegisterWithEmail(context.Background(), "dup@classtrack.example", "long enough", domain.RoleStudent)
	if !errors.Is(err, ErrEmailAlreadyUsed) {
		t.Fatalf("expected ErrEmailAlreadyUsed, got %v", err)
	}
}

func TestRegisterWithEmailInvalidRole(t *testing.T) {
	svc := newAuthServiceForTests(&fakeUserRepo{})

	_, err := svc.RegisterWithEmail(context.Background(), "x@classtrack.example", "long enough", "admin")
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestLoginWithEmail(t *testing.T) {
	hash, salt, err := util.DerivePassword("long enough")
	if err != nil {
		t.Fatalf("DerivePassword returned error: %v", err)
	}
	user := &domain.User{
		ID:           uuid.New(),
		Email:        "s@classtrack.example",
		Role:         domain.RoleStudent,
		PasswordHash: hash,
		PasswordSalt: salt,
	}
	svc := newAuthServiceForTests(&fakeUserRepo{findByEmailResult: user})

	token, expiresAt, got, err := svc.LoginWithEmail(context.Background(), "s@classtrack.example", "long enough")
	if err != nil {
		t.Fatalf("LoginWithEmail returned error: %v", err)
	}
	if token == "" || got.ID != user.ID {
		t.Fatalf("unexpected login result: token=%q user=%+v", token, got)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("token already expired: %v", expiresAt)
	}

	_, _, _, err = svc.LoginWithEmail(context.Background(), "s@classtrack.example", "wrong password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginWithEmailUnknownUser(t *testing.T) {
	svc := newAuthServiceForTests(&fakeUserRepo{findByEmailErr: sql.ErrNoRows})

	_, _, _, err := svc.LoginWithEmail(context.Background(), "nobody@classtrack.example", "whatever password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginWithGoogle(t *testing.T) {
	stored := &domain.User{ID: uuid.New(), Email: "g@classtrack.example", Role: domain.RoleStudent}
	users := &fakeUserRepo{upsertResult: stored}
	svc := newAuthServiceForTests(users)
	svc.validateGoogleToken = func(_ context.Context, idTok, audience string) (*idtoken.Payload, error) {
		if audience != "test-audience" {
			t.Fatalf("unexpected audience %q", audience)
		}
		return &idtoken.Payload{Claims: map[string]interface{}{
			"email": "G@ClassTrack.Example",
			"name":  "Gee Person",
		}}, nil
	}

	token, _, user, err := svc.LoginWithGoogle(context.Background(), "fake-id-token")
	if err != nil {
		t.Fatalf("LoginWithGoogle returned error: %v", err)
	}
	if token == "" || user.ID != stored.ID {
		t.Fatalf("unexpected result: token=%q user=%+v", token, user)
	}
	if users.upsertEmail != "g@classtrack.example" {
		t.Fatalf("expected normalized email, got %q", users.upsertEmail)
	}
	if users.upsertName == nil || *users.upsertName != "Gee Person" {
		t.Fatalf("expected name forwarded, got %v", users.upsertName)
	}
}

func TestLoginWithGoogleInvalidToken(t *testing.T) {
	svc := newAuthServiceForTests(&fakeUserRepo{})
	svc.validateGoogleToken = func(context.Context, string, string) (*idtoken.Payload, error) {
		return nil, errors.New("bad token")
	}

	_, _, _, err := svc.LoginWithGoogle(context.Background(), "bad")
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "s@classtrack.example", Role: domain.RoleStudent}
	users := &fakeUserRepo{findByIDResult: user}
	svc := newAuthServiceForTests(users)

	token, _, err := util.NewJWTManager("test-secret", time.Hour).Generate(user.ID, user.Email, user.Role)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	got, err := svc.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, got.ID)
	}
	if users.findByIDInput != user.ID {
		t.Fatalf("expected lookup by %s, got %s", user.ID, users.findByIDInput)
	}

	if _, err := svc.Authenticate(context.Background(), "garbage-token"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestAuthenticateDeletedAccount(t *testing.T) {
	users := &fakeUserRepo{findByIDErr: sql.ErrNoRows}
	svc := newAuthServiceForTests(users)

	token, _, err := util.NewJWTManager("test-secret", time.Hour).Generate(uuid.New(), "x@y", domain.RoleStudent)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), token); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}
