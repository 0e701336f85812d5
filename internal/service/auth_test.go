package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/auth"
	"github.com/sakif/tour-tracker/internal/model"
	"github.com/sakif/tour-tracker/internal/repository/memory"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// failingUserRepo wraps the memory store and lets a test inject failures.
type failingUserRepo struct {
	*memory.Store
	insertErr error
	findErr   error
}

func (f *failingUserRepo) InsertUser(ctx context.Context, user *model.User) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.Store.InsertUser(ctx, user)
}

func (f *failingUserRepo) FindUserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Store.FindUserByIdentifier(ctx, identifier)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// newTestAuthService returns an AuthService over repo with the minimum
// bcrypt cost.
func newTestAuthService(t *testing.T, repo *failingUserRepo) *AuthService {
	t.Helper()
	return NewAuthService(repo, newTestTokens(t), auth.NewPasswordServiceForTest(bcrypt.MinCost), nil, testLogger())
}

func newRepo() *failingUserRepo {
	return &failingUserRepo{Store: memory.New()}
}

func register(t *testing.T, svc *AuthService, email, username, password string) *AuthResult {
	t.Helper()
	country := "US"
	res, err := svc.Register(context.Background(), RegisterInput{
		Email: email, Username: username, Password: password, Country: &country,
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", username, err)
	}
	return res
}

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister_Success(t *testing.T) {
	svc := newTestAuthService(t, newRepo())

	res := register(t, svc, "A@X.com", "alice", "secret1")

	if res.Token == "" {
		t.Error("Register() returned empty token")
	}
	if res.User.ID == "" {
		t.Error("Register() did not set user ID")
	}
	if res.User.Email != "a@x.com" {
		t.Errorf("Email = %q, want lowercased a@x.com", res.User.Email)
	}
	if res.User.PasswordHash == "secret1" || !strings.HasPrefix(res.User.PasswordHash, "$2") {
		t.Errorf("password was not hashed: %q", res.User.PasswordHash)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc := newTestAuthService(t, newRepo())
	register(t, svc, "a@x.com", "alice", "secret1")

	for _, username := range []string{"alice", "bob"} {
		_, err := svc.Register(context.Background(), RegisterInput{
			Email: "a@x.com", Username: username, Password: "secret1",
		})
		if !errors.Is(err, apperror.ErrConflict) {
			t.Errorf("Register(a@x.com, %s) error = %v, want ErrConflict", username, err)
		}
	}
}

func TestRegister_Validation(t *testing.T) {
	long := strings.Repeat("x", 51)

	tests := []struct {
		name       string
		in         RegisterInput
		wantFields []string
	}{
		{
			name:       "all missing",
			in:         RegisterInput{},
			wantFields: []string{"email", "username", "password"},
		},
		{
			name:       "bad email and short password",
			in:         RegisterInput{Email: "not-an-email", Username: "alice", Password: "123"},
			wantFields: []string{"email", "password"},
		},
		{
			name:       "username with symbols",
			in:         RegisterInput{Email: "a@x.com", Username: "al!ce", Password: "secret1"},
			wantFields: []string{"username"},
		},
		{
			name:       "username too short",
			in:         RegisterInput{Email: "a@x.com", Username: "al", Password: "secret1"},
			wantFields: []string{"username"},
		},
		{
			name:       "country too long",
			in:         RegisterInput{Email: "a@x.com", Username: "alice", Password: "secret1", Country: &long},
			wantFields: []string{"country"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestAuthService(t, newRepo())

			_, err := svc.Register(context.Background(), tt.in)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Register() error = %v, want ErrValidation", err)
			}
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("error is not *AppError: %T", err)
			}
			if strings.Join(appErr.Fields, ",") != strings.Join(tt.wantFields, ",") {
				t.Errorf("Fields = %v, want %v", appErr.Fields, tt.wantFields)
			}
		})
	}
}

func TestRegister_RepositoryError(t *testing.T) {
	repo := newRepo()
	repo.insertErr = errors.New("database is on fire")
	svc := newTestAuthService(t, repo)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Username: "alice", Password: "secret1"})
	if err == nil || errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Register() error = %v, want a plain store error", err)
	}
}

// =========================================================================
// LOGIN TESTS
// =========================================================================

func TestLogin_ByEmailOrUsername(t *testing.T) {
	svc := newTestAuthService(t, newRepo())
	created := register(t, svc, "a@x.com", "alice", "secret1")

	for _, identifier := range []string{"a@x.com", "A@X.COM", "alice"} {
		t.Run(identifier, func(t *testing.T) {
			res, err := svc.Login(context.Background(), identifier, "secret1")
			if err != nil {
				t.Fatalf("Login(%q) error = %v", identifier, err)
			}
			if res.User.ID != created.User.ID {
				t.Errorf("Login() user = %q, want %q", res.User.ID, created.User.ID)
			}
		})
	}
}

func TestLogin_FailuresLookAlike(t *testing.T) {
	svc := newTestAuthService(t, newRepo())
	register(t, svc, "a@x.com", "alice", "secret1")

	_, wrongPassword := svc.Login(context.Background(), "alice", "secret2")
	_, unknownUser := svc.Login(context.Background(), "nobody", "secret1")

	for name, err := range map[string]error{"wrong password": wrongPassword, "unknown user": unknownUser} {
		if !errors.Is(err, apperror.ErrUnauthorized) {
			t.Errorf("%s: error = %v, want ErrUnauthorized", name, err)
		}
	}
	if wrongPassword.Error() != unknownUser.Error() {
		t.Errorf("messages differ: %q vs %q", wrongPassword, unknownUser)
	}
	if wrongPassword.Error() != "invalid credentials" {
		t.Errorf("message = %q, want %q", wrongPassword, "invalid credentials")
	}
}

func TestLogin_MissingFields(t *testing.T) {
	svc := newTestAuthService(t, newRepo())

	_, err := svc.Login(context.Background(), " ", "")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Login() error = %v, want ErrValidation", err)
	}
}

func TestLogin_StoreErrorIsNotUnauthorized(t *testing.T) {
	repo := newRepo()
	repo.findErr = errors.New("connection reset")
	svc := newTestAuthService(t, repo)

	_, err := svc.Login(context.Background(), "alice", "secret1")
	if err == nil || errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("Login() error = %v, want a store error", err)
	}
}

// =========================================================================
// VERIFY TESTS
// =========================================================================

func TestVerify(t *testing.T) {
	repo := newRepo()
	tokens := newTestTokens(t)
	svc := NewAuthService(repo, tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), nil, testLogger())
	res := register(t, svc, "a@x.com", "alice", "secret1")

	expired, _ := tokens.GenerateWithDuration(res.User.ID, -time.Second)
	orphan, _ := tokens.Generate("no-such-user")

	tests := []struct {
		name    string
		token   string
		wantMsg string
	}{
		{name: "valid", token: res.Token},
		{name: "missing", token: "", wantMsg: "token required"},
		{name: "expired", token: expired, wantMsg: "token expired"},
		{name: "garbage", token: "abc.def.ghi", wantMsg: "invalid token"},
		{name: "deleted user", token: orphan, wantMsg: "user not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := svc.Verify(context.Background(), tt.token)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("Verify() error = %v", err)
				}
				if summary.Username != "alice" || summary.UserID != res.User.ID {
					t.Errorf("Verify() = %+v", summary)
				}
				return
			}
			if !errors.Is(err, apperror.ErrUnauthorized) {
				t.Fatalf("Verify() error = %v, want ErrUnauthorized", err)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

// =========================================================================
// END-TO-END
// =========================================================================

func TestRegisterLoginVerifyUpdateProfile(t *testing.T) {
	repo := newRepo()
	svc := newTestAuthService(t, repo)
	profiles := NewProfileService(repo, testLogger())
	ctx := context.Background()

	reg := register(t, svc, "a@x.com", "alice", "secret1")

	login, err := svc.Login(ctx, "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	summary, err := svc.Verify(ctx, login.Token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if summary.Username != "alice" {
		t.Errorf("Verify().Username = %q, want alice", summary.Username)
	}

	handle := "al"
	p, err := profiles.Update(ctx, reg.User.ID, ProfileInput{Handle: &handle})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if p.Handle == nil || *p.Handle != "al" {
		t.Errorf("Handle = %v, want al", p.Handle)
	}
	if p.Country != nil || p.Pronouns != nil || p.Bio != nil {
		t.Errorf("full replace should clear the rest, got %+v", p)
	}
}
