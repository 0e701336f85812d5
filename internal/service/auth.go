// Package service holds the business rules of the API.
//
//	Handler (HTTP) → Service (rules) → repository.Store (DB)
//	               ↘ auth.TokenService / auth.PasswordService
//
// Services accept plain Go values, return apperror kinds and never touch
// net/http, so the CLI ingest command and the AMQP consumer reuse them as-is.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/auth"
	"github.com/sakif/tour-tracker/internal/metrics"
	"github.com/sakif/tour-tracker/internal/model"
	"github.com/sakif/tour-tracker/internal/repository"
)

// invalidCredentials is shared by the unknown-user and wrong-password paths.
const invalidCredentials = "invalid credentials"

// AuthService registers users, logs them in and verifies session tokens.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewAuthService wires an AuthService. m may be nil.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		metrics:   m,
		logger:    logger,
	}
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
	Country  *string
}

// AuthResult bundles the user and the freshly issued token.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register validates the input, hashes the password, stores the user and
// issues a token. Email is stored lowercased. A taken email or username is
// an apperror.ErrConflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)
	country := trimPtr(in.Country)

	var v validator
	v.required("email", email)
	v.required("username", username)
	v.required("password", in.Password)
	v.email("email", email)
	v.username("username", username)
	v.password("password", in.Password)
	v.maxLenPtr("country", country, MaxCountryLength)
	if err := v.err(); err != nil {
		s.metrics.RecordAuth("register", metrics.ResultInvalid)
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Country:      country,
	}
	if err := s.users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.metrics.RecordAuth("register", metrics.ResultRejected)
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "email or username already exists",
			}
		}
		s.metrics.RecordAuth("register", metrics.ResultFailure)
		s.logger.Error("failed to create user",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating user: %w", err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token for user %s: %w", user.ID, err)
	}

	s.metrics.RecordAuth("register", metrics.ResultSuccess)
	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// Login resolves identifier as an email or a username and checks the
// password. An unknown identifier and a wrong password give the same error
// after the same amount of bcrypt work.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)

	var v validator
	v.required("email", identifier)
	v.required("password", password)
	if err := v.err(); err != nil {
		s.metrics.RecordAuth("login", metrics.ResultInvalid)
		return nil, err
	}

	user, err := s.users.FindUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.VerifyNothing(password)
			return nil, s.rejectLogin()
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash is unusable",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, s.rejectLogin()
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token for user %s: %w", user.ID, err)
	}

	s.metrics.RecordAuth("login", metrics.ResultSuccess)
	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) rejectLogin() error {
	s.metrics.RecordAuth("login", metrics.ResultRejected)
	s.logger.Warn("login rejected")
	return apperror.Unauthorized(invalidCredentials)
}

// Verify checks a session token and resolves it to the user it names.
func (s *AuthService) Verify(ctx context.Context, token string) (*model.UserSummary, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperror.Unauthorized("token required")
	}

	userID, err := s.tokens.Validate(token)
	if err != nil {
		s.metrics.RecordAuth("verify", metrics.ResultRejected)
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperror.Unauthorized("token expired")
		}
		return nil, apperror.Unauthorized("invalid token")
	}

	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.metrics.RecordAuth("verify", metrics.ResultRejected)
			return nil, apperror.Unauthorized("user not found")
		}
		return nil, fmt.Errorf("fetching user %s: %w", userID, err)
	}

	s.metrics.RecordAuth("verify", metrics.ResultSuccess)
	summary := user.Summary()
	return &summary, nil
}
