package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"
	"github.com/samber/oops"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/model"
)

const userColumns = `id, email, username, password_hash, country, handle, pronouns, bio, created_at, updated_at`

func (s *Store) InsertUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, username, password_hash, country, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.Username, user.PasswordHash, user.Country, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", "email or username already exists")
		}
		return oops.In("postgres").With("operation", "insert user").With("username", user.Username).Wrap(err)
	}
	return nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, oops.In("postgres").With("operation", "get user").With("user_id", id).Wrap(err)
	}
	return u, nil
}

// FindUserByIdentifier matches the lowercased identifier against email, or the
// raw identifier against username.
func (s *Store) FindUserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = lower($1) OR username = $1 LIMIT 1`, identifier)

	u, err := scanUser(row)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("user", identifier)
		}
		return nil, oops.In("postgres").With("operation", "find user by identifier").Wrap(err)
	}
	return u, nil
}

// UpdateProfile replaces the four profile columns and returns the stored
// values.
func (s *Store) UpdateProfile(ctx context.Context, userID string, p model.Profile) (*model.Profile, error) {
	var out model.Profile
	err := s.pool.QueryRow(ctx,
		`UPDATE users SET handle = $1, country = $2, pronouns = $3, bio = $4, updated_at = now()
		 WHERE id = $5
		 RETURNING handle, country, pronouns, bio`,
		p.Handle, p.Country, p.Pronouns, p.Bio, userID,
	).Scan(&out.Handle, &out.Country, &out.Pronouns, &out.Bio)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("user", userID)
		}
		return nil, oops.In("postgres").With("operation", "update profile").With("user_id", userID).Wrap(err)
	}
	return &out, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash,
		&u.Country, &u.Handle, &u.Pronouns, &u.Bio, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
