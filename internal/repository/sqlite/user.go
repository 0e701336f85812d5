package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/model"
)

const userColumns = `id, email, username, password_hash, country, handle, pronouns, bio, created_at, updated_at`

// InsertUser stores a new user. The UNIQUE constraints on email and username
// decide duplicates; the violation comes back as apperror.ErrConflict.
func (db *DB) InsertUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, username, password_hash, country, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Country,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", "email or username already exists")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Username, err)
	}

	return nil
}

// FindUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

func (db *DB) FindUserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = lower(?) OR username = ? LIMIT 1`,
		identifier, identifier)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", identifier)
		}
		return nil, fmt.Errorf("sqlite: finding user by identifier: %w", err)
	}
	return u, nil
}

// UpdateProfile overwrites all four profile columns. Nil fields are stored as
// NULL. A missing user is reported through RowsAffected.
func (db *DB) UpdateProfile(ctx context.Context, userID string, p model.Profile) (*model.Profile, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET handle = ?, country = ?, pronouns = ?, bio = ?, updated_at = ?
		 WHERE id = ?`,
		p.Handle,
		p.Country,
		p.Pronouns,
		p.Bio,
		time.Now(),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating profile %s: %w", userID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("user", userID)
	}

	u, err := db.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := u.Profile()
	return &profile, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.Country,
		&u.Handle,
		&u.Pronouns,
		&u.Bio,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
