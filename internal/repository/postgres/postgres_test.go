package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/model"
)

var uniqueViolation = &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "cities_name_country_key"}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return NewWithPool(mock), mock
}

func TestStore_InsertUser(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		errMsg    string
	}{
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(pgxmock.AnyArg(), "a@x.com", "alice", "hash", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "duplicate is conflict",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantErr: apperror.ErrConflict,
		},
		{
			name: "connection error is wrapped",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).WillReturnError(errors.New("connection refused"))
			},
			errMsg: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			tt.setupMock(mock)

			user := &model.User{Email: "a@x.com", Username: "alice", PasswordHash: "hash"}
			err := store.InsertUser(context.Background(), user)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.NotErrorIs(t, err, apperror.ErrConflict)
			default:
				require.NoError(t, err)
				assert.NotEmpty(t, user.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestStore_FindUserByIdentifier(t *testing.T) {
	columns := []string{"id", "email", "username", "password_hash", "country", "handle", "pronouns", "bio", "created_at", "updated_at"}
	now := time.Now()
	country := "US"

	t.Run("found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = lower\(\$1\) OR username = \$1`).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("u1", "a@x.com", "alice", "hash", &country, (*string)(nil), (*string)(nil), (*string)(nil), now, now))

		u, err := store.FindUserByIdentifier(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, "u1", u.ID)
		assert.Equal(t, "hash", u.PasswordHash)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing is not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT .+ FROM users`).WillReturnError(pgx.ErrNoRows)

		_, err := store.FindUserByIdentifier(context.Background(), "ghost")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_UpdateProfile_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`UPDATE users SET`).WillReturnError(pgx.ErrNoRows)

	_, err := store.UpdateProfile(context.Background(), "ghost", model.Profile{})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertCity(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantID    int64
		wantErr   error
	}{
		{
			name: "returns generated id",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO cities`).
					WithArgs("Austin", "USA", pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnRows(pgxmock.NewRows([]string{"city_id", "created_at"}).AddRow(int64(7), time.Now()))
			},
			wantID: 7,
		},
		{
			name: "unique violation is conflict",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO cities`).WillReturnError(uniqueViolation)
			},
			wantErr: apperror.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			tt.setupMock(mock)

			city := &model.City{Name: "Austin", Country: "USA"}
			err := store.InsertCity(context.Background(), city)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, city.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestStore_InsertConcert_TruncatesDate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`INSERT INTO concerts`).
		WithArgs(int64(1), int64(2), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"concert_id", "created_at"}).AddRow(int64(3), time.Now()))

	concert := &model.Concert{TourID: 1, VenueID: 2, Date: time.Date(2025, 1, 1, 21, 15, 0, 0, time.UTC), UserCount: 9}
	require.NoError(t, store.InsertConcert(context.Background(), concert))
	assert.Equal(t, int64(3), concert.ID)
	assert.Zero(t, concert.UserCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListTours(t *testing.T) {
	columns := []string{"tour_id", "name", "artist_id", "start_date", "end_date", "description",
		"image_urls", "is_live_album", "is_concert_film", "created_at"}
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .+ FROM tours ORDER BY start_date DESC`).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(int64(2), "Y Tour", int64(5), start, (*time.Time)(nil), (*string)(nil),
				[]string{"https://img.example/y.jpg"}, false, false, time.Now()))

	tours, err := store.ListTours(context.Background())
	require.NoError(t, err)
	require.Len(t, tours, 1)
	assert.Equal(t, "Y Tour", tours[0].Name)
	assert.Equal(t, []string{"https://img.example/y.jpg"}, tours[0].ImageURLs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CountConcertsSince(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM concerts WHERE date >= \$1`).
		WithArgs(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	n, err := store.CountConcertsSince(context.Background(), time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Ping(t *testing.T) {
	t.Run("up", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectPing()

		require.NoError(t, store.Ping(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("down", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectPing().WillReturnError(errors.New("down"))

		err := store.Ping(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "down")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// =========================================================================
// MIGRATIONS
// =========================================================================

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost:5432/db", "pgx5://u:p@localhost:5432/db"},
		{"postgresql://localhost/db?sslmode=disable", "pgx5://localhost/db?sslmode=disable"},
		{"pgx5://localhost/db", "pgx5://localhost/db"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, migrateURL(tt.in))
		})
	}
}

type fakeMigrator struct {
	upErr      error
	version    uint
	dirty      bool
	versionErr error
	closed     bool
}

func (f *fakeMigrator) Up() error { return f.upErr }

func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }

func (f *fakeMigrator) Close() (error, error) {
	f.closed = true
	return nil, nil
}

func TestMigrateUp(t *testing.T) {
	tests := []struct {
		name        string
		m           *fakeMigrator
		wantVersion uint
		wantErr     bool
	}{
		{name: "applies migrations", m: &fakeMigrator{version: 2}, wantVersion: 2},
		{name: "no change is fine", m: &fakeMigrator{upErr: migrate.ErrNoChange, version: 2}, wantVersion: 2},
		{name: "empty database", m: &fakeMigrator{versionErr: migrate.ErrNilVersion}, wantVersion: 0},
		{name: "up failure", m: &fakeMigrator{upErr: errors.New("syntax error")}, wantErr: true},
		{name: "dirty schema", m: &fakeMigrator{version: 1, dirty: true}, wantVersion: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := migrateUp(tt.m)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantVersion, version)
			assert.True(t, tt.m.closed, "migrator should be closed")
		})
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}
