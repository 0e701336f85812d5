// Package repository declares the storage contract shared by every backend
// (SQLite, PostgreSQL and the in-memory test double).
//
// Error contract for all implementations:
//   - a lookup that matches nothing returns an error wrapping apperror.ErrNotFound
//   - an insert that violates a uniqueness constraint returns an error wrapping
//     apperror.ErrConflict
//   - anything else is a plain wrapped driver error
package repository

import (
	"context"
	"time"

	"github.com/sakif/tour-tracker/internal/model"
)

// UserRepository is the credential store.
type UserRepository interface {
	// InsertUser assigns ID and timestamps on success.
	InsertUser(ctx context.Context, user *model.User) error
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	// FindUserByIdentifier matches identifier against email OR username.
	FindUserByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	// UpdateProfile replaces all four profile fields and returns the stored
	// values.
	UpdateProfile(ctx context.Context, userID string, profile model.Profile) (*model.Profile, error)
}

type CityRepository interface {
	FindCity(ctx context.Context, key model.CityKey) (*model.City, error)
	InsertCity(ctx context.Context, city *model.City) error
}

type VenueRepository interface {
	FindVenue(ctx context.Context, key model.VenueKey) (*model.Venue, error)
	InsertVenue(ctx context.Context, venue *model.Venue) error
}

type TourRepository interface {
	FindTour(ctx context.Context, key model.TourKey) (*model.Tour, error)
	InsertTour(ctx context.Context, tour *model.Tour) error
	GetTour(ctx context.Context, id int64) (*model.Tour, error)
	// ListTours orders by start date, newest first.
	ListTours(ctx context.Context) ([]model.Tour, error)
	// LatestTour is the most recently created tour.
	LatestTour(ctx context.Context) (*model.Tour, error)
}

type ConcertRepository interface {
	FindConcert(ctx context.Context, key model.ConcertKey) (*model.Concert, error)
	// InsertConcert stores user_count and review_count as zero.
	InsertConcert(ctx context.Context, concert *model.Concert) error
	GetConcert(ctx context.Context, id int64) (*model.Concert, error)
	// ListConcerts orders by date, newest first.
	ListConcerts(ctx context.Context) ([]model.Concert, error)
	// CountConcertsSince counts concerts dated on or after since's day.
	CountConcertsSince(ctx context.Context, since time.Time) (int, error)
}

// CatalogRepository groups the deduplicated entity tables.
type CatalogRepository interface {
	CityRepository
	VenueRepository
	TourRepository
	ConcertRepository
}

// Store is a complete backend.
type Store interface {
	UserRepository
	CatalogRepository
	Ping(ctx context.Context) error
	Close() error
}
