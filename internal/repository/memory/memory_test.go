package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/model"
)

func TestInsertUser_DuplicateEmailIgnoresCase(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.InsertUser(ctx, &model.User{Email: "a@x.com", Username: "alice"}))

	err := s.InsertUser(ctx, &model.User{Email: "A@X.com", Username: "other"})
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)
}

func TestFindUserByIdentifier(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := &model.User{Email: "a@x.com", Username: "alice"}
	require.NoError(t, s.InsertUser(ctx, u))

	byEmail, err := s.FindUserByIdentifier(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byName, err := s.FindUserByIdentifier(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	_, err = s.FindUserByIdentifier(ctx, "bob")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestConcertKeyIsPerDay(t *testing.T) {
	s := New()
	ctx := context.Background()

	city := &model.City{Name: "Austin", Country: "USA"}
	require.NoError(t, s.InsertCity(ctx, city))
	venue := &model.Venue{Name: "Moody Center", CityID: city.ID}
	require.NoError(t, s.InsertVenue(ctx, venue))
	tour := &model.Tour{Name: "X Tour", ArtistID: 1, StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, s.InsertTour(ctx, tour))

	first := &model.Concert{TourID: tour.ID, VenueID: venue.ID, Date: time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC)}
	require.NoError(t, s.InsertConcert(ctx, first))

	second := &model.Concert{TourID: tour.ID, VenueID: venue.ID, Date: time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC)}
	err := s.InsertConcert(ctx, second)
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)

	found, err := s.FindConcert(ctx, model.ConcertKey{TourID: tour.ID, VenueID: venue.ID, Date: second.Date})
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
	assert.Zero(t, found.UserCount)
}

func TestUpdateProfile_UnknownUser(t *testing.T) {
	s := New()

	_, err := s.UpdateProfile(context.Background(), "nope", model.Profile{})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestTour_ImageURLsAreNotShared(t *testing.T) {
	s := New()
	ctx := context.Background()

	tour := &model.Tour{
		Name:      "X Tour",
		ArtistID:  1,
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ImageURLs: []string{"https://img.example/a.jpg"},
	}
	require.NoError(t, s.InsertTour(ctx, tour))
	tour.ImageURLs[0] = "caller edit"

	got, err := s.GetTour(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/a.jpg"}, got.ImageURLs)

	got.ImageURLs[0] = "reader edit"
	found, err := s.FindTour(ctx, tour.Key())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/a.jpg"}, found.ImageURLs)

	found.ImageURLs[0] = "another edit"
	list, err := s.ListTours(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"https://img.example/a.jpg"}, list[0].ImageURLs)
}
