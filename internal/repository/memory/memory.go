// Package memory is an in-process repository.Store. It enforces the same
// uniqueness keys as the SQL schemas, so flows exercised against it behave as
// they do against a real database, including conflicts between concurrent
// creates.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/model"
	"github.com/sakif/tour-tracker/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	users      map[string]*model.User
	byEmail    map[string]string
	byUsername map[string]string

	cities   map[int64]*model.City
	venues   map[int64]*model.Venue
	tours    map[int64]*model.Tour
	concerts map[int64]*model.Concert

	cityKeys    map[model.CityKey]int64
	venueKeys   map[model.VenueKey]int64
	tourKeys    map[model.TourKey]int64
	concertKeys map[model.ConcertKey]int64

	nextID int64
	now    func() time.Time
}

func New() *Store {
	return &Store{
		users:       make(map[string]*model.User),
		byEmail:     make(map[string]string),
		byUsername:  make(map[string]string),
		cities:      make(map[int64]*model.City),
		venues:      make(map[int64]*model.Venue),
		tours:       make(map[int64]*model.Tour),
		concerts:    make(map[int64]*model.Concert),
		cityKeys:    make(map[model.CityKey]int64),
		venueKeys:   make(map[model.VenueKey]int64),
		tourKeys:    make(map[model.TourKey]int64),
		concertKeys: make(map[model.ConcertKey]int64),
		now:         time.Now,
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
func (s *Store) Close() error                   { return nil }

// Counts reports the number of rows per table. Tests use it to assert that
// repeated ensures create nothing.
func (s *Store) Counts() (cities, venues, tours, concerts int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cities), len(s.venues), len(s.tours), len(s.concerts)
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// ===========================================================================
// USERS
// ===========================================================================

func (s *Store) InsertUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, taken := s.byEmail[email]; taken {
		return apperror.Conflict("user", "email already exists")
	}
	if _, taken := s.byUsername[user.Username]; taken {
		return apperror.Conflict("user", "username already exists")
	}

	now := s.now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	s.users[user.ID] = &stored
	s.byEmail[email] = user.ID
	s.byUsername[user.Username] = user.ID
	return nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (s *Store) FindUserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(identifier)]
	if !ok {
		id, ok = s.byUsername[identifier]
	}
	if !ok {
		return nil, apperror.NotFound("user", identifier)
	}
	copied := *s.users[id]
	return &copied, nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID string, profile model.Profile) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, apperror.NotFound("user", userID)
	}
	u.Handle = profile.Handle
	u.Country = profile.Country
	u.Pronouns = profile.Pronouns
	u.Bio = profile.Bio
	u.UpdatedAt = s.now()

	p := u.Profile()
	return &p, nil
}

// ===========================================================================
// CITIES AND VENUES
// ===========================================================================

func (s *Store) FindCity(ctx context.Context, key model.CityKey) (*model.City, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.cityKeys[key]
	if !ok {
		return nil, apperror.NotFound("city", key.Name+", "+key.Country)
	}
	c := *s.cities[id]
	return &c, nil
}

func (s *Store) InsertCity(ctx context.Context, city *model.City) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cityKeys[city.Key()]; exists {
		return apperror.Conflict("city", "name and country already exist")
	}
	city.ID = s.id()
	city.CreatedAt = s.now()
	stored := *city
	s.cities[city.ID] = &stored
	s.cityKeys[city.Key()] = city.ID
	return nil
}

func (s *Store) FindVenue(ctx context.Context, key model.VenueKey) (*model.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.venueKeys[key]
	if !ok {
		return nil, apperror.NotFound("venue", fmt.Sprintf("%s in city %d", key.Name, key.CityID))
	}
	v := *s.venues[id]
	return &v, nil
}

func (s *Store) InsertVenue(ctx context.Context, venue *model.Venue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cities[venue.CityID]; !ok {
		return fmt.Errorf("memory: venue references unknown city %d", venue.CityID)
	}
	if _, exists := s.venueKeys[venue.Key()]; exists {
		return apperror.Conflict("venue", "name already exists in city")
	}
	venue.ID = s.id()
	venue.CreatedAt = s.now()
	stored := *venue
	s.venues[venue.ID] = &stored
	s.venueKeys[venue.Key()] = venue.ID
	return nil
}

// ===========================================================================
// TOURS
// ===========================================================================

func (s *Store) FindTour(ctx context.Context, key model.TourKey) (*model.Tour, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key.StartDate = model.Day(key.StartDate)
	id, ok := s.tourKeys[key]
	if !ok {
		return nil, apperror.NotFound("tour", key.Name)
	}
	t := cloneTour(s.tours[id])
	return &t, nil
}

func (s *Store) InsertTour(ctx context.Context, tour *model.Tour) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tourKeys[tour.Key()]; exists {
		return apperror.Conflict("tour", "name, artist and start date already exist")
	}
	tour.ID = s.id()
	tour.StartDate = model.Day(tour.StartDate)
	tour.CreatedAt = s.now()
	stored := cloneTour(tour)
	s.tours[tour.ID] = &stored
	s.tourKeys[tour.Key()] = tour.ID
	return nil
}

func (s *Store) GetTour(ctx context.Context, id int64) (*model.Tour, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tours[id]
	if !ok {
		return nil, apperror.NotFound("tour", strconv.FormatInt(id, 10))
	}
	copied := cloneTour(t)
	return &copied, nil
}

func (s *Store) ListTours(ctx context.Context) ([]model.Tour, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tours := make([]model.Tour, 0, len(s.tours))
	for _, t := range s.tours {
		tours = append(tours, cloneTour(t))
	}
	sort.Slice(tours, func(i, j int) bool {
		if !tours[i].StartDate.Equal(tours[j].StartDate) {
			return tours[i].StartDate.After(tours[j].StartDate)
		}
		return tours[i].ID > tours[j].ID
	})
	return tours, nil
}

func (s *Store) LatestTour(ctx context.Context) (*model.Tour, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.Tour
	for _, t := range s.tours {
		if latest == nil || t.ID > latest.ID {
			latest = t
		}
	}
	if latest == nil {
		return nil, apperror.NotFound("tour", "latest")
	}
	copied := cloneTour(latest)
	return &copied, nil
}

// cloneTour copies t without sharing its ImageURLs backing array.
func cloneTour(t *model.Tour) model.Tour {
	c := *t
	c.ImageURLs = slices.Clone(t.ImageURLs)
	return c
}

// ===========================================================================
// CONCERTS
// ===========================================================================

func (s *Store) FindConcert(ctx context.Context, key model.ConcertKey) (*model.Concert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key.Date = model.Day(key.Date)
	id, ok := s.concertKeys[key]
	if !ok {
		return nil, apperror.NotFound("concert", fmt.Sprintf("tour %d venue %d", key.TourID, key.VenueID))
	}
	c := *s.concerts[id]
	return &c, nil
}

func (s *Store) InsertConcert(ctx context.Context, concert *model.Concert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tours[concert.TourID]; !ok {
		return fmt.Errorf("memory: concert references unknown tour %d", concert.TourID)
	}
	if _, ok := s.venues[concert.VenueID]; !ok {
		return fmt.Errorf("memory: concert references unknown venue %d", concert.VenueID)
	}
	if _, exists := s.concertKeys[concert.Key()]; exists {
		return apperror.Conflict("concert", "tour, venue and date already exist")
	}
	concert.ID = s.id()
	concert.Date = model.Day(concert.Date)
	concert.UserCount = 0
	concert.ReviewCount = 0
	concert.CreatedAt = s.now()
	stored := *concert
	s.concerts[concert.ID] = &stored
	s.concertKeys[concert.Key()] = concert.ID
	return nil
}

func (s *Store) GetConcert(ctx context.Context, id int64) (*model.Concert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.concerts[id]
	if !ok {
		return nil, apperror.NotFound("concert", strconv.FormatInt(id, 10))
	}
	copied := *c
	return &copied, nil
}

func (s *Store) ListConcerts(ctx context.Context) ([]model.Concert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	concerts := make([]model.Concert, 0, len(s.concerts))
	for _, c := range s.concerts {
		concerts = append(concerts, *c)
	}
	sort.Slice(concerts, func(i, j int) bool {
		if !concerts[i].Date.Equal(concerts[j].Date) {
			return concerts[i].Date.After(concerts[j].Date)
		}
		return concerts[i].ID > concerts[j].ID
	})
	return concerts, nil
}

func (s *Store) CountConcertsSince(ctx context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := model.Day(since)
	n := 0
	for _, c := range s.concerts {
		if !c.Date.Before(day) {
			n++
		}
	}
	return n, nil
}
