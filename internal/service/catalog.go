package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/metrics"
	"github.com/sakif/tour-tracker/internal/model"
	"github.com/sakif/tour-tracker/internal/repository"
)

// CatalogService deduplicates cities, venues, tours and concerts by their
// natural keys.
//
// Every entity follows the same check-then-create protocol. The check alone
// does not stop two callers from inserting the same key at once: the unique
// constraint in the store decides, and the loser gets apperror.ErrConflict.
// Ensure* absorbs that conflict by reading the winner's id once.
type CatalogService struct {
	repo    repository.CatalogRepository
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewCatalogService wires a CatalogService. m may be nil.
func NewCatalogService(repo repository.CatalogRepository, m *metrics.Metrics, logger *slog.Logger) *CatalogService {
	return &CatalogService{repo: repo, metrics: m, logger: logger, now: time.Now}
}

// CheckResult answers an existence check. ID is set only when Exists is true.
type CheckResult struct {
	Exists bool  `json:"exists"`
	ID     int64 `json:"id,omitempty"`
}

type CityInput struct {
	Name          string
	Country       string
	DMAID         *int64
	StateProvince *string
}

type VenueInput struct {
	Name    string
	CityID  int64
	State   *string
	Country *string
}

type TourInput struct {
	Name          string
	ArtistID      int64
	StartDate     time.Time
	EndDate       *time.Time
	Description   *string
	ImageURLs     []string
	IsLiveAlbum   bool
	IsConcertFilm bool
}

type ConcertInput struct {
	TourID       int64
	VenueID      int64
	Date         time.Time
	SpecialNotes *string
}

// EnsureResult holds the ids resolved for one event.
type EnsureResult struct {
	CityID    int64 `json:"city_id"`
	VenueID   int64 `json:"venue_id"`
	TourID    int64 `json:"tour_id"`
	ConcertID int64 `json:"concert_id"`
}

// ===========================================================================
// CITIES
// ===========================================================================

func cityKey(name, country string) (model.CityKey, error) {
	key := model.CityKey{Name: strings.TrimSpace(name), Country: strings.TrimSpace(country)}

	var v validator
	v.required("name", key.Name)
	v.required("country", key.Country)
	v.maxLen("name", key.Name, MaxNameLength)
	v.maxLen("country", key.Country, MaxNameLength)
	return key, v.err()
}

// LookupCity returns the city with the given key, or nil when there is none.
func (s *CatalogService) LookupCity(ctx context.Context, name, country string) (*model.City, error) {
	key, err := cityKey(name, country)
	if err != nil {
		return nil, err
	}
	city, err := s.repo.FindCity(ctx, key)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding city: %w", err)
	}
	return city, nil
}

func (s *CatalogService) CheckCity(ctx context.Context, name, country string) (CheckResult, error) {
	city, err := s.LookupCity(ctx, name, country)
	if err != nil || city == nil {
		return CheckResult{}, err
	}
	return CheckResult{Exists: true, ID: city.ID}, nil
}

// CreateCity inserts a new city. An existing (name, country) is reported as
// a conflict carrying the existing id.
func (s *CatalogService) CreateCity(ctx context.Context, in CityInput) (int64, error) {
	key, err := cityKey(in.Name, in.Country)
	if err != nil {
		return 0, err
	}

	existing, err := s.CheckCity(ctx, key.Name, key.Country)
	if err != nil {
		return 0, err
	}
	if existing.Exists {
		return 0, apperror.AlreadyExists("city", existing.ID)
	}

	city := &model.City{
		Name:          key.Name,
		Country:       key.Country,
		DMAID:         in.DMAID,
		StateProvince: trimPtr(in.StateProvince),
	}
	if err := s.repo.InsertCity(ctx, city); err != nil {
		return 0, fmt.Errorf("creating city: %w", err)
	}

	s.logger.Info("city created", slog.Int64("id", city.ID), slog.String("name", city.Name))
	return city.ID, nil
}

func (s *CatalogService) EnsureCity(ctx context.Context, in CityInput) (int64, error) {
	return s.ensure(ctx, "city",
		func() (int64, error) { return s.CreateCity(ctx, in) },
		func() (CheckResult, error) { return s.CheckCity(ctx, in.Name, in.Country) },
	)
}

// ===========================================================================
// VENUES
// ===========================================================================

func venueKey(name string, cityID int64) (model.VenueKey, error) {
	key := model.VenueKey{Name: strings.TrimSpace(name), CityID: cityID}

	var v validator
	v.required("name", key.Name)
	v.requiredID("city_id", key.CityID)
	v.maxLen("name", key.Name, MaxNameLength)
	return key, v.err()
}

func (s *CatalogService) CheckVenue(ctx context.Context, name string, cityID int64) (CheckResult, error) {
	key, err := venueKey(name, cityID)
	if err != nil {
		return CheckResult{}, err
	}
	venue, err := s.repo.FindVenue(ctx, key)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return CheckResult{}, nil
		}
		return CheckResult{}, fmt.Errorf("finding venue: %w", err)
	}
	return CheckResult{Exists: true, ID: venue.ID}, nil
}

func (s *CatalogService) CreateVenue(ctx context.Context, in VenueInput) (int64, error) {
	key, err := venueKey(in.Name, in.CityID)
	if err != nil {
		return 0, err
	}

	existing, err := s.CheckVenue(ctx, key.Name, key.CityID)
	if err != nil {
		return 0, err
	}
	if existing.Exists {
		return 0, apperror.AlreadyExists("venue", existing.ID)
	}

	venue := &model.Venue{
		Name:    key.Name,
		CityID:  key.CityID,
		State:   trimPtr(in.State),
		Country: trimPtr(in.Country),
	}
	if err := s.repo.InsertVenue(ctx, venue); err != nil {
		return 0, fmt.Errorf("creating venue: %w", err)
	}

	s.logger.Info("venue created", slog.Int64("id", venue.ID), slog.String("name", venue.Name))
	return venue.ID, nil
}

func (s *CatalogService) EnsureVenue(ctx context.Context, in VenueInput) (int64, error) {
	return s.ensure(ctx, "venue",
		func() (int64, error) { return s.CreateVenue(ctx, in) },
		func() (CheckResult, error) { return s.CheckVenue(ctx, in.Name, in.CityID) },
	)
}

// ===========================================================================
// TOURS
// ===========================================================================

// ValidateTourKey reports the failing fields of a tour's natural key without
// touching the store.
func ValidateTourKey(name string, artistID int64, startDate time.Time) error {
	_, err := tourKey(name, artistID, startDate)
	return err
}

func tourKey(name string, artistID int64, startDate time.Time) (model.TourKey, error) {
	key := model.TourKey{Name: strings.TrimSpace(name), ArtistID: artistID}

	var v validator
	v.required("name", key.Name)
	v.requiredID("artist_id", key.ArtistID)
	if startDate.IsZero() {
		v.fail("start_date", "start_date is required")
	} else {
		key.StartDate = model.Day(startDate)
	}
	v.maxLen("name", key.Name, MaxNameLength)
	return key, v.err()
}

func (s *CatalogService) CheckTour(ctx context.Context, name string, artistID int64, startDate time.Time) (CheckResult, error) {
	key, err := tourKey(name, artistID, startDate)
	if err != nil {
		return CheckResult{}, err
	}
	tour, err := s.repo.FindTour(ctx, key)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return CheckResult{}, nil
		}
		return CheckResult{}, fmt.Errorf("finding tour: %w", err)
	}
	return CheckResult{Exists: true, ID: tour.ID}, nil
}

func (s *CatalogService) CreateTour(ctx context.Context, in TourInput) (int64, error) {
	key, err := tourKey(in.Name, in.ArtistID, in.StartDate)
	if err != nil {
		return 0, err
	}
	var endDate *time.Time
	if in.EndDate != nil && !in.EndDate.IsZero() {
		end := model.Day(*in.EndDate)
		if end.Before(key.StartDate) {
			return 0, apperror.ValidationFailed("end_date", "end_date must not be before start_date")
		}
		endDate = &end
	}

	existing, err := s.CheckTour(ctx, key.Name, key.ArtistID, key.StartDate)
	if err != nil {
		return 0, err
	}
	if existing.Exists {
		return 0, apperror.AlreadyExists("tour", existing.ID)
	}

	tour := &model.Tour{
		Name:          key.Name,
		ArtistID:      key.ArtistID,
		StartDate:     key.StartDate,
		EndDate:       endDate,
		Description:   in.Description,
		ImageURLs:     in.ImageURLs,
		IsLiveAlbum:   in.IsLiveAlbum,
		IsConcertFilm: in.IsConcertFilm,
	}
	if err := s.repo.InsertTour(ctx, tour); err != nil {
		return 0, fmt.Errorf("creating tour: %w", err)
	}

	s.logger.Info("tour created", slog.Int64("id", tour.ID), slog.String("name", tour.Name))
	return tour.ID, nil
}

func (s *CatalogService) EnsureTour(ctx context.Context, in TourInput) (int64, error) {
	return s.ensure(ctx, "tour",
		func() (int64, error) { return s.CreateTour(ctx, in) },
		func() (CheckResult, error) { return s.CheckTour(ctx, in.Name, in.ArtistID, in.StartDate) },
	)
}

func (s *CatalogService) GetTour(ctx context.Context, id int64) (*model.Tour, error) {
	return s.repo.GetTour(ctx, id)
}

func (s *CatalogService) ListTours(ctx context.Context) ([]model.Tour, error) {
	tours, err := s.repo.ListTours(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tours: %w", err)
	}
	return tours, nil
}

// ===========================================================================
// CONCERTS
// ===========================================================================

// ValidateConcertKey is ValidateTourKey for concerts.
func ValidateConcertKey(tourID, venueID int64, date time.Time) error {
	_, err := concertKey(tourID, venueID, date)
	return err
}

func concertKey(tourID, venueID int64, date time.Time) (model.ConcertKey, error) {
	key := model.ConcertKey{TourID: tourID, VenueID: venueID}

	var v validator
	v.requiredID("tour_id", tourID)
	v.requiredID("venue_id", venueID)
	if date.IsZero() {
		v.fail("date", "date is required")
	} else {
		key.Date = model.Day(date)
	}
	return key, v.err()
}

// CheckConcert matches on the calendar day of date, so two timestamps on the
// same day are the same concert.
func (s *CatalogService) CheckConcert(ctx context.Context, tourID, venueID int64, date time.Time) (CheckResult, error) {
	key, err := concertKey(tourID, venueID, date)
	if err != nil {
		return CheckResult{}, err
	}
	concert, err := s.repo.FindConcert(ctx, key)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return CheckResult{}, nil
		}
		return CheckResult{}, fmt.Errorf("finding concert: %w", err)
	}
	return CheckResult{Exists: true, ID: concert.ID}, nil
}

func (s *CatalogService) CreateConcert(ctx context.Context, in ConcertInput) (int64, error) {
	key, err := concertKey(in.TourID, in.VenueID, in.Date)
	if err != nil {
		return 0, err
	}

	existing, err := s.CheckConcert(ctx, key.TourID, key.VenueID, key.Date)
	if err != nil {
		return 0, err
	}
	if existing.Exists {
		return 0, apperror.AlreadyExists("concert", existing.ID)
	}

	concert := &model.Concert{
		TourID:       key.TourID,
		VenueID:      key.VenueID,
		Date:         key.Date,
		SpecialNotes: in.SpecialNotes,
	}
	if err := s.repo.InsertConcert(ctx, concert); err != nil {
		return 0, fmt.Errorf("creating concert: %w", err)
	}

	s.logger.Info("concert created", slog.Int64("id", concert.ID), slog.Int64("tourID", concert.TourID))
	return concert.ID, nil
}

func (s *CatalogService) EnsureConcert(ctx context.Context, in ConcertInput) (int64, error) {
	return s.ensure(ctx, "concert",
		func() (int64, error) { return s.CreateConcert(ctx, in) },
		func() (CheckResult, error) { return s.CheckConcert(ctx, in.TourID, in.VenueID, in.Date) },
	)
}

func (s *CatalogService) GetConcert(ctx context.Context, id int64) (*model.Concert, error) {
	return s.repo.GetConcert(ctx, id)
}

func (s *CatalogService) ListConcerts(ctx context.Context) ([]model.Concert, error) {
	concerts, err := s.repo.ListConcerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing concerts: %w", err)
	}
	return concerts, nil
}

// ===========================================================================
// COMPOSITION
// ===========================================================================

// ensure runs create and turns a conflict into the id of the row that holds
// the key. A conflict from the pre-check already carries that id. A conflict
// from the store means another caller won the insert; the key is read once
// more and the winner's id returned.
func (s *CatalogService) ensure(ctx context.Context, entity string,
	create func() (int64, error), check func() (CheckResult, error),
) (int64, error) {
	id, err := create()
	if err == nil {
		s.metrics.RecordDedup(entity, metrics.OutcomeCreated)
		return id, nil
	}
	if !errors.Is(err, apperror.ErrConflict) {
		s.metrics.RecordDedup(entity, metrics.OutcomeError)
		return 0, err
	}

	if existing, ok := apperror.ExistingID(err); ok {
		s.metrics.RecordDedup(entity, metrics.OutcomeFound)
		s.logger.DebugContext(ctx, "reusing existing row", slog.String("entity", entity), slog.Int64("id", existing))
		return existing, nil
	}

	winner, cerr := check()
	if cerr != nil {
		s.metrics.RecordDedup(entity, metrics.OutcomeError)
		return 0, errors.Join(err, cerr)
	}
	if !winner.Exists {
		s.metrics.RecordDedup(entity, metrics.OutcomeError)
		return 0, err
	}

	s.metrics.RecordDedup(entity, metrics.OutcomeConflictResolved)
	s.logger.DebugContext(ctx, "lost insert race, using winner",
		slog.String("entity", entity), slog.Int64("id", winner.ID))
	return winner.ID, nil
}

// EnsureEvent resolves or creates the city, venue, tour and concert of ev in
// that order, feeding each id into the next step. The first failure stops
// the chain; rows created before it are kept.
func (s *CatalogService) EnsureEvent(ctx context.Context, ev model.Event) (*EnsureResult, error) {
	var res EnsureResult
	var err error

	var state *string
	if ev.Venue.State != "" {
		state = &ev.Venue.State
	}

	res.CityID, err = s.EnsureCity(ctx, CityInput{
		Name:          ev.Venue.City,
		Country:       ev.Venue.Country,
		StateProvince: state,
	})
	if err != nil {
		return &res, fmt.Errorf("ensuring city: %w", err)
	}

	var country *string
	if ev.Venue.Country != "" {
		country = &ev.Venue.Country
	}
	res.VenueID, err = s.EnsureVenue(ctx, VenueInput{
		Name:    ev.Venue.Name,
		CityID:  res.CityID,
		State:   state,
		Country: country,
	})
	if err != nil {
		return &res, fmt.Errorf("ensuring venue: %w", err)
	}

	tour := TourInput{
		Name:      ev.Name,
		ArtistID:  ev.ArtistID,
		StartDate: ev.StartDate,
	}
	if !ev.EndDate.IsZero() {
		end := ev.EndDate
		tour.EndDate = &end
	}
	if ev.ImageURL != "" {
		tour.ImageURLs = []string{ev.ImageURL}
	}
	res.TourID, err = s.EnsureTour(ctx, tour)
	if err != nil {
		return &res, fmt.Errorf("ensuring tour: %w", err)
	}

	concert := ConcertInput{
		TourID:  res.TourID,
		VenueID: res.VenueID,
		Date:    ev.StartDate,
	}
	if ev.Description != "" {
		notes := ev.Description
		concert.SpecialNotes = &notes
	}
	res.ConcertID, err = s.EnsureConcert(ctx, concert)
	if err != nil {
		return &res, fmt.Errorf("ensuring concert: %w", err)
	}

	return &res, nil
}

// IngestStatus reports how many concerts fall within the last day and the
// most recently created tour.
func (s *CatalogService) IngestStatus(ctx context.Context) (*model.IngestStatus, error) {
	now := s.now()

	count, err := s.repo.CountConcertsSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("counting recent concerts: %w", err)
	}

	status := &model.IngestStatus{ConcertCount: count, LastChecked: now.UTC()}

	latest, err := s.repo.LatestTour(ctx)
	switch {
	case err == nil:
		status.LatestTour = &model.TourSketch{Name: latest.Name, StartDate: latest.StartDate}
	case errors.Is(err, apperror.ErrNotFound):
	default:
		return nil, fmt.Errorf("loading latest tour: %w", err)
	}

	return status, nil
}
