package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/model"
)

func (s *Store) FindCity(ctx context.Context, key model.CityKey) (*model.City, error) {
	var c model.City
	err := s.pool.QueryRow(ctx,
		`SELECT city_id, name, country, dma_id, state_province, created_at
		 FROM cities WHERE name = $1 AND country = $2`,
		key.Name, key.Country,
	).Scan(&c.ID, &c.Name, &c.Country, &c.DMAID, &c.StateProvince, &c.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("city", key.Name+", "+key.Country)
		}
		return nil, oops.In("postgres").With("operation", "find city").Wrap(err)
	}
	return &c, nil
}

func (s *Store) InsertCity(ctx context.Context, city *model.City) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO cities (name, country, dma_id, state_province)
		 VALUES ($1, $2, $3, $4)
		 RETURNING city_id, created_at`,
		city.Name, city.Country, city.DMAID, city.StateProvince,
	).Scan(&city.ID, &city.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("city", "name and country already exist")
		}
		return oops.In("postgres").With("operation", "insert city").With("name", city.Name).Wrap(err)
	}
	return nil
}

func (s *Store) FindVenue(ctx context.Context, key model.VenueKey) (*model.Venue, error) {
	var v model.Venue
	err := s.pool.QueryRow(ctx,
		`SELECT venue_id, name, city_id, state, country, created_at
		 FROM venues WHERE name = $1 AND city_id = $2`,
		key.Name, key.CityID,
	).Scan(&v.ID, &v.Name, &v.CityID, &v.State, &v.Country, &v.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("venue", fmt.Sprintf("%s in city %d", key.Name, key.CityID))
		}
		return nil, oops.In("postgres").With("operation", "find venue").Wrap(err)
	}
	return &v, nil
}

func (s *Store) InsertVenue(ctx context.Context, venue *model.Venue) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO venues (name, city_id, state, country)
		 VALUES ($1, $2, $3, $4)
		 RETURNING venue_id, created_at`,
		venue.Name, venue.CityID, venue.State, venue.Country,
	).Scan(&venue.ID, &venue.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("venue", "name already exists in city")
		}
		return oops.In("postgres").With("operation", "insert venue").With("name", venue.Name).Wrap(err)
	}
	return nil
}

const tourColumns = `tour_id, name, artist_id, start_date, end_date, description, image_urls,
	is_live_album, is_concert_film, created_at`

func scanTour(row pgx.Row) (*model.Tour, error) {
	var t model.Tour
	err := row.Scan(&t.ID, &t.Name, &t.ArtistID, &t.StartDate, &t.EndDate, &t.Description,
		&t.ImageURLs, &t.IsLiveAlbum, &t.IsConcertFilm, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) FindTour(ctx context.Context, key model.TourKey) (*model.Tour, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tourColumns+` FROM tours WHERE name = $1 AND artist_id = $2 AND start_date = $3`,
		key.Name, key.ArtistID, model.Day(key.StartDate))

	t, err := scanTour(row)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("tour", key.Name)
		}
		return nil, oops.In("postgres").With("operation", "find tour").Wrap(err)
	}
	return t, nil
}

func (s *Store) InsertTour(ctx context.Context, tour *model.Tour) error {
	tour.StartDate = model.Day(tour.StartDate)
	if tour.EndDate != nil {
		end := model.Day(*tour.EndDate)
		tour.EndDate = &end
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO tours (name, artist_id, start_date, end_date, description, image_urls,
		                    is_live_album, is_concert_film)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING tour_id, created_at`,
		tour.Name, tour.ArtistID, tour.StartDate, tour.EndDate, tour.Description, tour.ImageURLs,
		tour.IsLiveAlbum, tour.IsConcertFilm,
	).Scan(&tour.ID, &tour.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("tour", "name, artist and start date already exist")
		}
		return oops.In("postgres").With("operation", "insert tour").With("name", tour.Name).Wrap(err)
	}
	return nil
}

func (s *Store) GetTour(ctx context.Context, id int64) (*model.Tour, error) {
	t, err := scanTour(s.pool.QueryRow(ctx, `SELECT `+tourColumns+` FROM tours WHERE tour_id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("tour", strconv.FormatInt(id, 10))
		}
		return nil, oops.In("postgres").With("operation", "get tour").With("tour_id", id).Wrap(err)
	}
	return t, nil
}

func (s *Store) ListTours(ctx context.Context) ([]model.Tour, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tourColumns+` FROM tours ORDER BY start_date DESC, tour_id DESC`)
	if err != nil {
		return nil, oops.In("postgres").With("operation", "list tours").Wrap(err)
	}
	defer rows.Close()

	tours := []model.Tour{}
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, oops.In("postgres").With("operation", "scan tour").Wrap(err)
		}
		tours = append(tours, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.In("postgres").With("operation", "iterate tours").Wrap(err)
	}
	return tours, nil
}

func (s *Store) LatestTour(ctx context.Context) (*model.Tour, error) {
	t, err := scanTour(s.pool.QueryRow(ctx,
		`SELECT `+tourColumns+` FROM tours ORDER BY created_at DESC, tour_id DESC LIMIT 1`))
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("tour", "latest")
		}
		return nil, oops.In("postgres").With("operation", "latest tour").Wrap(err)
	}
	return t, nil
}

const concertColumns = `concert_id, tour_id, venue_id, date, special_notes, user_count, review_count, created_at`

func scanConcert(row pgx.Row) (*model.Concert, error) {
	var c model.Concert
	err := row.Scan(&c.ID, &c.TourID, &c.VenueID, &c.Date, &c.SpecialNotes,
		&c.UserCount, &c.ReviewCount, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) FindConcert(ctx context.Context, key model.ConcertKey) (*model.Concert, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+concertColumns+` FROM concerts WHERE tour_id = $1 AND venue_id = $2 AND date = $3`,
		key.TourID, key.VenueID, model.Day(key.Date))

	c, err := scanConcert(row)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("concert", fmt.Sprintf("tour %d venue %d", key.TourID, key.VenueID))
		}
		return nil, oops.In("postgres").With("operation", "find concert").Wrap(err)
	}
	return c, nil
}

// InsertConcert always starts the user and review counters at zero.
func (s *Store) InsertConcert(ctx context.Context, concert *model.Concert) error {
	concert.Date = model.Day(concert.Date)
	concert.UserCount = 0
	concert.ReviewCount = 0

	err := s.pool.QueryRow(ctx,
		`INSERT INTO concerts (tour_id, venue_id, date, special_notes, user_count, review_count)
		 VALUES ($1, $2, $3, $4, 0, 0)
		 RETURNING concert_id, created_at`,
		concert.TourID, concert.VenueID, concert.Date, concert.SpecialNotes,
	).Scan(&concert.ID, &concert.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("concert", "tour, venue and date already exist")
		}
		return oops.In("postgres").With("operation", "insert concert").Wrap(err)
	}
	return nil
}

func (s *Store) GetConcert(ctx context.Context, id int64) (*model.Concert, error) {
	c, err := scanConcert(s.pool.QueryRow(ctx,
		`SELECT `+concertColumns+` FROM concerts WHERE concert_id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("concert", strconv.FormatInt(id, 10))
		}
		return nil, oops.In("postgres").With("operation", "get concert").With("concert_id", id).Wrap(err)
	}
	return c, nil
}

func (s *Store) ListConcerts(ctx context.Context) ([]model.Concert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+concertColumns+` FROM concerts ORDER BY date DESC, concert_id DESC`)
	if err != nil {
		return nil, oops.In("postgres").With("operation", "list concerts").Wrap(err)
	}
	defer rows.Close()

	concerts := []model.Concert{}
	for rows.Next() {
		c, err := scanConcert(rows)
		if err != nil {
			return nil, oops.In("postgres").With("operation", "scan concert").Wrap(err)
		}
		concerts = append(concerts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.In("postgres").With("operation", "iterate concerts").Wrap(err)
	}
	return concerts, nil
}

func (s *Store) CountConcertsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM concerts WHERE date >= $1`, model.Day(since)).Scan(&n)
	if err != nil {
		return 0, oops.In("postgres").With("operation", "count concerts").Wrap(err)
	}
	return n, nil
}
