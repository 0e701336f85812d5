package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/model"
)

// ===========================================================================
// CITIES
// ===========================================================================

func (db *DB) FindCity(ctx context.Context, key model.CityKey) (*model.City, error) {
	var c model.City
	err := db.conn.QueryRowContext(ctx,
		`SELECT city_id, name, country, dma_id, state_province, created_at
		 FROM cities WHERE name = ? AND country = ?`,
		key.Name, key.Country,
	).Scan(&c.ID, &c.Name, &c.Country, &c.DMAID, &c.StateProvince, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("city", key.Name+", "+key.Country)
		}
		return nil, fmt.Errorf("sqlite: finding city: %w", err)
	}
	return &c, nil
}

func (db *DB) InsertCity(ctx context.Context, city *model.City) error {
	city.CreatedAt = time.Now()
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO cities (name, country, dma_id, state_province, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		city.Name, city.Country, city.DMAID, city.StateProvince, city.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("city", "name and country already exist")
		}
		return fmt.Errorf("sqlite: inserting city: %w", err)
	}
	city.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading city id: %w", err)
	}
	return nil
}

// ===========================================================================
// VENUES
// ===========================================================================

func (db *DB) FindVenue(ctx context.Context, key model.VenueKey) (*model.Venue, error) {
	var v model.Venue
	err := db.conn.QueryRowContext(ctx,
		`SELECT venue_id, name, city_id, state, country, created_at
		 FROM venues WHERE name = ? AND city_id = ?`,
		key.Name, key.CityID,
	).Scan(&v.ID, &v.Name, &v.CityID, &v.State, &v.Country, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("venue", fmt.Sprintf("%s in city %d", key.Name, key.CityID))
		}
		return nil, fmt.Errorf("sqlite: finding venue: %w", err)
	}
	return &v, nil
}

func (db *DB) InsertVenue(ctx context.Context, venue *model.Venue) error {
	venue.CreatedAt = time.Now()
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO venues (name, city_id, state, country, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		venue.Name, venue.CityID, venue.State, venue.Country, venue.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("venue", "name already exists in city")
		}
		return fmt.Errorf("sqlite: inserting venue: %w", err)
	}
	venue.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading venue id: %w", err)
	}
	return nil
}

// ===========================================================================
// TOURS
// ===========================================================================

const tourColumns = `tour_id, name, artist_id, start_date, end_date, description, image_urls,
	is_live_album, is_concert_film, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTour(row rowScanner) (*model.Tour, error) {
	var (
		t         model.Tour
		startDate string
		endDate   sql.NullString
		imageURLs sql.NullString
	)
	err := row.Scan(&t.ID, &t.Name, &t.ArtistID, &startDate, &endDate, &t.Description,
		&imageURLs, &t.IsLiveAlbum, &t.IsConcertFilm, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	if t.StartDate, err = time.Parse(model.DateLayout, startDate); err != nil {
		return nil, fmt.Errorf("parsing start_date %q: %w", startDate, err)
	}
	if endDate.Valid {
		end, err := time.Parse(model.DateLayout, endDate.String)
		if err != nil {
			return nil, fmt.Errorf("parsing end_date %q: %w", endDate.String, err)
		}
		t.EndDate = &end
	}
	if imageURLs.Valid && imageURLs.String != "" {
		if err := json.Unmarshal([]byte(imageURLs.String), &t.ImageURLs); err != nil {
			return nil, fmt.Errorf("decoding image_urls: %w", err)
		}
	}
	return &t, nil
}

func (db *DB) FindTour(ctx context.Context, key model.TourKey) (*model.Tour, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+tourColumns+` FROM tours WHERE name = ? AND artist_id = ? AND start_date = ?`,
		key.Name, key.ArtistID, key.StartDate.Format(model.DateLayout))

	t, err := scanTour(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("tour", key.Name)
		}
		return nil, fmt.Errorf("sqlite: finding tour: %w", err)
	}
	return t, nil
}

func (db *DB) InsertTour(ctx context.Context, tour *model.Tour) error {
	var endDate, imageURLs any
	if tour.EndDate != nil {
		endDate = tour.EndDate.Format(model.DateLayout)
	}
	if len(tour.ImageURLs) > 0 {
		encoded, err := json.Marshal(tour.ImageURLs)
		if err != nil {
			return fmt.Errorf("sqlite: encoding image_urls: %w", err)
		}
		imageURLs = string(encoded)
	}

	tour.StartDate = model.Day(tour.StartDate)
	tour.CreatedAt = time.Now()
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO tours (name, artist_id, start_date, end_date, description, image_urls,
		                    is_live_album, is_concert_film, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tour.Name, tour.ArtistID, tour.StartDate.Format(model.DateLayout), endDate,
		tour.Description, imageURLs, tour.IsLiveAlbum, tour.IsConcertFilm, tour.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("tour", "name, artist and start date already exist")
		}
		return fmt.Errorf("sqlite: inserting tour: %w", err)
	}
	tour.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading tour id: %w", err)
	}
	return nil
}

func (db *DB) GetTour(ctx context.Context, id int64) (*model.Tour, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+tourColumns+` FROM tours WHERE tour_id = ?`, id)

	t, err := scanTour(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("tour", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting tour %d: %w", id, err)
	}
	return t, nil
}

func (db *DB) ListTours(ctx context.Context) ([]model.Tour, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+tourColumns+` FROM tours ORDER BY start_date DESC, tour_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tours: %w", err)
	}
	defer rows.Close()

	tours := []model.Tour{}
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning tour: %w", err)
		}
		tours = append(tours, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tours: %w", err)
	}
	return tours, nil
}

func (db *DB) LatestTour(ctx context.Context) (*model.Tour, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+tourColumns+` FROM tours ORDER BY created_at DESC, tour_id DESC LIMIT 1`)

	t, err := scanTour(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("tour", "latest")
		}
		return nil, fmt.Errorf("sqlite: getting latest tour: %w", err)
	}
	return t, nil
}

// ===========================================================================
// CONCERTS
// ===========================================================================

const concertColumns = `concert_id, tour_id, venue_id, date, special_notes, user_count, review_count, created_at`

func scanConcert(row rowScanner) (*model.Concert, error) {
	var (
		c    model.Concert
		date string
	)
	err := row.Scan(&c.ID, &c.TourID, &c.VenueID, &date, &c.SpecialNotes,
		&c.UserCount, &c.ReviewCount, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if c.Date, err = time.Parse(model.DateLayout, date); err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", date, err)
	}
	return &c, nil
}

func (db *DB) FindConcert(ctx context.Context, key model.ConcertKey) (*model.Concert, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+concertColumns+` FROM concerts WHERE tour_id = ? AND venue_id = ? AND date = ?`,
		key.TourID, key.VenueID, model.Day(key.Date).Format(model.DateLayout))

	c, err := scanConcert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("concert", fmt.Sprintf("tour %d venue %d", key.TourID, key.VenueID))
		}
		return nil, fmt.Errorf("sqlite: finding concert: %w", err)
	}
	return c, nil
}

func (db *DB) InsertConcert(ctx context.Context, concert *model.Concert) error {
	concert.Date = model.Day(concert.Date)
	concert.UserCount = 0
	concert.ReviewCount = 0
	concert.CreatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO concerts (tour_id, venue_id, date, special_notes, user_count, review_count, created_at)
		 VALUES (?, ?, ?, ?, 0, 0, ?)`,
		concert.TourID, concert.VenueID, concert.Date.Format(model.DateLayout),
		concert.SpecialNotes, concert.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("concert", "tour, venue and date already exist")
		}
		return fmt.Errorf("sqlite: inserting concert: %w", err)
	}
	concert.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading concert id: %w", err)
	}
	return nil
}

func (db *DB) GetConcert(ctx context.Context, id int64) (*model.Concert, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+concertColumns+` FROM concerts WHERE concert_id = ?`, id)

	c, err := scanConcert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("concert", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting concert %d: %w", id, err)
	}
	return c, nil
}

func (db *DB) ListConcerts(ctx context.Context) ([]model.Concert, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+concertColumns+` FROM concerts ORDER BY date DESC, concert_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing concerts: %w", err)
	}
	defer rows.Close()

	concerts := []model.Concert{}
	for rows.Next() {
		c, err := scanConcert(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning concert: %w", err)
		}
		concerts = append(concerts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating concerts: %w", err)
	}
	return concerts, nil
}

func (db *DB) CountConcertsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM concerts WHERE date >= ?`,
		model.Day(since).Format(model.DateLayout),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting concerts: %w", err)
	}
	return n, nil
}
