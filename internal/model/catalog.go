package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used on the wire and in SQLite.
const DateLayout = "2006-01-02"

// City is unique on (Name, Country).
type City struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Country       string    `json:"country"`
	DMAID         *int64    `json:"dma_id"`
	StateProvince *string   `json:"state_province"`
	CreatedAt     time.Time `json:"created_at"`
}

type CityKey struct {
	Name    string
	Country string
}

func (c *City) Key() CityKey { return CityKey{Name: c.Name, Country: c.Country} }

// Venue is unique on (Name, CityID).
type Venue struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CityID    int64     `json:"city_id"`
	State     *string   `json:"state"`
	Country   *string   `json:"country"`
	CreatedAt time.Time `json:"created_at"`
}

type VenueKey struct {
	Name   string
	CityID int64
}

func (v *Venue) Key() VenueKey { return VenueKey{Name: v.Name, CityID: v.CityID} }

// Tour is unique on (Name, ArtistID, StartDate).
type Tour struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	ArtistID      int64      `json:"artist_id"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	Description   *string    `json:"description"`
	ImageURLs     []string   `json:"image_urls"`
	IsLiveAlbum   bool       `json:"is_live_album"`
	IsConcertFilm bool       `json:"is_concert_film"`
	CreatedAt     time.Time  `json:"created_at"`
}

type TourKey struct {
	Name      string
	ArtistID  int64
	StartDate time.Time
}

func (t *Tour) Key() TourKey {
	return TourKey{Name: t.Name, ArtistID: t.ArtistID, StartDate: Day(t.StartDate)}
}

// Concert is unique on (TourID, VenueID, Date) where Date is a calendar day.
type Concert struct {
	ID           int64     `json:"id"`
	TourID       int64     `json:"tour_id"`
	VenueID      int64     `json:"venue_id"`
	Date         time.Time `json:"date"`
	SpecialNotes *string   `json:"special_notes"`
	UserCount    int       `json:"user_count"`
	ReviewCount  int       `json:"review_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type ConcertKey struct {
	TourID  int64
	VenueID int64
	Date    time.Time
}

func (c *Concert) Key() ConcertKey {
	return ConcertKey{TourID: c.TourID, VenueID: c.VenueID, Date: Day(c.Date)}
}

// Day truncates t to midnight UTC of its calendar day. Natural keys always
// compare days, never instants.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts a bare calendar day ("2025-01-01") or an RFC 3339
// timestamp and returns the day it falls on.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return Day(t), nil
}
