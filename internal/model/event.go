package model

import "time"

// Event is one normalized external listing, ready to be resolved into a
// city, venue, tour and concert.
type Event struct {
	ExternalID  string
	Name        string
	ArtistID    int64
	StartDate   time.Time
	EndDate     time.Time
	ImageURL    string
	Description string
	Venue       EventVenue
}

type EventVenue struct {
	Name    string
	City    string
	State   string
	Country string
}

// IngestStatus summarises recent ingestion activity.
type IngestStatus struct {
	ConcertCount int         `json:"concertCount"`
	LatestTour   *TourSketch `json:"latestTour"`
	LastChecked  time.Time   `json:"lastChecked"`
}

type TourSketch struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
}
