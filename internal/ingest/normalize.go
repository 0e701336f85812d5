package ingest

import (
	"hash/fnv"
	"strings"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/model"
)

const (
	DefaultMaxOccurrences = 3
	UnknownVenue          = "Unknown Venue"
)

// FilterEvents keeps at most maxOccurrences events per name, in order.
func FilterEvents(events []RawEvent, maxOccurrences int) []RawEvent {
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}
	seen := make(map[string]int, len(events))
	out := make([]RawEvent, 0, len(events))
	for _, ev := range events {
		seen[ev.Name]++
		if seen[ev.Name] <= maxOccurrences {
			out = append(out, ev)
		}
	}
	return out
}

// ArtistID maps a Ticketmaster attraction id onto the numeric artist id the
// catalog keys tours by. The empty id maps to 0.
func ArtistID(attractionID string) int64 {
	if attractionID == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(attractionID))
	return int64(h.Sum32())
}

// Normalize flattens a raw event. A missing name or start date is a
// validation error; everything else has a default.
func Normalize(raw RawEvent) (model.Event, error) {
	ev := model.Event{
		ExternalID: raw.ID,
		Name:       strings.TrimSpace(raw.Name),
	}

	var missing []string
	if ev.Name == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(raw.Dates.Start.LocalDate) == "" {
		missing = append(missing, "start_date")
	}
	if len(missing) > 0 {
		return model.Event{}, apperror.MissingFields(missing...)
	}

	start, err := model.ParseDate(raw.Dates.Start.LocalDate)
	if err != nil {
		return model.Event{}, apperror.ValidationFailed("start_date", err.Error())
	}
	ev.StartDate = start
	ev.EndDate = start
	if raw.Dates.End != nil && raw.Dates.End.LocalDate != "" {
		end, err := model.ParseDate(raw.Dates.End.LocalDate)
		if err != nil {
			return model.Event{}, apperror.ValidationFailed("end_date", err.Error())
		}
		ev.EndDate = end
	}

	if len(raw.Embedded.Attractions) > 0 {
		ev.ArtistID = ArtistID(raw.Embedded.Attractions[0].ID)
	}
	if len(raw.Images) > 0 {
		ev.ImageURL = raw.Images[0].URL
	}
	ev.Description = raw.Info
	if ev.Description == "" {
		ev.Description = raw.Description
	}

	ev.Venue.Name = UnknownVenue
	if len(raw.Embedded.Venues) > 0 {
		v := raw.Embedded.Venues[0]
		if name := strings.TrimSpace(v.Name); name != "" {
			ev.Venue.Name = name
		}
		ev.Venue.City = nameOf(v.City)
		ev.Venue.State = nameOf(v.State)
		ev.Venue.Country = nameOf(v.Country)
	}

	return ev, nil
}

func nameOf(n *RawName) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Name)
}
