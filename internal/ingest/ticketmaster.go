// Package ingest pulls music events from the Ticketmaster Discovery API and
// feeds them into the catalog, either on demand (Processor) or from a queue
// (Consumer).
package ingest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
)

const DefaultBaseURL = "https://app.ticketmaster.com"

// RawEvent is the subset of a Discovery API event the catalog needs.
type RawEvent struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Info        string     `json:"info,omitempty"`
	Description string     `json:"description,omitempty"`
	Dates       RawDates   `json:"dates"`
	Images      []RawImage `json:"images,omitempty"`
	Embedded    struct {
		Venues      []RawVenue      `json:"venues,omitempty"`
		Attractions []RawAttraction `json:"attractions,omitempty"`
	} `json:"_embedded"`
}

type RawDates struct {
	Start struct {
		LocalDate string `json:"localDate"`
	} `json:"start"`
	End *struct {
		LocalDate string `json:"localDate"`
	} `json:"end,omitempty"`
}

type RawImage struct {
	URL string `json:"url"`
}

type RawVenue struct {
	Name    string   `json:"name"`
	City    *RawName `json:"city,omitempty"`
	State   *RawName `json:"state,omitempty"`
	Country *RawName `json:"country,omitempty"`
}

type RawAttraction struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RawName struct {
	Name string `json:"name"`
}

type eventsPage struct {
	Embedded struct {
		Events []RawEvent `json:"events"`
	} `json:"_embedded"`
}

// Client talks to the Discovery API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewClient returns a client for baseURL (DefaultBaseURL when empty).
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// FetchEvents returns the music events listed for a designated market area.
// A page without events yields an empty slice.
func (c *Client) FetchEvents(ctx context.Context, dmaID int) ([]RawEvent, error) {
	errb := oops.In("ticketmaster").With("dma_id", dmaID)

	if c.apiKey == "" {
		return nil, errb.Code("TM_KEY_MISSING").Errorf("ticketmaster API key is not configured")
	}

	q := url.Values{}
	q.Set("classificationName", "music")
	q.Set("dmaId", strconv.Itoa(dmaID))
	q.Set("apikey", c.apiKey)
	endpoint := c.baseURL + "/discovery/v2/events.json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errb.Code("TM_REQUEST_INVALID").Wrap(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errb.Code("TM_UNREACHABLE").Wrapf(err, "fetching events")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, errb.Code("TM_BAD_STATUS").With("status", resp.StatusCode).
			Errorf("failed to fetch events: %d", resp.StatusCode)
	}

	var page eventsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, errb.Code("TM_DECODE_FAILED").Wrapf(err, "decoding events")
	}
	if page.Embedded.Events == nil {
		return []RawEvent{}, nil
	}
	return page.Embedded.Events, nil
}
