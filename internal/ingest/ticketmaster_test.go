package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const xTourJSON = `{
  "id": "G5vYZ9",
  "name": "X Tour",
  "info": "All ages",
  "dates": {"start": {"localDate": "2025-01-01"}},
  "images": [{"url": "https://img.example/x.jpg"}, {"url": "https://img.example/y.jpg"}],
  "_embedded": {
    "venues": [{"name": "Moody Center", "city": {"name": "Austin"}, "state": {"name": "Texas"}, "country": {"name": "United States Of America"}}],
    "attractions": [{"id": "K8vZ917", "name": "X"}]
  }
}`

const eventsJSON = `{"_embedded": {"events": [` + xTourJSON + `]}}`

func TestFetchEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/discovery/v2/events.json", r.URL.Path)
		assert.Equal(t, "music", r.URL.Query().Get("classificationName"))
		assert.Equal(t, "222", r.URL.Query().Get("dmaId"))
		assert.Equal(t, "k3y", r.URL.Query().Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eventsJSON))
	}))
	defer srv.Close()

	events, err := NewClient("k3y", srv.URL+"/", time.Second).FetchEvents(context.Background(), 222)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "X Tour", ev.Name)
	assert.Equal(t, "2025-01-01", ev.Dates.Start.LocalDate)
	require.Len(t, ev.Embedded.Venues, 1)
	assert.Equal(t, "Austin", ev.Embedded.Venues[0].City.Name)
}

func TestFetchEvents_NoEmbedded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"page": {"totalElements": 0}}`))
	}))
	defer srv.Close()

	events, err := NewClient("k", srv.URL, time.Second).FetchEvents(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestFetchEvents_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		apiKey  string
		wantMsg string
	}{
		{"bad status", http.StatusTooManyRequests, `{}`, "k", "failed to fetch events: 429"},
		{"bad json", http.StatusOK, `{"_embedded":`, "k", "decoding events"},
		{"no key", http.StatusOK, `{}`, "", "not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(tt.apiKey, srv.URL, time.Second).FetchEvents(context.Background(), 1)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
