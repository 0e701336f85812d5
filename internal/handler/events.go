package handler

import (
	"context"
	"net/http"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/ingest"
	"github.com/sakif/tour-tracker/internal/service"
)

// EventProcessor runs one ingestion pass for a market area.
type EventProcessor interface {
	Process(ctx context.Context, dmaID, maxEvents int) (*ingest.Report, error)
}

// EventsHandler triggers Ticketmaster ingestion and reports on it.
type EventsHandler struct {
	Responder
	processor EventProcessor
	catalog   *service.CatalogService
}

// NewEventsHandler returns an EventsHandler. processor may be nil when no
// Ticketmaster key is configured; HandleProcess then answers 503.
func NewEventsHandler(processor EventProcessor, catalog *service.CatalogService, resp Responder) *EventsHandler {
	return &EventsHandler{Responder: resp, processor: processor, catalog: catalog}
}

type processRequest struct {
	DMAID     flexInt `json:"dmaId"`
	MaxEvents flexInt `json:"maxEvents"`
}

type processResponse struct {
	Success   bool                    `json:"success"`
	Count     int                     `json:"count"`
	Processed []ingest.ProcessedEvent `json:"processed"`
	Failed    []ingest.FailedEvent    `json:"failed"`
}

// HandleProcess fetches and stores the events of one DMA.
//
// HTTP: POST /api/events/process
// REQUEST BODY: {"dmaId": 222, "maxEvents": 50}
func (h *EventsHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	if h.processor == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "unavailable",
			Message: "event ingestion is not configured",
		})
		return
	}

	var req processRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.DMAID <= 0 {
		h.writeError(w, r, apperror.MissingFields("dmaId"))
		return
	}
	if req.MaxEvents <= 0 {
		req.MaxEvents = ingest.DefaultMaxEvents
	}

	report, err := h.processor.Process(r.Context(), int(req.DMAID), int(req.MaxEvents))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, processResponse{
		Success:   true,
		Count:     len(report.Processed),
		Processed: report.Processed,
		Failed:    report.Failed,
	})
}

// HandleVerify reports recent ingestion activity.
//
// HTTP: GET /api/events/verify
func (h *EventsHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	status, err := h.catalog.IngestStatus(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
