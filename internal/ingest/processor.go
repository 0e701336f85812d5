package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/metrics"
	"github.com/sakif/tour-tracker/internal/model"
	"github.com/sakif/tour-tracker/internal/service"
)

const DefaultMaxEvents = 50

// EventSource lists raw events for a market area.
type EventSource interface {
	FetchEvents(ctx context.Context, dmaID int) ([]RawEvent, error)
}

// EventSink resolves one normalized event into catalog rows.
type EventSink interface {
	EnsureEvent(ctx context.Context, ev model.Event) (*service.EnsureResult, error)
}

// ProcessedEvent is one event that reached the catalog.
type ProcessedEvent struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	service.EnsureResult
}

// FailedEvent is one event that did not.
type FailedEvent struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Report summarises one Process run.
type Report struct {
	Fetched   int              `json:"fetched"`
	Processed []ProcessedEvent `json:"processed"`
	Failed    []FailedEvent    `json:"failed"`
}

type Processor struct {
	source  EventSource
	sink    EventSink
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewProcessor wires a Processor. source may be nil when only HandleRaw is
// used; m may be nil.
func NewProcessor(source EventSource, sink EventSink, m *metrics.Metrics, logger *slog.Logger) *Processor {
	return &Processor{source: source, sink: sink, metrics: m, logger: logger}
}

// Process fetches the events of dmaID, drops over-represented names, keeps
// the first maxEvents and resolves each one. A failing event is logged and
// reported; only a failed fetch aborts the run.
func (p *Processor) Process(ctx context.Context, dmaID, maxEvents int) (*Report, error) {
	if p.source == nil {
		return nil, errors.New("ingest: no event source configured")
	}
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	raw, err := p.source.FetchEvents(ctx, dmaID)
	if err != nil {
		return nil, fmt.Errorf("fetching events for dma %d: %w", dmaID, err)
	}

	events := FilterEvents(raw, DefaultMaxOccurrences)
	if len(events) > maxEvents {
		events = events[:maxEvents]
	}

	report := &Report{
		Fetched:   len(raw),
		Processed: []ProcessedEvent{},
		Failed:    []FailedEvent{},
	}
	for _, r := range events {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		ev, res, err := p.handle(ctx, r)
		if err != nil {
			report.Failed = append(report.Failed, FailedEvent{Name: r.Name, Error: err.Error()})
			continue
		}
		report.Processed = append(report.Processed, ProcessedEvent{
			Name:         ev.Name,
			StartDate:    ev.StartDate,
			EnsureResult: *res,
		})
	}

	p.logger.InfoContext(ctx, "ingest run finished",
		slog.Int("dma_id", dmaID),
		slog.Int("fetched", report.Fetched),
		slog.Int("processed", len(report.Processed)),
		slog.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// HandleRaw decodes one raw event body and resolves it. Malformed bodies
// and events that fail validation come back as apperror.ErrValidation.
func (p *Processor) HandleRaw(ctx context.Context, body []byte) (*service.EnsureResult, error) {
	var r RawEvent
	if err := json.Unmarshal(body, &r); err != nil {
		p.metrics.RecordIngest(metrics.ResultInvalid)
		return nil, &apperror.AppError{Err: apperror.ErrValidation, Message: "malformed event", Cause: err}
	}
	_, res, err := p.handle(ctx, r)
	return res, err
}

func (p *Processor) handle(ctx context.Context, r RawEvent) (model.Event, *service.EnsureResult, error) {
	ev, err := Normalize(r)
	if err != nil {
		p.metrics.RecordIngest(metrics.ResultInvalid)
		p.logger.WarnContext(ctx, "skipping invalid event",
			slog.String("event_id", r.ID), slog.String("error", err.Error()))
		return ev, nil, err
	}

	res, err := p.sink.EnsureEvent(ctx, ev)
	if err != nil {
		result := metrics.ResultFailure
		if errors.Is(err, apperror.ErrValidation) {
			result = metrics.ResultInvalid
		}
		p.metrics.RecordIngest(result)
		p.logger.ErrorContext(ctx, "failed to save event",
			slog.String("event_id", ev.ExternalID),
			slog.String("name", ev.Name),
			slog.String("error", err.Error()),
		)
		return ev, nil, err
	}

	p.metrics.RecordIngest(metrics.ResultSuccess)
	return ev, res, nil
}
