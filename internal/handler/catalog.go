package handler

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/model"
	"github.com/sakif/tour-tracker/internal/service"
)

// CatalogHandler serves the deduplicated entities: cities, venues, tours and
// concerts. Every create answers 409 with the existing id when the natural
// key is taken, so clients can run check-then-create without a second read.
type CatalogHandler struct {
	Responder
	catalog *service.CatalogService
}

func NewCatalogHandler(svc *service.CatalogService, resp Responder) *CatalogHandler {
	return &CatalogHandler{Responder: resp, catalog: svc}
}

type createdResponse struct {
	ID int64 `json:"id"`
}

// dateFields parses calendar-day strings and collects every malformed one.
type dateFields struct {
	fields []string
	msgs   []string
}

func (d *dateFields) parse(field, s string) time.Time {
	if strings.TrimSpace(s) == "" {
		return time.Time{}
	}
	t, err := model.ParseDate(s)
	if err != nil {
		d.fields = append(d.fields, field)
		d.msgs = append(d.msgs, field+": "+err.Error())
	}
	return t
}

func (d *dateFields) parseOptional(field, s string) *time.Time {
	t := d.parse(field, s)
	if t.IsZero() {
		return nil
	}
	return &t
}

// withKey folds the natural-key failures of keyErr into the malformed dates
// so one response lists every failing field. A zero time stands in for each
// malformed date, so its "required" failure is replaced by the parse error.
// It returns nil when every date parsed.
func (d *dateFields) withKey(keyErr error) error {
	if len(d.fields) == 0 {
		return nil
	}

	var appErr *apperror.AppError
	if !errors.As(keyErr, &appErr) || !errors.Is(keyErr, apperror.ErrValidation) {
		return apperror.Invalid(d.fields, d.msgs)
	}

	var fields, msgs []string
	used := make(map[string]bool, len(d.fields))
	for i, f := range appErr.Fields {
		if j := slices.Index(d.fields, f); j >= 0 {
			fields = append(fields, f)
			msgs = append(msgs, d.msgs[j])
			used[f] = true
			continue
		}
		fields = append(fields, f)
		if i < len(appErr.Messages) {
			msgs = append(msgs, appErr.Messages[i])
		} else {
			msgs = append(msgs, f+" is invalid")
		}
	}
	for i, f := range d.fields {
		if !used[f] {
			fields = append(fields, f)
			msgs = append(msgs, d.msgs[i])
		}
	}
	return apperror.Invalid(fields, msgs)
}

// =========================================================================
// CITIES
// =========================================================================

type cityRequest struct {
	Name          string   `json:"name"`
	Country       string   `json:"country"`
	DMAID         *flexInt `json:"dma_id"`
	StateProvince *string  `json:"state_province"`
}

// HandleGetCity looks a city up by its natural key. An unknown city is a 200
// with a null body.
//
// HTTP: GET /api/cities?name=Austin&country=USA
func (h *CatalogHandler) HandleGetCity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	city, err := h.catalog.LookupCity(r.Context(), q.Get("name"), q.Get("country"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, city)
}

// HandleCreateCity
//
// HTTP: POST /api/cities
// REQUEST BODY: {"name": "Austin", "country": "USA", "dma_id": "222", "state_province": "TX"}
func (h *CatalogHandler) HandleCreateCity(w http.ResponseWriter, r *http.Request) {
	var req cityRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	in := service.CityInput{
		Name:          req.Name,
		Country:       req.Country,
		StateProvince: req.StateProvince,
	}
	if req.DMAID != nil && *req.DMAID != 0 {
		dma := int64(*req.DMAID)
		in.DMAID = &dma
	}

	id, err := h.catalog.CreateCity(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

// =========================================================================
// VENUES
// =========================================================================

type venueRequest struct {
	Name    string  `json:"name"`
	CityID  flexInt `json:"city_id"`
	State   *string `json:"state"`
	Country *string `json:"country"`
}

// HandleCheckVenue
//
// HTTP: POST /api/venues/check
// REQUEST BODY: {"name": "Moody Center", "city_id": 1}
func (h *CatalogHandler) HandleCheckVenue(w http.ResponseWriter, r *http.Request) {
	var req venueRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.catalog.CheckVenue(r.Context(), req.Name, int64(req.CityID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleCreateVenue
//
// HTTP: POST /api/venues
func (h *CatalogHandler) HandleCreateVenue(w http.ResponseWriter, r *http.Request) {
	var req venueRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.catalog.CreateVenue(r.Context(), service.VenueInput{
		Name:    req.Name,
		CityID:  int64(req.CityID),
		State:   req.State,
		Country: req.Country,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

// =========================================================================
// TOURS
// =========================================================================

type tourRequest struct {
	Name          string   `json:"name"`
	ArtistID      flexInt  `json:"artist_id"`
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	Description   *string  `json:"description"`
	ImageURLs     []string `json:"image_urls"`
	IsLiveAlbum   bool     `json:"is_live_album"`
	IsConcertFilm bool     `json:"is_concert_film"`
}

// tourListItem is the row shape of GET /api/tours.
type tourListItem struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
}

// HandleListTours returns every tour, newest start date first.
//
// HTTP: GET /api/tours
func (h *CatalogHandler) HandleListTours(w http.ResponseWriter, r *http.Request) {
	tours, err := h.catalog.ListTours(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]tourListItem, len(tours))
	for i, t := range tours {
		items[i] = tourListItem{ID: t.ID, Name: t.Name, StartDate: t.StartDate}
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleGetTour
//
// HTTP: GET /api/tours/{id}
func (h *CatalogHandler) HandleGetTour(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	tour, err := h.catalog.GetTour(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tour)
}

// HandleCheckTour
//
// HTTP: POST /api/tours/check
// REQUEST BODY: {"name": "X Tour", "artist_id": 1, "start_date": "2025-01-01"}
func (h *CatalogHandler) HandleCheckTour(w http.ResponseWriter, r *http.Request) {
	var req tourRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	var dates dateFields
	start := dates.parse("start_date", req.StartDate)
	if err := dates.withKey(service.ValidateTourKey(req.Name, int64(req.ArtistID), start)); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.catalog.CheckTour(r.Context(), req.Name, int64(req.ArtistID), start)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleCreateTour
//
// HTTP: POST /api/tours
func (h *CatalogHandler) HandleCreateTour(w http.ResponseWriter, r *http.Request) {
	var req tourRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	var dates dateFields
	in := service.TourInput{
		Name:          req.Name,
		ArtistID:      int64(req.ArtistID),
		StartDate:     dates.parse("start_date", req.StartDate),
		EndDate:       dates.parseOptional("end_date", req.EndDate),
		Description:   req.Description,
		ImageURLs:     req.ImageURLs,
		IsLiveAlbum:   req.IsLiveAlbum,
		IsConcertFilm: req.IsConcertFilm,
	}
	if err := dates.withKey(service.ValidateTourKey(in.Name, in.ArtistID, in.StartDate)); err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.catalog.CreateTour(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

// =========================================================================
// CONCERTS
// =========================================================================

type concertRequest struct {
	TourID       flexInt `json:"tour_id"`
	VenueID      flexInt `json:"venue_id"`
	Date         string  `json:"date"`
	SpecialNotes *string `json:"special_notes"`
}

// HandleListConcerts returns every concert, newest date first.
//
// HTTP: GET /api/concerts
func (h *CatalogHandler) HandleListConcerts(w http.ResponseWriter, r *http.Request) {
	concerts, err := h.catalog.ListConcerts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if concerts == nil {
		concerts = []model.Concert{}
	}
	writeJSON(w, http.StatusOK, concerts)
}

// HandleGetConcert
//
// HTTP: GET /api/concerts/{id}
func (h *CatalogHandler) HandleGetConcert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	concert, err := h.catalog.GetConcert(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, concert)
}

// HandleConcertExists compares dates by calendar day, so a full timestamp
// matches the concert on that day.
//
// HTTP: POST /api/concerts/exists
// REQUEST BODY: {"tour_id": 1, "venue_id": 2, "date": "2025-01-01T20:00:00Z"}
func (h *CatalogHandler) HandleConcertExists(w http.ResponseWriter, r *http.Request) {
	var req concertRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	var dates dateFields
	date := dates.parse("date", req.Date)
	if err := dates.withKey(service.ValidateConcertKey(int64(req.TourID), int64(req.VenueID), date)); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.catalog.CheckConcert(r.Context(), int64(req.TourID), int64(req.VenueID), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleCreateConcert stores user_count and review_count as 0.
//
// HTTP: POST /api/concerts
func (h *CatalogHandler) HandleCreateConcert(w http.ResponseWriter, r *http.Request) {
	var req concertRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	var dates dateFields
	date := dates.parse("date", req.Date)
	if err := dates.withKey(service.ValidateConcertKey(int64(req.TourID), int64(req.VenueID), date)); err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.catalog.CreateConcert(r.Context(), service.ConcertInput{
		TourID:       int64(req.TourID),
		VenueID:      int64(req.VenueID),
		Date:         date,
		SpecialNotes: req.SpecialNotes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}
