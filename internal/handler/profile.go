package handler

import (
	"net/http"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/auth"
	"github.com/sakif/tour-tracker/internal/model"
	"github.com/sakif/tour-tracker/internal/service"
)

// ProfileHandler serves the caller's own profile. Both routes sit behind
// auth.RequireAuth.
type ProfileHandler struct {
	Responder
	profiles *service.ProfileService
}

func NewProfileHandler(svc *service.ProfileService, resp Responder) *ProfileHandler {
	return &ProfileHandler{Responder: resp, profiles: svc}
}

type profileRequest struct {
	Handle   *string `json:"handle"`
	Country  *string `json:"country"`
	Pronouns *string `json:"pronouns"`
	Bio      *string `json:"bio"`
}

type profileResponse struct {
	Status string         `json:"status"`
	Data   *model.Profile `json:"data"`
}

// HandleGet returns the profile.
//
// HTTP: GET /api/profile
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apperror.Unauthorized("token required"))
		return
	}

	p, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Status: "success", Data: p})
}

// HandleUpdate replaces all four fields. Omitted fields are cleared.
//
// HTTP: PUT /api/profile
// REQUEST BODY: {"handle": "al", "country": null, "pronouns": "they/them", "bio": "..."}
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apperror.Unauthorized("token required"))
		return
	}

	var req profileRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.profiles.Update(r.Context(), userID, service.ProfileInput{
		Handle:   req.Handle,
		Country:  req.Country,
		Pronouns: req.Pronouns,
		Bio:      req.Bio,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Status: "success", Data: p})
}
