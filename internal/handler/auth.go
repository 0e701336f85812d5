package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/tour-tracker/internal/auth"
	"github.com/sakif/tour-tracker/internal/model"
	"github.com/sakif/tour-tracker/internal/service"
)

// AuthHandler serves registration, login and token verification.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account and issue a token
//   - HandleLogin    → exchange email-or-username plus password for a token
//   - HandleVerify   → resolve the bearer token to the user it names
//
// Tokens are stateless: there is no logout endpoint. A client logs out by
// deleting its stored token.
type AuthHandler struct {
	Responder
	auth *service.AuthService
}

func NewAuthHandler(svc *service.AuthService, resp Responder) *AuthHandler {
	return &AuthHandler{Responder: resp, auth: svc}
}

type registerRequest struct {
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Password string  `json:"password"`
	Country  *string `json:"country"`
}

type registerResponse struct {
	Success bool        `json:"success"`
	User    *model.User `json:"user"`
	Token   string      `json:"token"`
	Message string      `json:"message"`
}

// loginRequest carries the identifier in "email" for compatibility with
// existing clients; "identifier" is accepted too.
type loginRequest struct {
	Email      string `json:"email"`
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	Success bool              `json:"success"`
	Token   string            `json:"token"`
	User    model.UserSummary `json:"user"`
	Message string            `json:"message"`
}

type verifyResponse struct {
	Success bool               `json:"success"`
	User    *model.UserSummary `json:"user"`
}

// HandleRegister creates a user.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"email": "...", "username": "...", "password": "...", "country": "US"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Country:  req.Country,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Success: true,
		User:    res.User,
		Token:   res.Token,
		Message: "User registered successfully",
	})
}

// HandleLogin issues a token.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"email": "alice", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}

	identifier := req.Email
	if identifier == "" {
		identifier = req.Identifier
	}

	res, err := h.auth.Login(r.Context(), identifier, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		Token:   res.Token,
		User:    res.User.Summary(),
		Message: "Login successful",
	})
}

// HandleVerify checks the bearer token itself rather than sitting behind
// RequireAuth, so it can report a deleted user.
//
// HTTP: GET /api/auth/verify
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Verify(r.Context(), auth.BearerToken(r))
	if err != nil {
		h.logger.DebugContext(r.Context(), "token verification failed", slog.String("error", err.Error()))
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{Success: true, User: user})
}
