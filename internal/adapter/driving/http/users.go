package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/go-chi/chi/v5"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type userDTO struct {
	RollNo    string    `json:"rollno"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Online    bool      `json:"online"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserDTO(u domain.User) *userDTO {
	return &userDTO{
		RollNo:    u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Online:    u.Online,
		CreatedAt: u.CreatedAt,
	}
}

type userResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	User    *userDTO `json:"user,omitempty"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RollNo string `json:"rollno"`
		Name   string `json:"name"`
		Email  string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, userResponse{Message: "Invalid request body"})
		return
	}

	u, err := h.UserService.Register(r.Context(), req.RollNo, req.Name, req.Email)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, userResponse{Success: true, User: toUserDTO(u)})
	case errors.Is(err, domain.ErrInvalidUserID):
		writeJSON(w, http.StatusBadRequest, userResponse{Message: "Invalid Roll Number (Alphanumeric only)"})
	case errors.Is(err, domain.ErrDuplicateUser):
		writeJSON(w, http.StatusBadRequest, userResponse{Message: "Roll Number already exists"})
	default:
		log.Error().Err(err).Str("rollno", req.RollNo).Msg("Register failed")
		writeJSON(w, http.StatusInternalServerError, userResponse{Message: "Internal Server Error"})
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RollNo string `json:"rollno"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, userResponse{Message: "Invalid request body"})
		return
	}

	u, err := h.UserService.Login(r.Context(), req.RollNo)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, userResponse{Success: true, User: toUserDTO(u)})
	case errors.Is(err, domain.ErrInvalidUserID):
		writeJSON(w, http.StatusBadRequest, userResponse{Message: "Invalid Roll Number"})
	case errors.Is(err, domain.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, userResponse{Message: "User not found"})
	default:
		log.Error().Err(err).Str("rollno", req.RollNo).Msg("Login failed")
		writeJSON(w, http.StatusInternalServerError, userResponse{Message: "Internal Server Error"})
	}
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	rollno := chi.URLParam(r, "rollno")
	u, err := h.UserService.Lookup(r.Context(), rollno)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, userResponse{Success: true, User: toUserDTO(u)})
	case errors.Is(err, domain.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, userResponse{Message: "User not found"})
	default:
		log.Error().Err(err).Str("rollno", rollno).Msg("Get user failed")
		writeJSON(w, http.StatusInternalServerError, userResponse{Message: "Internal Server Error"})
	}
}

func (h *Handler) ICEServers(w http.ResponseWriter, r *http.Request) {
	servers := h.Options.ICEServers
	if servers == nil {
		servers = []webrtc.ICEServer{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"iceServers": servers})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"sessions":    h.Registry.Len(),
		"connections": h.Hub.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error writing response")
	}
}
