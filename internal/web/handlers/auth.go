package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/masterfloor/erp/internal/auth"
	"github.com/masterfloor/erp/internal/validation"
)

// Login checks credentials and returns the user record.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var form validation.LoginForm
	if err := decodeForm(r, &form); err != nil {
		h.handleError(w, r, err)
		return
	}

	user, err := h.authService.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		if auth.IsNotFound(err) {
			log.Warn().Str("username", form.Username).Str("remote", r.RemoteAddr).Msg("Failed login attempt")
			h.jsonError(w, "Invalid username or password", http.StatusUnauthorized)
			return
		}
		h.handleError(w, r, err)
		return
	}

	log.Info().Str("username", user.Username).Msg("User logged in")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

// Register handles partner self-registration.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var form validation.RegistrationForm
	if err := decodeForm(r, &form); err != nil {
		h.handleError(w, r, err)
		return
	}

	reg, err := h.authService.Register(r.Context(), form.Request())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}
