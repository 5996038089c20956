package handlers

import (
	"net/http"

	"github.com/masterfloor/erp/internal/validation"
)

func (h *Handlers) UserList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handlers) UserGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UserCreate adds a staff or partner account; a password is required here.
func (h *Handlers) UserCreate(w http.ResponseWriter, r *http.Request) {
	var form validation.UserForm
	if err := decodeForm(r, &form); err != nil {
		h.handleError(w, r, err)
		return
	}
	id, err := h.authService.AddUser(r.Context(), form.Request())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.jsonCreated(w, id)
}

// UserUpdate renames a user and, when given, changes its password and role.
func (h *Handlers) UserUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	var form validation.UserForm
	if err := decodeForm(r, &form); err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := h.authService.UpdateUser(r.Context(), id, form.Request()); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.jsonSuccess(w, "User updated")
}

func (h *Handlers) UserDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.jsonSuccess(w, "User deleted")
}
