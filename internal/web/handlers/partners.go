package handlers

import (
	"net/http"

	"github.com/masterfloor/erp/internal/auth"
	"github.com/masterfloor/erp/internal/validation"
)

// partnerCreated is the response to PartnerCreate. Password is only ever sent here.
type partnerCreated struct {
	Success   bool                  `json:"success"`
	ID        int64                 `json:"id"`
	User      *auth.ProvisionedUser `json:"user,omitempty"`
	UserError string                `json:"user_error,omitempty"`
}

func (h *Handlers) PartnerList(w http.ResponseWriter, r *http.Request) {
	partners, err := h.partners.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, partners)
}

func (h *Handlers) PartnerGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	partner, err := h.partners.GetByID(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, partner)
}

// PartnerCreate adds a partner and, unless auto_user is false, its login.
// A login that could not be created is reported in user_error; the partner
// is still created.
func (h *Handlers) PartnerCreate(w http.ResponseWriter, r *http.Request) {
	var form validation.PartnerForm
	if err := decodeForm(r, &form); err != nil {
		h.handleError(w, r, err)
		return
	}

	autoUser := h.cfg.AutoUser
	if form.AutoUser != nil {
		autoUser = *form.AutoUser
	}

	res, err := h.provisioner.CreatePartner(r.Context(), form.Input(), autoUser)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	out := partnerCreated{Success: true, ID: res.PartnerID, User: res.User}
	if res.UserErr != nil {
		out.UserError = res.UserErr.Error()
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) PartnerUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	var form validation.PartnerForm
	if err := decodeForm(r, &form); err != nil {
		h.handleError(w, r, err)
		return
	}

	taken, err := h.partners.InnExists(r.Context(), form.INN, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if taken {
		h.handleError(w, r, auth.ErrInnTaken)
		return
	}

	if err := h.partners.Update(r.Context(), id, form.Input()); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.jsonSuccess(w, "Partner updated")
}

// PartnerDelete removes the partner together with its login.
func (h *Handlers) PartnerDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := h.partners.Delete(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.jsonSuccess(w, "Partner deleted")
}

func (h *Handlers) PartnerUserGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	user, err := h.provisioner.GetPartnerUser(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// PartnerUserCreate provisions the partner's login. The generated password is
// returned once in the response.
func (h *Handlers) PartnerUserCreate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	var form validation.PartnerUserForm
	if err := decodeForm(r, &form); err != nil {
		h.handleError(w, r, err)
		return
	}

	partner, err := h.partners.GetByID(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	username := form.Username
	if username == "" {
		if username, err = auth.GenerateUsername(partner.CompanyName, h.cfg.UsernamePrefixLength, h.cfg.UsernameSuffixDigits); err != nil {
			h.handleError(w, r, err)
			return
		}
	}

	user, err := h.provisioner.CreatePartnerUser(r.Context(), nil, partner.ID, username, form.Password)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handlers) PartnerUserUpdate(w http.ResponseWriter, r *http.Request) {
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

	user, err := h.provisioner.GetPartnerUser(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := h.provisioner.UpdatePartnerUser(r.Context(), user.ID, form.Username, form.Password); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.jsonSuccess(w, "User updated")
}

func (h *Handlers) PartnerUserDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	user, err := h.provisioner.GetPartnerUser(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := h.provisioner.DeletePartnerUser(r.Context(), user.ID); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.jsonSuccess(w, "User deleted")
}

// PartnerUserResetPassword issues and returns a new one-time password.
func (h *Handlers) PartnerUserResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	user, err := h.provisioner.GetPartnerUser(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	password, err := h.provisioner.ResetPassword(r.Context(), user.ID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "username": user.Username, "password": password})
}
