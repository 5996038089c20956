package handlers

import (
	"net/http"

	"github.com/masterfloor/erp/internal/validation"
)

func (h *Handlers) SupplierList(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.suppliers.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suppliers)
}

func (h *Handlers) SupplierGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	supplier, err := h.suppliers.GetByID(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, supplier)
}

func (h *Handlers) SupplierCreate(w http.ResponseWriter, r *http.Request) {
	var form validation.SupplierForm
	if err := decodeForm(r, &form); err != nil {
		h.handleError(w, r, err)
		return
	}
	id, err := h.suppliers.Add(r.Context(), form.Input())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.jsonCreated(w, id)
}

func (h *Handlers) SupplierUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	var form validation.SupplierForm
	if err := decodeForm(r, &form); err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := h.suppliers.Update(r.Context(), id, form.Input()); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.jsonSuccess(w, "Supplier updated")
}

func (h *Handlers) SupplierDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := h.suppliers.Delete(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.jsonSuccess(w, "Supplier deleted")
}
