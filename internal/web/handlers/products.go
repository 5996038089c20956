package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/masterfloor/erp/internal/database"
	"github.com/masterfloor/erp/internal/validation"
)

// ProductList returns all products, optionally sorted with ?sort=name|type|price|id
// and ?order=asc|desc.
func (h *Handlers) ProductList(w http.ResponseWriter, r *http.Request) {
	field, err := database.ParseProductSortField(r.URL.Query().Get("sort"))
	if err != nil {
		h.handleError(w, r, fmt.Errorf("%w: %v", validation.ErrInvalid, err))
		return
	}
	descending := strings.EqualFold(r.URL.Query().Get("order"), "desc")

	products, err := h.products.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	database.SortProducts(products, field, descending)
	writeJSON(w, http.StatusOK, products)
}

func (h *Handlers) ProductGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	product, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handlers) ProductCreate(w http.ResponseWriter, r *http.Request) {
	var form validation.ProductForm
	if err := decodeForm(r, &form); err != nil {
		h.handleError(w, r, err)
		return
	}
	id, err := h.products.Add(r.Context(), form.Input())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.jsonCreated(w, id)
}

func (h *Handlers) ProductUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	var form validation.ProductForm
	if err := decodeForm(r, &form); err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := h.products.Update(r.Context(), id, form.Input()); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.jsonSuccess(w, "Product updated")
}

func (h *Handlers) ProductDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := h.products.Delete(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.jsonSuccess(w, "Product deleted")
}
