package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/masterfloor/erp/internal/auth"
	"github.com/masterfloor/erp/internal/config"
	"github.com/masterfloor/erp/internal/database"
	"github.com/masterfloor/erp/internal/validation"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	conn        *database.Connector
	suppliers   *database.SupplierStore
	products    *database.ProductStore
	partners    *database.PartnerStore
	users       *database.UserStore
	lookups     *database.LookupStore
	authService *auth.Service
	provisioner *auth.Provisioner
	cfg         config.Provisioning
}

// New creates a new Handlers instance
func New(conn *database.Connector, cfg config.Provisioning) *Handlers {
	return &Handlers{
		conn:        conn,
		suppliers:   database.NewSupplierStore(conn),
		products:    database.NewProductStore(conn),
		partners:    database.NewPartnerStore(conn),
		users:       database.NewUserStore(conn),
		lookups:     database.NewLookupStore(conn),
		authService: auth.NewService(conn, cfg),
		provisioner: auth.NewProvisioner(conn, cfg),
		cfg:         cfg,
	}
}

// Health reports whether the database connection is up.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if !h.conn.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Lookups returns the reference lists used to fill form selects.
func (h *Handlers) Lookups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roles, err := h.lookups.ListRoles(ctx)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	partnerTypes, err := h.lookups.ListPartnerTypes(ctx)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	productTypes, err := h.lookups.ListProductTypes(ctx)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"roles":         roles,
		"partner_types": partnerTypes,
		"product_types": productTypes,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handlers) jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handlers) jsonSuccess(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": message})
}

func (h *Handlers) jsonCreated(w http.ResponseWriter, id int64) {
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": id})
}

// handleError maps store, auth and validation errors onto status codes. Only
// user-safe messages are written; anything unexpected is logged and reported
// as a generic 500.
func (h *Handlers) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": verrs.Error(), "fields": verrs})
	case errors.Is(err, validation.ErrInvalid), errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrPartnerChange):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, database.ErrNotFound):
		h.jsonError(w, "Not found", http.StatusNotFound)
	case auth.IsBusinessRule(err), errors.Is(err, database.ErrConstraint):
		h.jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, database.ErrNotConnected):
		h.jsonError(w, "Database is unavailable", http.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		h.jsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// decodeForm reads a JSON body into form and validates it. An empty body
// decodes as an empty object.
func decodeForm(r *http.Request, form any) error {
	if err := json.NewDecoder(r.Body).Decode(form); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: request body is not valid JSON", validation.ErrInvalid)
	}
	return validation.Struct(form)
}

func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", validation.ErrInvalid, name)
	}
	return id, nil
}
