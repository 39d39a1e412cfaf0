package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/boutique/storefront/internal/backend"
	"github.com/boutique/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// AccountAPI is the part of the shop API behind the address book and the
// checkout preferences.
type AccountAPI interface {
	ListAddresses(ctx context.Context) ([]domain.Address, error)
	CreateAddress(ctx context.Context, addr domain.Address) (*domain.Address, error)
	UpdateAddress(ctx context.Context, id int64, addr domain.Address) (*domain.Address, error)
	DeleteAddress(ctx context.Context, id int64) error
	GetPreferences(ctx context.Context) (*domain.Preferences, error)
	UpdatePreferences(ctx context.Context, prefs domain.Preferences) (*domain.Preferences, error)
}

type AccountHandler struct {
	api     AccountAPI
	timeout time.Duration
}

func NewAccountHandler(api AccountAPI, timeout time.Duration) *AccountHandler {
	return &AccountHandler{
		api:     api,
		timeout: timeout,
	}
}

// GET /api/v1/addresses
func (h *AccountHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if !backend.Authenticated(r.Context()) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	addrs, err := h.api.ListAddresses(ctx)
	if err != nil {
		handleError(w, r, errors.Wrap(err, "list addresses"))
		return
	}
	if addrs == nil {
		addrs = []domain.Address{}
	}
	respondJSON(w, http.StatusOK, addrs)
}

// POST /api/v1/addresses
func (h *AccountHandler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if !backend.Authenticated(r.Context()) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var addr domain.Address
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := addr.Validate(); err != nil {
		handleError(w, r, err)
		return
	}

	created, err := h.api.CreateAddress(ctx, addr)
	if err != nil {
		handleError(w, r, errors.Wrap(err, "create address"))
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// PATCH /api/v1/addresses/{id}
func (h *AccountHandler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if !backend.Authenticated(r.Context()) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var addr domain.Address
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := addr.Validate(); err != nil {
		handleError(w, r, err)
		return
	}

	updated, err := h.api.UpdateAddress(ctx, id, addr)
	if err != nil {
		handleError(w, r, errors.Wrapf(err, "update address %d", id))
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DELETE /api/v1/addresses/{id}
func (h *AccountHandler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if !backend.Authenticated(r.Context()) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.api.DeleteAddress(ctx, id); err != nil {
		handleError(w, r, errors.Wrapf(err, "delete address %d", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/preferences
func (h *AccountHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if !backend.Authenticated(r.Context()) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	prefs, err := h.api.GetPreferences(ctx)
	if err != nil {
		handleError(w, r, errors.Wrap(err, "get preferences"))
		return
	}
	if prefs == nil {
		prefs = &domain.Preferences{}
	}
	respondJSON(w, http.StatusOK, prefs)
}

// PATCH /api/v1/preferences
func (h *AccountHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if !backend.Authenticated(r.Context()) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var prefs domain.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	updated, err := h.api.UpdatePreferences(ctx, prefs)
	if err != nil {
		handleError(w, r, errors.Wrap(err, "update preferences"))
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
