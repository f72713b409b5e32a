package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"stagehall/internal/database"
)

// ShowsHandler serves the public read endpoints the website renders from.
type ShowsHandler struct {
	Shows        *database.ShowRepository
	Performances *database.PerformanceRepository
}

func NewShowsHandler(shows *database.ShowRepository, performances *database.PerformanceRepository) *ShowsHandler {
	return &ShowsHandler{Shows: shows, Performances: performances}
}

// List returns every show.
func (h *ShowsHandler) List(w http.ResponseWriter, r *http.Request) {
	shows, err := h.Shows.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list shows")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"shows": shows})
}

// Get returns one show by slug.
func (h *ShowsHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	show, err := h.Shows.GetBySlug(r.Context(), slug)
	if errors.Is(err, database.ErrShowNotFound) {
		respondError(w, http.StatusNotFound, "show not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load show")
		return
	}
	respondJSON(w, http.StatusOK, show)
}

// ListPerformances returns a show's performances by slug.
func (h *ShowsHandler) ListPerformances(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	show, err := h.Shows.GetBySlug(r.Context(), slug)
	if errors.Is(err, database.ErrShowNotFound) {
		respondError(w, http.StatusNotFound, "show not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load show")
		return
	}

	perfs, err := h.Performances.ListByShow(r.Context(), show.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list performances")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"show": show.Slug, "performances": perfs})
}

// Upcoming returns all performances from now on, across shows. The public
// calendar is rendered from this.
func (h *ShowsHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	perfs, err := h.Performances.ListUpcoming(r.Context(), time.Now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list performances")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"performances": perfs})
}
