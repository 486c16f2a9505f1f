package handlers

import (
	"context"

	"github.com/maruel/bibliodb/internal/storage"
)

// HealthHandler reports whether the data files can be loaded.
type HealthHandler struct {
	store   *storage.Store
	version string
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(store *storage.Store, version string) *HealthHandler {
	return &HealthHandler{store: store, version: version}
}

// HealthRequest is the request type for health check (empty).
type HealthRequest struct{}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Counts  map[string]int `json:"counts,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Health loads the collections if needed and reports their sizes.
//
// A load failure is reported in the body with status "degraded" rather than as
// an HTTP error.
func (h *HealthHandler) Health(ctx context.Context, req HealthRequest) (*HealthResponse, error) {
	resp := &HealthResponse{Status: "ok", Version: h.version}
	if err := h.store.EnsureDataLoaded(ctx); err != nil {
		resp.Status = "degraded"
		resp.Error = err.Error()
		return resp, nil
	}
	resp.Counts = map[string]int{
		"authors":   len(h.store.Authors()),
		"books":     len(h.store.Books()),
		"bookItems": len(h.store.BookItems()),
		"patrons":   len(h.store.Patrons()),
		"loans":     len(h.store.Loans()),
	}
	return resp, nil
}
