package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/preciosjustos-scraper/internal/storage"
)

// RunSource is the live view of a run. *storage.RunLog implements it.
type RunSource interface {
	Snapshot() storage.Run
	Get(code string) (storage.RegionRun, bool)
	GetStats() map[string]int
}

type Handlers struct {
	run    RunSource
	logger *slog.Logger
}

func NewHandlers(run RunSource, logger *slog.Logger) *Handlers {
	return &Handlers{
		run:    run,
		logger: logger.With("component", "api"),
	}
}

// HealthResponse reports liveness plus region counts by status.
type HealthResponse struct {
	Status  string         `json:"status"`
	RunID   string         `json:"run_id"`
	Regions map[string]int `json:"regions"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.run.Snapshot()
	h.respondJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		RunID:   snap.ID,
		Regions: h.run.GetStats(),
	})
}

// GetRun returns the whole run with every region's status.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.run.Snapshot())
}

func (h *Handlers) GetRegion(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))

	region, ok := h.run.Get(code)
	if !ok {
		h.respondError(w, http.StatusNotFound, "region not in run: "+code)
		return
	}
	h.respondJSON(w, http.StatusOK, region)
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
