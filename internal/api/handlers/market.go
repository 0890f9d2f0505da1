package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/quantfeed/pulse/internal/aggregate"
	"github.com/quantfeed/pulse/internal/contracts"
	"github.com/quantfeed/pulse/internal/market"
	"github.com/quantfeed/pulse/internal/warehouse"
	"github.com/quantfeed/pulse/pkg/config"
	"github.com/quantfeed/pulse/pkg/database"
	"github.com/quantfeed/pulse/pkg/logger"
)

// MarketHandler handles the dashboard read path and the refresh trigger
type MarketHandler struct {
	service   *market.Service
	warehouse *warehouse.Repository // nil when no database is configured
	db        *database.DB          // nil when no database is configured
	config    *config.Config
	logger    *logger.Logger
}

// NewMarketHandler creates a new market handler
func NewMarketHandler(
	service *market.Service,
	wh *warehouse.Repository,
	db *database.DB,
	cfg *config.Config,
	log *logger.Logger,
) *MarketHandler {
	return &MarketHandler{
		service:   service,
		warehouse: wh,
		db:        db,
		config:    cfg,
		logger:    log,
	}
}

// PerformanceResponse is the multi-point read-path payload
type PerformanceResponse struct {
	// Points maps each requested point id to its resolved snapshot
	Points map[string]contracts.Snapshot `json:"points"`
	// Order lists resolved point ids oldest to newest
	Order []string `json:"order"`
	// Trajectories maps group names to their cross-snapshot movement
	Trajectories map[string][]market.TrajectoryPoint `json:"trajectories"`
	// Errors carries per-point failures without failing the batch
	Errors map[string]string `json:"errors,omitempty"`
}

// GetPerformance resolves the requested points and assembles
// trajectories across them.
// GET /api/performance?snapshot=...&groupBy=...&sector=...&industry=...&yAxis=...&weighting=...
func (h *MarketHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	refs, err := contracts.ParsePointRefs(q.Get("snapshot"))
	if err != nil {
		if errors.Is(err, contracts.ErrTooManyPoints) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("at most %d snapshot points allowed", contracts.MaxPoints))
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	groupBy, err := contracts.ParseGroupBy(q.Get("groupBy"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	yAxis, err := contracts.ParseYAxis(q.Get("yAxis"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	weighting, err := contracts.ParseWeighting(q.Get("weighting"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := aggregate.Options{
		GroupBy:        groupBy,
		SectorFilter:   q.Get("sector"),
		IndustryFilter: q.Get("industry"),
	}

	points, failures := h.service.Resolve(ctx, refs, opts)

	resp := PerformanceResponse{
		Points:       points,
		Trajectories: map[string][]market.TrajectoryPoint{},
	}

	if len(failures) > 0 {
		resp.Errors = make(map[string]string, len(failures))
		for id, ferr := range failures {
			switch {
			case errors.Is(ferr, contracts.ErrSnapshotNotFound):
				resp.Errors[id] = "snapshot not found"
			default:
				h.logger.WithError(ferr).WithField("point", id).Error("Point resolution failed")
				resp.Errors[id] = "failed to resolve point"
				// Upstream failure on the live point degrades to the
				// empty "no data" snapshot instead of failing the page.
				if contracts.ParsePointRef(id).IsLive() {
					resp.Points[id] = contracts.Snapshot{Data: []contracts.GroupAggregate{}}
				}
			}
		}
	}

	// Reconstruct temporal order from resolved timestamps; concurrent
	// fetches return in no particular order.
	for id := range points {
		resp.Order = append(resp.Order, id)
	}
	sort.Slice(resp.Order, func(i, j int) bool {
		return points[resp.Order[i]].LastUpdated < points[resp.Order[j]].LastUpdated
	})

	if len(resp.Order) >= 2 {
		ordered := make([]contracts.Snapshot, 0, len(resp.Order))
		for _, id := range resp.Order {
			ordered = append(ordered, points[id])
		}
		resp.Trajectories = market.BuildTrajectories(ordered, yAxis, weighting)
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetSnapshots lists stored snapshots, newest first.
// GET /api/snapshots
func (h *MarketHandler) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := h.service.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list snapshots")
		respondError(w, http.StatusInternalServerError, "Failed to list snapshots")
		return
	}

	if infos == nil {
		infos = []contracts.SnapshotInfo{}
	}
	respondJSON(w, http.StatusOK, infos)
}

// GetSectors returns the distinct sector names of one resolved point.
// GET /api/sectors?snapshot=<id>
func (h *MarketHandler) GetSectors(w http.ResponseWriter, r *http.Request) {
	ref := contracts.ParsePointRef(r.URL.Query().Get("snapshot"))

	sectors, err := h.service.Sectors(r.Context(), ref)
	if err != nil {
		if errors.Is(err, contracts.ErrSnapshotNotFound) {
			respondError(w, http.StatusNotFound, "snapshot not found")
			return
		}
		h.logger.WithError(err).Error("Failed to resolve sectors")
		respondError(w, http.StatusInternalServerError, "Failed to resolve sectors")
		return
	}

	if sectors == nil {
		sectors = []string{}
	}
	respondJSON(w, http.StatusOK, map[string][]string{"sectors": sectors})
}

// GetHistory serves a group's recorded aggregate history.
// GET /api/history?name=<group>&limit=<n>
func (h *MarketHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.warehouse == nil {
		respondError(w, http.StatusServiceUnavailable, "history requires a configured database")
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	points, err := h.warehouse.History(r.Context(), name, limit)
	if err != nil {
		h.logger.WithError(err).WithField("name", name).Error("Failed to query history")
		respondError(w, http.StatusInternalServerError, "Failed to query history")
		return
	}

	if points == nil {
		points = []warehouse.HistoryPoint{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":   name,
		"points": points,
	})
}

// Download streams the full-export CSV for a date id.
// GET /api/download/{id}
func (h *MarketHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	data, err := h.service.Export(r.Context(), id)
	if err != nil {
		if errors.Is(err, contracts.ErrExportNotFound) {
			respondError(w, http.StatusNotFound, "export not found")
			return
		}
		h.logger.WithError(err).WithField("id", id).Error("Failed to read export")
		respondError(w, http.StatusInternalServerError, "Failed to read export")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="finviz_full_export_%s.csv"`, id))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Refresh triggers a fresh fetch-aggregate-persist run. When a cron
// secret is configured the call must carry it as a bearer token.
// POST /api/refresh
func (h *MarketHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if secret := h.config.Cron.Secret; secret != "" {
		if r.Header.Get("Authorization") != "Bearer "+secret {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
	}

	h.logger.Info("Manual refresh triggered")

	snap, err := h.service.Refresh(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Refresh failed")
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "refresh failed",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"timestamp": time.UnixMilli(snap.LastUpdated).UTC().Format(time.RFC3339),
		"groups":    len(snap.Data),
	})
}

// Health returns server health status, with database detail when one
// is configured.
// GET /health
func (h *MarketHandler) Health(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"status":  "ok",
		"service": "pulse-api",
	}

	if h.db != nil {
		status, err := h.db.HealthCheck(r.Context())
		payload["database"] = status
		if err != nil {
			payload["status"] = "degraded"
		}
	}

	respondJSON(w, http.StatusOK, payload)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
