package planner

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lotkeeper/lotkeeper/internal/platform/httpx"
)

// Handler serves the planner snapshot API.
type Handler struct {
	logger           *slog.Logger
	service          *Service
	defaultWarehouse string
}

// NewHandler builds the planner handler. defaultWarehouse scopes on-hand
// quantities when a refresh request does not name one.
func NewHandler(logger *slog.Logger, service *Service, defaultWarehouse string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, defaultWarehouse: defaultWarehouse}
}

// MountRoutes registers the planner routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/planner/snapshot", h.listSnapshot)
	r.Post("/planner/refresh", h.refresh)
}

func (h *Handler) listSnapshot(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("planner snapshot read failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "internal", "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	warehouseID := r.URL.Query().Get("warehouse")
	if warehouseID == "" {
		warehouseID = h.defaultWarehouse
	}
	count, err := h.service.Snapshot(r.Context(), warehouseID)
	if err != nil {
		h.logger.Error("planner snapshot refresh failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "internal", "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": count, "warehouse": warehouseID})
}
