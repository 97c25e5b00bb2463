package imports

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lotkeeper/lotkeeper/internal/inventory"
	"github.com/lotkeeper/lotkeeper/internal/platform/httpx"
	"github.com/lotkeeper/lotkeeper/internal/shared"
)

// 10 MB cap on uploaded CSV bodies.
const maxImportBody = 10 << 20

// Handler exposes the CSV import endpoints. Bodies are raw CSV text.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the imports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the import routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/imports", func(r chi.Router) {
		r.Post("/receiving", h.importReceiving)
		r.Post("/sellerboard", h.importSellerboard)
		r.Post("/manual-orders", h.importManualOrders)
	})
}

func (h *Handler) importReceiving(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readBody(w, r)
	if !ok {
		return
	}
	result, err := h.service.ImportReceiving(r.Context(), raw, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "receiving import", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) importSellerboard(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readBody(w, r)
	if !ok {
		return
	}
	asOf := time.Time{}
	if v := r.URL.Query().Get("as_of"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", "as_of must be RFC3339")
			return
		}
		asOf = parsed
	}
	run, err := h.service.ImportSellerboard(r.Context(), raw, asOf, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "sellerboard import", err)
		return
	}
	httpx.JSON(w, http.StatusOK, run)
}

func (h *Handler) importManualOrders(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readBody(w, r)
	if !ok {
		return
	}
	run, err := h.service.ImportManualOrders(r.Context(), raw, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "manual orders import", err)
		return
	}
	httpx.JSON(w, http.StatusOK, run)
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxImportBody))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Bad Request", "unreadable body")
		return "", false
	}
	if len(raw) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", "empty body")
		return "", false
	}
	return string(raw), true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrDuplicateFile):
		httpx.Problem(w, http.StatusConflict, "duplicate", "Duplicate File", err.Error())
	case errors.Is(err, inventory.ErrDuplicateBatch):
		httpx.Problem(w, http.StatusConflict, "duplicate_batch", "Duplicate Batch", err.Error())
	case errors.Is(err, inventory.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "not_found", "Not Found", err.Error())
	case errors.Is(err, ErrBadFile):
		httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "internal", "Internal Error", "")
	}
}
