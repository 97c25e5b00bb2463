package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lotkeeper/lotkeeper/internal/platform/httpx"
	"github.com/lotkeeper/lotkeeper/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	var req createMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", err.Error())
		return
	}
	input := CreateMovementInput{
		Type:          MovementType(req.Type),
		FromWarehouse: req.FromWarehouse,
		ToWarehouse:   req.ToWarehouse,
		Channel:       req.Channel,
		ExternalRef:   req.ExternalRef,
		ActorID:       shared.ActorFromContext(r.Context()),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{SKU: line.SKU, BatchID: line.BatchID, Quantity: line.Quantity, Note: line.Note})
	}
	movement, err := h.service.CreateMovement(r.Context(), input)
	if err != nil {
		h.respondError(w, "create movement", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMovementResponse(movement))
}

func (h *Handler) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req createReceiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", err.Error())
		return
	}
	input := ReceiptInput{
		ToWarehouse: req.ToWarehouse,
		ExternalRef: req.ExternalRef,
		ActorID:     shared.ActorFromContext(r.Context()),
	}
	for _, line := range req.Lines {
		var received time.Time
		if line.ReceivedDate != "" {
			parsed, err := time.Parse("2006-01-02", line.ReceivedDate)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", "received_date must be YYYY-MM-DD")
				return
			}
			received = parsed
		}
		input.Lines = append(input.Lines, ReceiptLineInput{
			BatchID:         line.BatchID,
			SKU:             line.SKU,
			Quantity:        line.Quantity,
			ReceivedDate:    received,
			UnitCost:        line.UnitCost,
			SupplierBatchNo: line.SupplierBatchNo,
			Note:            line.Note,
		})
	}
	movement, err := h.service.CreateReceipt(r.Context(), input)
	if err != nil {
		h.respondError(w, "create receipt", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMovementResponse(movement))
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	id, err := movementID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", "invalid movement id")
		return
	}
	movement, err := h.service.Commit(r.Context(), id)
	if err != nil {
		h.respondError(w, "commit movement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMovementResponse(movement))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := movementID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", "invalid movement id")
		return
	}
	movement, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.respondError(w, "cancel movement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMovementResponse(movement))
}

func (h *Handler) handleGetMovement(w http.ResponseWriter, r *http.Request) {
	id, err := movementID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", "invalid movement id")
		return
	}
	movement, err := h.service.GetMovement(r.Context(), id)
	if err != nil {
		h.respondError(w, "get movement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMovementResponse(movement))
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", err.Error())
		return
	}
	if req.DryRun || req.Type == "" {
		lines, err := h.service.Allocate(r.Context(), req.SKU, req.WarehouseID, req.Quantity)
		if err != nil {
			h.respondError(w, "allocate", err)
			return
		}
		resp := []allocationResponse{}
		for _, line := range lines {
			resp = append(resp, allocationResponse{BatchID: line.Batch.BatchID, SKU: line.Batch.SKU, Quantity: line.Quantity})
		}
		httpx.JSON(w, http.StatusOK, resp)
		return
	}
	movement, err := h.service.CreateOutbound(r.Context(), OutboundInput{
		Type:        MovementType(req.Type),
		SKU:         req.SKU,
		WarehouseID: req.WarehouseID,
		Quantity:    req.Quantity,
		Channel:     req.Channel,
		ExternalRef: req.ExternalRef,
		ActorID:     shared.ActorFromContext(r.Context()),
		Note:        req.Note,
	})
	if err != nil {
		h.respondError(w, "create outbound", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMovementResponse(movement))
}

func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := BatchFilter{
		SKU:         q.Get("sku"),
		WarehouseID: q.Get("warehouse"),
		OnlyInStock: q.Get("in_stock") == "true",
	}
	batches, err := h.service.ListBatches(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list batches", err)
		return
	}
	resp := []batchResponse{}
	for _, b := range batches {
		resp = append(resp, toBatchResponse(b))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.service.GetBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		h.respondError(w, "get batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBatchResponse(batch))
}

func (h *Handler) handleUpdateCompliance(w http.ResponseWriter, r *http.Request) {
	var req compliancePatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", err.Error())
		return
	}
	batch, err := h.service.UpdateCompliance(r.Context(), chi.URLParam(r, "batchID"), CompliancePatch{
		GSTRatePct:          req.GSTRatePct,
		Accession:           req.Accession,
		AmazonSTNPrice:      req.AmazonSTNPrice,
		EwaybillProductName: req.EwaybillProductName,
		EwaybillPrice:       req.EwaybillPrice,
		PiecesPerCarton:     req.PiecesPerCarton,
		BaseCostINR:         req.BaseCostINR,
		BaseCostRMB:         req.BaseCostRMB,
		BaseCostUSD:         req.BaseCostUSD,
		UnitCost:            req.UnitCost,
		Notes:               req.Notes,
		ActorID:             shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, "update compliance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBatchResponse(batch))
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := LedgerFilter{
		BatchID: q.Get("batch"),
		SKU:     q.Get("sku"),
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", "from must be RFC3339")
			return
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", "to must be RFC3339")
			return
		}
		filter.To = t
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Limit = n
		}
	}
	entries, err := h.service.Ledger(r.Context(), filter)
	if err != nil {
		h.respondError(w, "query ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	batchID := r.URL.Query().Get("batch")
	if batchID != "" {
		rec, err := h.service.Reconcile(r.Context(), batchID)
		if err != nil {
			h.respondError(w, "reconcile batch", err)
			return
		}
		httpx.JSON(w, http.StatusOK, toReconciliationResponse(rec))
		return
	}
	recs, err := h.service.ReconcileAll(r.Context())
	if err != nil {
		h.respondError(w, "reconcile ledger", err)
		return
	}
	resp := []reconciliationResponse{}
	for _, rec := range recs {
		resp = append(resp, toReconciliationResponse(rec))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleFBAExport(w http.ResponseWriter, r *http.Request) {
	var req fbaExportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", err.Error())
		return
	}
	rows := make([]FBAPlanRow, 0, len(req.Rows))
	for _, row := range req.Rows {
		rows = append(rows, FBAPlanRow{SKU: row.SKU, Quantity: row.Quantity, FCCode: row.FCCode})
	}
	export, err := h.service.BuildFBAExport(r.Context(), req.WarehouseID, rows)
	if err != nil {
		h.respondError(w, "build fba export", err)
		return
	}
	httpx.JSON(w, http.StatusOK, export)
}

// respondError maps the inventory error taxonomy onto HTTP problem details.
func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "not_found", "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateBatch):
		httpx.Problem(w, http.StatusConflict, "duplicate_batch", "Duplicate Batch", err.Error())
	case errors.Is(err, ErrNegativeStock):
		httpx.Problem(w, http.StatusConflict, "negative_stock", "Insufficient Stock", err.Error())
	case errors.Is(err, ErrCompliancePending):
		httpx.Problem(w, http.StatusUnprocessableEntity, "compliance_error", "Compliance Incomplete", err.Error())
	case errors.Is(err, ErrAlreadyProcessed):
		httpx.Problem(w, http.StatusConflict, "allocation_error", "Movement Not Draft", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrDuplicateLine):
		httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "internal", "Internal Error", "")
	}
}

func movementID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
