package inventory

import "github.com/go-chi/chi/v5"

// MountRoutes attaches the inventory endpoints under the given router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/movements", func(r chi.Router) {
		r.Post("/", h.handleCreateMovement)
		r.Get("/{id}", h.handleGetMovement)
		r.Post("/{id}/commit", h.handleCommit)
		r.Post("/{id}/cancel", h.handleCancel)
	})
	r.Post("/receipts", h.handleCreateReceipt)
	r.Post("/allocations", h.handleAllocate)
	r.Route("/batches", func(r chi.Router) {
		r.Get("/", h.handleListBatches)
		r.Get("/{batchID}", h.handleGetBatch)
		r.Patch("/{batchID}/compliance", h.handleUpdateCompliance)
	})
	r.Get("/ledger", h.handleLedger)
	r.Get("/ledger/reconcile", h.handleReconcile)
	r.Post("/fba/export", h.handleFBAExport)
}
