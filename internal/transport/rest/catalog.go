package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/heartmarshall/circulation-backend/internal/domain"
	"github.com/heartmarshall/circulation-backend/internal/service/catalog"
)

type catalogService interface {
	CreateItem(ctx context.Context, input catalog.CreateItemInput) (domain.CatalogItem, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (domain.CatalogItem, error)
	ListItems(ctx context.Context, input catalog.ListItemsInput) ([]domain.CatalogItem, error)
	UpdateItem(ctx context.Context, input catalog.UpdateItemInput) (domain.CatalogItem, error)
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	Stats(ctx context.Context) (domain.CatalogStats, error)
}

type stockAdjuster interface {
	AdjustStock(ctx context.Context, itemID uuid.UUID, delta int) (domain.CatalogItem, error)
}

// CatalogHandler serves catalog item endpoints.
type CatalogHandler struct {
	catalog catalogService
	stock   stockAdjuster
	log     *slog.Logger
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(catalog catalogService, stock stockAdjuster, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		stock:   stock,
		log:     logger.With("handler", "catalog"),
	}
}

// Create adds an item.
// POST /items
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	item, err := h.catalog.CreateItem(r.Context(), catalog.CreateItemInput{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Category:      req.Category,
		Description:   req.Description,
		PublishedYear: req.PublishedYear,
		TotalCopies:   req.TotalCopies,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

// Get returns one item.
// GET /items/:id
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "id")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	item, err := h.catalog.GetItem(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// List returns items filtered by search and category.
// GET /items?search=dune&category=fiction&limit=50&offset=0
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	offset, err := intQuery(r, "offset")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	items, err := h.catalog.ListItems(r.Context(), catalog.ListItemsInput{
		Search:   optString(r, "search"),
		Category: optString(r, "category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	resp := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, toItemResponse(it))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Update changes descriptive fields.
// PATCH /items/:id
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "id")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	var req updateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	item, err := h.catalog.UpdateItem(r.Context(), catalog.UpdateItemInput{
		ItemID:        id,
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Category:      req.Category,
		Description:   req.Description,
		PublishedYear: req.PublishedYear,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// Delete removes an item without active loans.
// DELETE /items/:id
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "id")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if err := h.catalog.DeleteItem(r.Context(), id); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdjustStock adds or writes off copies.
// POST /items/:id/stock {"delta": -1}
func (h *CatalogHandler) AdjustStock(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "id")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	var req adjustStockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	item, err := h.stock.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// Stats summarises stock and circulation.
// GET /stats
func (h *CatalogHandler) Stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	st, err := h.catalog.Stats(r.Context())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		Titles:          st.Titles,
		TotalCopies:     st.TotalCopies,
		AvailableCopies: st.AvailableCopies,
		ActiveLoans:     st.ActiveLoans,
		OverdueLoans:    st.OverdueLoans,
	})
}
