package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-billing/internal/core/domain"
)

type InventoryHTTPRequest struct {
	Name     *string          `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Quantity *int             `json:"quantity"`
}

func (h *HTTPHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.ListItems(r.Context())
	if err != nil {
		h.writeInventoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponses(items))
}

func (h *HTTPHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.inventory.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeInventoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(*item))
}

func (h *HTTPHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req InventoryHTTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "invalid request body"})
		return
	}

	if req.Name == nil || req.Price == nil || req.Quantity == nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "name, price and quantity are required"})
		return
	}

	item, err := h.inventory.CreateItem(r.Context(), *req.Name, *req.Price, *req.Quantity)
	if err != nil {
		h.writeInventoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(*item))
}

func (h *HTTPHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req InventoryHTTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "invalid request body"})
		return
	}

	patch := domain.InventoryPatch{
		Name:     req.Name,
		Price:    req.Price,
		Quantity: req.Quantity,
	}
	item, err := h.inventory.UpdateItem(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		h.writeInventoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(*item))
}

func (h *HTTPHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.inventory.DeleteItem(r.Context(), r.PathValue("id")); err != nil {
		h.writeInventoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Item deleted"})
}

func (h *HTTPHandler) writeInventoryError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorStatus(err, "Item not found")
	h.logFailure(r, status, err)
	writeJSON(w, status, MessageResponse{Message: message})
}
