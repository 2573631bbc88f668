package handler

import (
	"net/http"

	"github.com/rl1809/shop-billing/internal/core/domain"
)

const idempotencyHeader = "Idempotency-Key"

type BillHTTPRequest struct {
	CustomerName string            `json:"customerName"`
	Items        []domain.LineItem `json:"items"`
}

func (h *HTTPHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := h.billing.ListBills(r.Context())
	if err != nil {
		h.writeBillError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillResponses(bills))
}

func (h *HTTPHandler) GetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := h.billing.GetBill(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeBillError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillResponse(*bill))
}

// CreateBill ignores any client-supplied total; the engine computes it.
func (h *HTTPHandler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var req BillHTTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	key := r.Header.Get(idempotencyHeader)
	bill, err := h.billing.CreateBillOnce(r.Context(), key, req.CustomerName, req.Items)
	if err != nil {
		h.writeBillError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBillResponse(*bill))
}

func (h *HTTPHandler) UpdateBill(w http.ResponseWriter, r *http.Request) {
	var req BillHTTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	update := domain.BillUpdate{
		CustomerName: req.CustomerName,
		Items:        req.Items,
	}
	bill, err := h.billing.UpdateBill(r.Context(), r.PathValue("id"), update)
	if err != nil {
		h.writeBillError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillResponse(*bill))
}

func (h *HTTPHandler) DeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := h.billing.DeleteBill(r.Context(), r.PathValue("id")); err != nil {
		h.writeBillError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Bill deleted successfully"})
}

func (h *HTTPHandler) writeBillError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorStatus(err, "Bill not found")
	h.logFailure(r, status, err)
	writeJSON(w, status, ErrorResponse{Error: message})
}
