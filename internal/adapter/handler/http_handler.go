package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/shop-billing/internal/core/domain"
	"github.com/rl1809/shop-billing/internal/core/service"
)

const maxBodyBytes = 1 << 20

var tracer = otel.Tracer("github.com/rl1809/shop-billing/internal/adapter/handler")

type HTTPHandler struct {
	inventory *service.InventoryService
	billing   *service.BillingService
	ping      func(ctx context.Context) error
	logger    *zap.Logger
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(inventory *service.InventoryService, billing *service.BillingService, ping func(ctx context.Context) error, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		inventory: inventory,
		billing:   billing,
		ping:      ping,
		logger:    logger,
	}
}

// Routes registers every endpoint and wraps the mux with request tracing,
// logging and a per-request deadline.
func (h *HTTPHandler) Routes(requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("GET /api/inventory", h.ListItems)
	mux.HandleFunc("POST /api/inventory", h.CreateItem)
	mux.HandleFunc("GET /api/inventory/{id}", h.GetItem)
	mux.HandleFunc("PUT /api/inventory/{id}", h.UpdateItem)
	mux.HandleFunc("DELETE /api/inventory/{id}", h.DeleteItem)

	mux.HandleFunc("GET /api/bills", h.ListBills)
	mux.HandleFunc("POST /api/bills", h.CreateBill)
	mux.HandleFunc("GET /api/bills/{id}", h.GetBill)
	mux.HandleFunc("PUT /api/bills/{id}", h.UpdateBill)
	mux.HandleFunc("DELETE /api/bills/{id}", h.DeleteBill)

	return h.logRequests(withTimeout(mux, requestTimeout))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorStatus maps a service error to its HTTP status and client message.
// Store failures are reported generically.
func errorStatus(err error, notFound string) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, notFound
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate request"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *HTTPHandler) logFailure(r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (h *HTTPHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}

		h.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func withTimeout(next http.Handler, timeout time.Duration) http.Handler {
	if timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
