// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Shivanand-hulikatti/display-order-numbers/internal/model"
	"github.com/Shivanand-hulikatti/display-order-numbers/internal/repository"
	"github.com/Shivanand-hulikatti/display-order-numbers/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const capacityHint = "please complete some orders first"

// OrderHandler holds all HTTP handlers for orders and display numbers.
type OrderHandler struct {
	orders  *service.OrderService
	numbers *service.OrderNumberService
	logger  *slog.Logger
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(orders *service.OrderService, numbers *service.OrderNumberService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, numbers: numbers, logger: logger}
}

// NewRouter builds the full route table with its middleware stack.
func NewRouter(h *OrderHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	r.Route("/restaurants/{restaurantID}", func(r chi.Router) {
		r.Post("/orders", h.CreateOrder)
		r.Get("/orders/search", h.SearchOrders)
		r.Get("/orders/number/{number}", h.GetByDisplayNumber)
		r.Get("/slots/stats", h.SlotStats)
		r.Post("/slots/cleanup", h.CleanupSlots)
	})

	r.Route("/orders/{orderID}", func(r chi.Router) {
		r.Get("/", h.GetOrder)
		r.Patch("/status", h.UpdateStatus)
		r.Post("/release", h.ReleaseNumber)
	})

	return r
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func restaurantID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "restaurantID"), 10, 64)
	return id, err == nil && id > 0
}

func orderID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	return id, err == nil
}

func toResponse(o model.Order) model.OrderResponse {
	return model.OrderResponse{Order: o, DisplayNumber: service.FormatDisplayNumber(o.DisplayOrderNumber)}
}

func (h *OrderHandler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", chimiddleware.GetReqID(r.Context()))
	writeError(w, http.StatusInternalServerError, msg)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// CreateOrder handles POST /restaurants/{restaurantID}/orders
// Creates an order and assigns it a display number.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid restaurant id")
		return
	}

	var req model.CreateOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), rid, req)
	if err != nil {
		if errors.Is(err, service.ErrCapacityExhausted) {
			writeJSON(w, http.StatusConflict, model.ErrorResponse{Error: err.Error(), Hint: capacityHint})
			return
		}
		h.internalError(w, r, "failed to create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(*order))
}

// SearchOrders handles GET /restaurants/{restaurantID}/orders/search
// Query parameters: q, include_completed, limit.
func (h *OrderHandler) SearchOrders(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid restaurant id")
		return
	}

	q := r.URL.Query()
	includeCompleted, _ := strconv.ParseBool(q.Get("include_completed"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	orders, err := h.numbers.SearchOrders(r.Context(), rid, q.Get("q"), includeCompleted, limit)
	if err != nil {
		h.internalError(w, r, "failed to search orders", err)
		return
	}

	out := make([]model.OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetByDisplayNumber handles GET /restaurants/{restaurantID}/orders/number/{number}
// Returns the order currently holding the number.
func (h *OrderHandler) GetByDisplayNumber(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid restaurant id")
		return
	}
	raw, err := url.PathUnescape(chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid display number")
		return
	}
	n, ok := service.ParseDisplayNumber(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "display number must be between 0001 and 9999")
		return
	}

	order, err := h.numbers.LookupByDisplayNumber(r.Context(), rid, n)
	if err != nil {
		h.internalError(w, r, "failed to look up display number", err)
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "no active order holds this number")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(*order))
}

// SlotStats handles GET /restaurants/{restaurantID}/slots/stats
func (h *OrderHandler) SlotStats(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid restaurant id")
		return
	}

	stats, err := h.numbers.GetSlotStats(r.Context(), rid)
	if err != nil {
		h.internalError(w, r, "failed to load slot stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// CleanupSlots handles POST /restaurants/{restaurantID}/slots/cleanup
func (h *OrderHandler) CleanupSlots(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid restaurant id")
		return
	}

	n, err := h.numbers.CleanupOrphanedSlots(r.Context(), rid)
	if err != nil {
		h.internalError(w, r, "failed to clean up slots", err)
		return
	}
	writeJSON(w, http.StatusOK, model.CleanupResponse{RestaurantID: rid, Reset: n})
}

// GetOrder handles GET /orders/{orderID}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.numbers.LookupByInternalID(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "failed to get order", err)
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(*order))
}

// UpdateStatus handles PATCH /orders/{orderID}/status
// Moving an order to completed or cancelled releases its display number.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req model.UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.internalError(w, r, "failed to update order status", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, toResponse(*order))
}

// ReleaseNumber handles POST /orders/{orderID}/release?immediate=true
// Releasing an order without a number succeeds.
func (h *OrderHandler) ReleaseNumber(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	immediate, _ := strconv.ParseBool(r.URL.Query().Get("immediate"))

	if err := h.numbers.ReleaseDisplayNumber(r.Context(), id, immediate); err != nil {
		h.internalError(w, r, "failed to release display number", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
