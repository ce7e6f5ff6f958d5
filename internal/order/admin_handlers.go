package order

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/foodshed/market-api/internal/common"
	"github.com/foodshed/market-api/internal/events"
)

// Recomputer rebuilds an order's distribution charges on demand.
type Recomputer interface {
	Recompute(ctx context.Context, orderID uuid.UUID) error
}

// EventLog reads back the journaled events of an aggregate.
type EventLog interface {
	ListDomainEvents(ctx context.Context, aggregateID uuid.UUID, limit int) ([]events.DomainEvent, error)
}

// AdminHandler provides administrative order management endpoints.
type AdminHandler struct {
	Svc       *Service
	Recompute Recomputer
	Events    EventLog
}

// Get returns any order with its lines and charges, no ownership check.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, err := h.Svc.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderResponse(o)})
}

// ForceRecompute synchronously rebuilds the order's distribution charges,
// bypassing the queue. Useful after fee definitions change.
func (h *AdminHandler) ForceRecompute(w http.ResponseWriter, r *http.Request) {
	if h.Recompute == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "recompute not configured", nil)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	if err := h.Recompute.Recompute(r.Context(), orderID); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "recompute failed", nil)
		return
	}
	o, err := h.Svc.Get(r.Context(), orderID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderResponse(o)})
}

// ListEvents returns the order's journaled change history, newest first.
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "event log not configured", nil)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	list, err := h.Events.ListDomainEvents(r.Context(), orderID, 100)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list events", nil)
		return
	}
	response := make([]map[string]any, 0, len(list))
	for _, ev := range list {
		response = append(response, map[string]any{
			"id":         ev.ID,
			"topic":      ev.Topic,
			"payload":    string(ev.Payload),
			"occurredAt": ev.OccurredAt,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": response})
}

// Cancel voids any cancelable order on behalf of an operator.
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, err := h.Svc.Cancel(r.Context(), orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderResponse(o)})
}
