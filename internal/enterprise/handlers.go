package enterprise

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/foodshed/market-api/internal/common"
	"github.com/foodshed/market-api/internal/cycle"
)

// Handler serves the shopper-facing storefront endpoints. Everything it
// returns has already passed the distributor's tag rules for the viewer.
type Handler struct {
	Svc *Service
}

// ListDistributors returns the enterprises that accept orders.
func (h *Handler) ListDistributors(w http.ResponseWriter, r *http.Request) {
	distributors, err := h.Svc.Distributors(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list distributors", nil)
		return
	}
	response := make([]map[string]any, 0, len(distributors))
	for _, e := range distributors {
		response = append(response, map[string]any{
			"id":   e.ID,
			"name": e.Name,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": response})
}

// Profile returns one distributor's public profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	distributorID, ok := pathUUID(w, r, "distributorID")
	if !ok {
		return
	}
	e, err := h.Svc.Get(r.Context(), distributorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "enterprise not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load enterprise", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":            e.ID,
		"name":          e.Name,
		"isDistributor": e.IsDistributor,
	}})
}

// ShippingMethods returns the shipping methods visible to the viewer.
func (h *Handler) ShippingMethods(w http.ResponseWriter, r *http.Request) {
	distributorID, ok := pathUUID(w, r, "distributorID")
	if !ok {
		return
	}
	tags := h.viewerTags(r, distributorID)
	methods, err := h.Svc.AvailableShippingMethods(r.Context(), distributorID, tags)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list shipping methods", nil)
		return
	}
	response := make([]map[string]any, 0, len(methods))
	for _, m := range methods {
		response = append(response, map[string]any{
			"id":                 m.ID,
			"name":               m.Name,
			"requireShipAddress": m.RequireShipAddress,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": response})
}

// PaymentMethods returns the active payment methods visible to the viewer.
func (h *Handler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	distributorID, ok := pathUUID(w, r, "distributorID")
	if !ok {
		return
	}
	tags := h.viewerTags(r, distributorID)
	methods, err := h.Svc.AvailablePaymentMethods(r.Context(), distributorID, tags)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list payment methods", nil)
		return
	}
	response := make([]map[string]any, 0, len(methods))
	for _, m := range methods {
		response = append(response, map[string]any{
			"id":   m.ID,
			"name": m.Name,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": response})
}

// OrderCycles returns the open order cycles visible to the viewer, soonest
// closing first.
func (h *Handler) OrderCycles(w http.ResponseWriter, r *http.Request) {
	distributorID, ok := pathUUID(w, r, "distributorID")
	if !ok {
		return
	}
	tags := h.viewerTags(r, distributorID)
	cycles, err := h.Svc.AvailableOrderCycles(r.Context(), distributorID, tags)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list order cycles", nil)
		return
	}
	response := make([]map[string]any, 0, len(cycles))
	for _, oc := range cycles {
		response = append(response, cycleResponse(oc))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": response})
}

func cycleResponse(oc cycle.OrderCycle) map[string]any {
	return map[string]any{
		"id":            oc.ID,
		"name":          oc.Name,
		"coordinatorId": oc.CoordinatorID,
		"ordersOpenAt":  oc.OrdersOpenAt,
		"ordersCloseAt": oc.OrdersCloseAt,
	}
}

func (h *Handler) viewerTags(r *http.Request, distributorID uuid.UUID) []string {
	raw, ok := common.UserID(r.Context())
	if !ok || raw == "" {
		return nil
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return h.Svc.CustomerTags(r.Context(), &userID, distributorID)
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
