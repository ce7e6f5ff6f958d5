package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/foodshed/market-api/internal/common"
)

// Handler serves the shopper-facing order endpoints.
type Handler struct {
	Svc *Service
}

type createRequest struct {
	DistributorID *string `json:"distributorId"`
	OrderCycleID  *string `json:"orderCycleId"`
}

type distributionRequest struct {
	DistributorID *string `json:"distributorId"`
	OrderCycleID  *string `json:"orderCycleId"`
}

type lineItemRequest struct {
	VariantID   string `json:"variantId"`
	Quantity    int32  `json:"quantity"`
	MaxQuantity *int32 `json:"maxQuantity"`
}

// Create opens a new cart order for the authenticated shopper.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	distributorID, err := optionalUUID(req.DistributorID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid distributor id", nil)
		return
	}
	orderCycleID, err := optionalUUID(req.OrderCycleID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order cycle id", nil)
		return
	}
	o, err := h.Svc.Create(r.Context(), CreateParams{
		CustomerID:    &userID,
		DistributorID: distributorID,
		OrderCycleID:  orderCycleID,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": orderResponse(o)})
}

// List returns the shopper's orders, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	orders, err := h.Svc.ListByCustomer(r.Context(), userID, perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	response := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		response = append(response, orderSummary(o))
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(response)))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": response,
		"pagination": common.Pagination{
			Page:    page,
			PerPage: perPage,
		},
	})
}

// Get returns one of the shopper's orders with its lines and charges.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	o, ok := h.loadOwned(w, r, userID)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderResponse(o)})
}

// SetDistribution changes the order's distributor and order cycle.
func (h *Handler) SetDistribution(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	o, ok := h.loadOwned(w, r, userID)
	if !ok {
		return
	}
	var req distributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	distributorID, err := optionalUUID(req.DistributorID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid distributor id", nil)
		return
	}
	orderCycleID, err := optionalUUID(req.OrderCycleID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order cycle id", nil)
		return
	}
	updated, err := h.Svc.SetDistribution(r.Context(), o.ID, distributorID, orderCycleID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderResponse(updated)})
}

// AddLineItem puts a variant in the order or updates its quantities.
func (h *Handler) AddLineItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	o, ok := h.loadOwned(w, r, userID)
	if !ok {
		return
	}
	var req lineItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid variant id", nil)
		return
	}
	updated, err := h.Svc.AddVariant(r.Context(), o.ID, variantID, req.Quantity, req.MaxQuantity)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderResponse(updated)})
}

// RemoveLineItem deletes one line from the order.
func (h *Handler) RemoveLineItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	o, ok := h.loadOwned(w, r, userID)
	if !ok {
		return
	}
	lineItemID, err := uuid.Parse(chi.URLParam(r, "lineItemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid line item id", nil)
		return
	}
	updated, err := h.Svc.RemoveLineItem(r.Context(), o.ID, lineItemID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderResponse(updated)})
}

// Complete places the order.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	o, ok := h.loadOwned(w, r, userID)
	if !ok {
		return
	}
	updated, err := h.Svc.Complete(r.Context(), o.ID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderResponse(updated)})
}

// Cancel voids the order.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	o, ok := h.loadOwned(w, r, userID)
	if !ok {
		return
	}
	updated, err := h.Svc.Cancel(r.Context(), o.ID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderResponse(updated)})
}

func (h *Handler) loadOwned(w http.ResponseWriter, r *http.Request, userID uuid.UUID) (Order, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return Order{}, false
	}
	o, err := h.Svc.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return Order{}, false
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return Order{}, false
	}
	if o.CustomerID == nil || *o.CustomerID != userID {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return Order{}, false
	}
	return o, true
}

func authedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok || raw == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func optionalUUID(s *string) (*uuid.UUID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "not found", nil)
	case errors.Is(err, ErrNotEditable), errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrDistributionRequired),
		errors.Is(err, ErrNotDistributor),
		errors.Is(err, ErrCycleClosed),
		errors.Is(err, ErrCycleMismatch):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
	case errors.Is(err, ErrVariantUnavailable):
		common.JSONError(w, http.StatusUnprocessableEntity, "UNAVAILABLE", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order operation failed", nil)
	}
}

func orderSummary(o Order) map[string]any {
	return map[string]any{
		"id":        o.ID,
		"number":    o.Number,
		"state":     o.State,
		"currency":  o.Currency,
		"createdAt": o.CreatedAt,
	}
}

func orderResponse(o Order) map[string]any {
	items := make([]map[string]any, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, map[string]any{
			"id":          li.ID,
			"productId":   li.ProductID,
			"variantId":   li.VariantID,
			"quantity":    li.Quantity,
			"maxQuantity": li.MaxQuantity,
			"price":       li.Price,
			"total":       li.Total(),
		})
	}
	charges := make([]map[string]any, 0, len(o.Adjustments))
	for _, adj := range o.Adjustments {
		charges = append(charges, map[string]any{
			"id":          adj.ID,
			"label":       adj.Label,
			"amount":      adj.Amount,
			"includedTax": adj.IncludedTax,
			"origin":      adj.Origin,
			"scope":       adj.Scope,
		})
	}
	resp := orderSummary(o)
	resp["distributorId"] = o.DistributorID
	resp["orderCycleId"] = o.OrderCycleID
	resp["items"] = items
	resp["adjustments"] = charges
	resp["itemTotal"] = o.ItemTotal()
	resp["adminAndHandling"] = o.AdminAndHandlingTotal()
	resp["includedTax"] = o.TotalTax()
	resp["total"] = o.Total()
	return resp
}
