package enterprise

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/foodshed/market-api/internal/common"
	"github.com/foodshed/market-api/internal/events"
	"github.com/foodshed/market-api/internal/fee"
	"github.com/foodshed/market-api/internal/tagrule"
)

// AdminStore is the persistence surface behind enterprise management.
type AdminStore interface {
	IsEnterpriseManager(ctx context.Context, userID, enterpriseID uuid.UUID) (bool, error)
	ListAllTagRules(ctx context.Context, enterpriseID uuid.UUID) ([]tagrule.Rule, error)
	CreateTagRule(ctx context.Context, r tagrule.Rule) error
	UpdateTagRule(ctx context.Context, r tagrule.Rule) error
	DeleteTagRule(ctx context.Context, enterpriseID, ruleID uuid.UUID) error
	ListEnterpriseFees(ctx context.Context, enterpriseID uuid.UUID) ([]fee.EnterpriseFee, error)
	CreateEnterpriseFee(ctx context.Context, f fee.EnterpriseFee) error
}

// Emitter publishes enterprise change events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.DomainEvent, error)
}

// ShopfrontInvalidator drops cached shopfront listings after a rule change
// so anonymous shoppers see the new visibility immediately.
type ShopfrontInvalidator interface {
	InvalidateShopfront(ctx context.Context, distributorID uuid.UUID) error
}

// AdminHandler manages an enterprise's tag rules and fee definitions.
// Every endpoint requires the caller to own or manage the enterprise.
type AdminHandler struct {
	Store       AdminStore
	Events      Emitter
	Invalidator ShopfrontInvalidator
	Log         zerolog.Logger
}

var validate = validator.New()

type tagRuleRequest struct {
	Kind              string `json:"kind" validate:"required"`
	IsDefault         bool   `json:"isDefault"`
	Priority          int    `json:"priority" validate:"gte=0"`
	CustomerTags      string `json:"customerTags"`
	PreferredTags     string `json:"preferredTags"`
	MatchedVisibility string `json:"matchedVisibility" validate:"required"`
}

type feeRequest struct {
	Name               string `json:"name" validate:"required,max=255"`
	FeeType            string `json:"feeType" validate:"required"`
	IncludedTaxRateBps int32  `json:"includedTaxRateBps" validate:"gte=0,lte=10000"`
	CalculatorKind     string `json:"calculatorKind" validate:"required"`
	Amount             int64  `json:"amount" validate:"gte=0"`
	PercentBps         int32  `json:"percentBps" validate:"gte=0,lte=10000"`
}

// ListTagRules returns every rule the enterprise owns, grouped by kind.
func (h *AdminHandler) ListTagRules(w http.ResponseWriter, r *http.Request) {
	enterpriseID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	rules, err := h.Store.ListAllTagRules(r.Context(), enterpriseID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list tag rules", nil)
		return
	}
	response := make([]map[string]any, 0, len(rules))
	for _, rule := range rules {
		response = append(response, tagRuleResponse(rule))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": response})
}

// CreateTagRule adds a rule to the enterprise.
func (h *AdminHandler) CreateTagRule(w http.ResponseWriter, r *http.Request) {
	enterpriseID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	rule, ok := decodeTagRule(w, r, enterpriseID)
	if !ok {
		return
	}
	rule.ID = uuid.New()
	if err := h.Store.CreateTagRule(r.Context(), rule); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create tag rule", nil)
		return
	}
	h.rulesChanged(r.Context(), enterpriseID)
	common.JSON(w, http.StatusCreated, map[string]any{"data": tagRuleResponse(rule)})
}

// UpdateTagRule rewrites a rule's tunable fields.
func (h *AdminHandler) UpdateTagRule(w http.ResponseWriter, r *http.Request) {
	enterpriseID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid rule id", nil)
		return
	}
	rule, ok := decodeTagRule(w, r, enterpriseID)
	if !ok {
		return
	}
	rule.ID = ruleID
	if err := h.Store.UpdateTagRule(r.Context(), rule); err != nil {
		writeAdminError(w, err, "tag rule")
		return
	}
	h.rulesChanged(r.Context(), enterpriseID)
	common.JSON(w, http.StatusOK, map[string]any{"data": tagRuleResponse(rule)})
}

// DeleteTagRule removes a rule.
func (h *AdminHandler) DeleteTagRule(w http.ResponseWriter, r *http.Request) {
	enterpriseID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid rule id", nil)
		return
	}
	if err := h.Store.DeleteTagRule(r.Context(), enterpriseID, ruleID); err != nil {
		writeAdminError(w, err, "tag rule")
		return
	}
	h.rulesChanged(r.Context(), enterpriseID)
	w.WriteHeader(http.StatusNoContent)
}

// ListFees returns the enterprise's fee definitions.
func (h *AdminHandler) ListFees(w http.ResponseWriter, r *http.Request) {
	enterpriseID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	fees, err := h.Store.ListEnterpriseFees(r.Context(), enterpriseID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list fees", nil)
		return
	}
	response := make([]map[string]any, 0, len(fees))
	for _, f := range fees {
		response = append(response, feeResponse(f))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": response})
}

// CreateFee adds a fee definition. Orders pick it up on their next
// recompute; existing adjustments are not rewritten here.
func (h *AdminHandler) CreateFee(w http.ResponseWriter, r *http.Request) {
	enterpriseID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req feeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
		return
	}
	feeType := fee.Type(req.FeeType)
	if !feeType.Valid() {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "unsupported fee type", nil)
		return
	}
	calc := fee.Calculator{
		Kind:       fee.CalculatorKind(req.CalculatorKind),
		Amount:     req.Amount,
		PercentBps: req.PercentBps,
	}
	if _, err := calc.Compute(fee.Basis{Total: 100, Quantity: 1}); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "calculator misconfigured", nil)
		return
	}
	f := fee.EnterpriseFee{
		ID:                 uuid.New(),
		EnterpriseID:       enterpriseID,
		Name:               req.Name,
		FeeType:            feeType,
		IncludedTaxRateBps: req.IncludedTaxRateBps,
		Calculator:         calc,
	}
	if err := h.Store.CreateEnterpriseFee(r.Context(), f); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create fee", nil)
		return
	}
	if h.Events != nil {
		if _, err := h.Events.Emit(r.Context(), events.TopicEnterpriseFeesChanged, enterpriseID, map[string]any{"feeId": f.ID.String()}); err != nil {
			h.Log.Error().Err(err).Msg("fee change event fan-out failed")
		}
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": feeResponse(f)})
}

// authorize resolves the enterprise from the path and checks the caller
// manages it.
func (h *AdminHandler) authorize(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	enterpriseID, err := uuid.Parse(chi.URLParam(r, "enterpriseID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid enterprise id", nil)
		return uuid.Nil, false
	}
	raw, ok := common.UserID(r.Context())
	if !ok || raw == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return uuid.Nil, false
	}
	manages, err := h.Store.IsEnterpriseManager(r.Context(), userID, enterpriseID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "authorization check failed", nil)
		return uuid.Nil, false
	}
	if !manages {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "not a manager of this enterprise", nil)
		return uuid.Nil, false
	}
	return enterpriseID, true
}

func (h *AdminHandler) rulesChanged(ctx context.Context, enterpriseID uuid.UUID) {
	if h.Events != nil {
		if _, err := h.Events.Emit(ctx, events.TopicTagRulesChanged, enterpriseID, nil); err != nil {
			h.Log.Error().Err(err).Msg("tag rule event fan-out failed")
		}
	}
	if h.Invalidator != nil {
		if err := h.Invalidator.InvalidateShopfront(ctx, enterpriseID); err != nil {
			h.Log.Warn().Err(err).Str("enterprise_id", enterpriseID.String()).Msg("shopfront cache invalidation failed")
		}
	}
}

func decodeTagRule(w http.ResponseWriter, r *http.Request, enterpriseID uuid.UUID) (tagrule.Rule, bool) {
	var req tagRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return tagrule.Rule{}, false
	}
	if err := validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
		return tagrule.Rule{}, false
	}
	kind := tagrule.Kind(req.Kind)
	if !kind.Valid() {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "unsupported rule kind", nil)
		return tagrule.Rule{}, false
	}
	visibility := tagrule.Visibility(req.MatchedVisibility)
	if visibility != tagrule.VisibilityVisible && visibility != tagrule.VisibilityHidden {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "matchedVisibility must be visible or hidden", nil)
		return tagrule.Rule{}, false
	}
	customerTags := tagrule.ParseTagList(req.CustomerTags)
	if !req.IsDefault && len(customerTags) == 0 {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "non-default rules need customer tags", nil)
		return tagrule.Rule{}, false
	}
	return tagrule.Rule{
		EnterpriseID:      enterpriseID,
		Kind:              kind,
		IsDefault:         req.IsDefault,
		Priority:          req.Priority,
		CustomerTags:      customerTags,
		PreferredTags:     tagrule.ParseTagList(req.PreferredTags),
		MatchedVisibility: visibility,
	}, true
}

func tagRuleResponse(rule tagrule.Rule) map[string]any {
	return map[string]any{
		"id":                rule.ID,
		"kind":              rule.Kind,
		"isDefault":         rule.IsDefault,
		"priority":          rule.Priority,
		"customerTags":      tagrule.JoinTagList(rule.CustomerTags),
		"preferredTags":     tagrule.JoinTagList(rule.PreferredTags),
		"matchedVisibility": rule.MatchedVisibility,
	}
}

func feeResponse(f fee.EnterpriseFee) map[string]any {
	return map[string]any{
		"id":                 f.ID,
		"name":               f.Name,
		"feeType":            f.FeeType,
		"includedTaxRateBps": f.IncludedTaxRateBps,
		"calculatorKind":     f.Calculator.Kind,
		"amount":             f.Calculator.Amount,
		"percentBps":         f.Calculator.PercentBps,
	}
}

func writeAdminError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, tagrule.ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update "+what, nil)
}
