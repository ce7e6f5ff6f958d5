package enterprise_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/foodshed/market-api/internal/common"
	"github.com/foodshed/market-api/internal/enterprise"
	"github.com/foodshed/market-api/internal/events"
	"github.com/foodshed/market-api/internal/fee"
	"github.com/foodshed/market-api/internal/tagrule"
)

type fakeAdminStore struct {
	managers map[uuid.UUID]uuid.UUID
	rules    map[uuid.UUID]tagrule.Rule
	fees     []fee.EnterpriseFee
}

func newFakeAdminStore() *fakeAdminStore {
	return &fakeAdminStore{
		managers: map[uuid.UUID]uuid.UUID{},
		rules:    map[uuid.UUID]tagrule.Rule{},
	}
}

func (f *fakeAdminStore) IsEnterpriseManager(_ context.Context, userID, enterpriseID uuid.UUID) (bool, error) {
	return f.managers[enterpriseID] == userID, nil
}

func (f *fakeAdminStore) ListAllTagRules(_ context.Context, enterpriseID uuid.UUID) ([]tagrule.Rule, error) {
	var out []tagrule.Rule
	for _, r := range f.rules {
		if r.EnterpriseID == enterpriseID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAdminStore) CreateTagRule(_ context.Context, r tagrule.Rule) error {
	f.rules[r.ID] = r
	return nil
}

func (f *fakeAdminStore) UpdateTagRule(_ context.Context, r tagrule.Rule) error {
	if _, ok := f.rules[r.ID]; !ok {
		return tagrule.ErrNotFound
	}
	f.rules[r.ID] = r
	return nil
}

func (f *fakeAdminStore) DeleteTagRule(_ context.Context, enterpriseID, ruleID uuid.UUID) error {
	r, ok := f.rules[ruleID]
	if !ok || r.EnterpriseID != enterpriseID {
		return tagrule.ErrNotFound
	}
	delete(f.rules, ruleID)
	return nil
}

func (f *fakeAdminStore) ListEnterpriseFees(_ context.Context, enterpriseID uuid.UUID) ([]fee.EnterpriseFee, error) {
	var out []fee.EnterpriseFee
	for _, ef := range f.fees {
		if ef.EnterpriseID == enterpriseID {
			out = append(out, ef)
		}
	}
	return out, nil
}

func (f *fakeAdminStore) CreateEnterpriseFee(_ context.Context, ef fee.EnterpriseFee) error {
	f.fees = append(f.fees, ef)
	return nil
}

type recordingEmitter struct {
	topics []string
}

func (r *recordingEmitter) Emit(_ context.Context, topic string, aggregateID uuid.UUID, payload any) (events.DomainEvent, error) {
	r.topics = append(r.topics, topic)
	raw, _ := json.Marshal(payload)
	return events.DomainEvent{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: raw}, nil
}

type recordingInvalidator struct {
	ids []uuid.UUID
}

func (r *recordingInvalidator) InvalidateShopfront(_ context.Context, id uuid.UUID) error {
	r.ids = append(r.ids, id)
	return nil
}

func adminRequest(method, target string, body []byte, userID uuid.UUID, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	if userID != uuid.Nil {
		ctx = common.WithUserID(ctx, userID.String())
	}
	return req.WithContext(ctx)
}

func TestCreateTagRuleRequiresManager(t *testing.T) {
	store := newFakeAdminStore()
	enterpriseID := uuid.New()
	store.managers[enterpriseID] = uuid.New()
	handler := &enterprise.AdminHandler{Store: store, Log: zerolog.Nop()}

	body := []byte(`{"kind":"filter_products","isDefault":true,"preferredTags":"members-only","matchedVisibility":"hidden"}`)
	req := adminRequest(http.MethodPost, "/admin/enterprises/x/tag-rules", body, uuid.New(), map[string]string{"enterpriseID": enterpriseID.String()})
	rec := httptest.NewRecorder()
	handler.CreateTagRule(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, store.rules)
}

func TestCreateTagRuleValidation(t *testing.T) {
	store := newFakeAdminStore()
	enterpriseID := uuid.New()
	manager := uuid.New()
	store.managers[enterpriseID] = manager
	handler := &enterprise.AdminHandler{Store: store, Log: zerolog.Nop()}

	cases := []struct {
		name string
		body string
	}{
		{"bad kind", `{"kind":"filter_everything","isDefault":true,"matchedVisibility":"hidden"}`},
		{"bad visibility", `{"kind":"filter_products","isDefault":true,"matchedVisibility":"sometimes"}`},
		{"non-default without customer tags", `{"kind":"filter_products","matchedVisibility":"hidden"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := adminRequest(http.MethodPost, "/admin/enterprises/x/tag-rules", []byte(tc.body), manager, map[string]string{"enterpriseID": enterpriseID.String()})
			rec := httptest.NewRecorder()
			handler.CreateTagRule(rec, req)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	}
}

func TestTagRuleLifecycle(t *testing.T) {
	store := newFakeAdminStore()
	enterpriseID := uuid.New()
	manager := uuid.New()
	store.managers[enterpriseID] = manager
	emitter := &recordingEmitter{}
	invalidator := &recordingInvalidator{}
	handler := &enterprise.AdminHandler{Store: store, Events: emitter, Invalidator: invalidator, Log: zerolog.Nop()}
	params := map[string]string{"enterpriseID": enterpriseID.String()}

	body := []byte(`{"kind":"filter_products","customerTags":"member","preferredTags":"members-only","matchedVisibility":"visible","priority":1}`)
	req := adminRequest(http.MethodPost, "/admin/enterprises/x/tag-rules", body, manager, params)
	rec := httptest.NewRecorder()
	handler.CreateTagRule(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.rules, 1)
	require.Equal(t, []string{events.TopicTagRulesChanged}, emitter.topics)
	require.Equal(t, []uuid.UUID{enterpriseID}, invalidator.ids)

	var created struct {
		Data struct {
			ID uuid.UUID `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	params["ruleID"] = created.Data.ID.String()
	update := []byte(`{"kind":"filter_products","customerTags":"member,wholesale","preferredTags":"members-only","matchedVisibility":"hidden","priority":2}`)
	req = adminRequest(http.MethodPut, "/admin/enterprises/x/tag-rules/y", update, manager, params)
	rec = httptest.NewRecorder()
	handler.UpdateTagRule(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := store.rules[created.Data.ID]
	require.Equal(t, []string{"member", "wholesale"}, updated.CustomerTags)
	require.Equal(t, tagrule.VisibilityHidden, updated.MatchedVisibility)

	req = adminRequest(http.MethodDelete, "/admin/enterprises/x/tag-rules/y", nil, manager, params)
	rec = httptest.NewRecorder()
	handler.DeleteTagRule(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, store.rules)
	require.Len(t, emitter.topics, 3)
}

func TestUpdateMissingTagRule(t *testing.T) {
	store := newFakeAdminStore()
	enterpriseID := uuid.New()
	manager := uuid.New()
	store.managers[enterpriseID] = manager
	handler := &enterprise.AdminHandler{Store: store, Log: zerolog.Nop()}

	body := []byte(`{"kind":"filter_products","isDefault":true,"matchedVisibility":"hidden"}`)
	req := adminRequest(http.MethodPut, "/admin/enterprises/x/tag-rules/y", body, manager, map[string]string{
		"enterpriseID": enterpriseID.String(),
		"ruleID":       uuid.NewString(),
	})
	rec := httptest.NewRecorder()
	handler.UpdateTagRule(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateFeeValidatesCalculator(t *testing.T) {
	store := newFakeAdminStore()
	enterpriseID := uuid.New()
	manager := uuid.New()
	store.managers[enterpriseID] = manager
	emitter := &recordingEmitter{}
	handler := &enterprise.AdminHandler{Store: store, Events: emitter, Log: zerolog.Nop()}
	params := map[string]string{"enterpriseID": enterpriseID.String()}

	bad := []byte(`{"name":"Packing","feeType":"packing","calculatorKind":"percent","percentBps":0}`)
	req := adminRequest(http.MethodPost, "/admin/enterprises/x/fees", bad, manager, params)
	rec := httptest.NewRecorder()
	handler.CreateFee(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Empty(t, store.fees)

	good := []byte(`{"name":"Packing","feeType":"packing","calculatorKind":"flat_rate","amount":150,"includedTaxRateBps":1000}`)
	req = adminRequest(http.MethodPost, "/admin/enterprises/x/fees", good, manager, params)
	rec = httptest.NewRecorder()
	handler.CreateFee(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.fees, 1)
	require.Equal(t, []string{events.TopicEnterpriseFeesChanged}, emitter.topics)
}
