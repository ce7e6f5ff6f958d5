package catalog

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/foodshed/market-api/internal/common"
)

// TagSource resolves the viewer's customer tags at an enterprise.
type TagSource interface {
	CustomerTags(ctx context.Context, userID *uuid.UUID, enterpriseID uuid.UUID) []string
}

// Handler exposes public storefront catalog endpoints.
type Handler struct {
	Service *Service
	Tags    TagSource
}

// Shopfront handles GET /api/v1/shops/{distributorID}/products.
func (h *Handler) Shopfront(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	distributorID, err := uuid.Parse(chi.URLParam(r, "distributorID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid distributor id", nil)
		return
	}
	front, err := h.Service.Shopfront(r.Context(), distributorID, h.viewerTags(r, distributorID))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load shopfront", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": front})
}

// ProductDetail handles GET /api/v1/products/{slug}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	product, err := h.Service.ProductBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load product", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

func (h *Handler) viewerTags(r *http.Request, distributorID uuid.UUID) []string {
	if h.Tags == nil {
		return nil
	}
	var userID *uuid.UUID
	if raw, ok := common.UserID(r.Context()); ok {
		if parsed, err := uuid.Parse(raw); err == nil {
			userID = &parsed
		}
	}
	return h.Tags.CustomerTags(r.Context(), userID, distributorID)
}
