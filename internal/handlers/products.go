// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"nutricompare/internal/aggregate"
	"nutricompare/internal/jsonutil"
	"nutricompare/internal/metrics"
	"nutricompare/internal/middleware"
	"nutricompare/internal/models"
	"nutricompare/internal/pricehistory"
	"nutricompare/internal/quota"
	"nutricompare/internal/taxonomy"
)

// Products serves product search and price history.
type Products struct {
	categories taxonomy.Store
	aggregator *aggregate.Aggregator
	prices     *pricehistory.Merger
	quota      *quota.Service
}

// NewProducts creates the product handler group.
func NewProducts(categories taxonomy.Store, aggregator *aggregate.Aggregator, prices *pricehistory.Merger, quotas *quota.Service) *Products {
	return &Products{
		categories: categories,
		aggregator: aggregator,
		prices:     prices,
		quota:      quotas,
	}
}

type findRequest struct {
	SelectedCategories []models.SelectedCategory `json:"selected_categories"`
	UserProduct        json.RawMessage           `json:"user_product"`
	Mode               string                    `json:"mode"`
	NutritionUnit      string                    `json:"nutrition_unit"`
}

// Find aggregates the products of the selected categories into a
// comparison matrix. Free accounts spend one search of the requested mode;
// the allowance is only touched once the request is known to be runnable.
func (h *Products) Find(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req findRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, "find products", err)
		return
	}
	if !h.aggregator.Configured() {
		slog.Error("find products: product API token not configured")
		writeError(w, http.StatusInternalServerError, "API token not configured")
		return
	}
	if msg := validateSelections(req.SelectedCategories); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Mode must be explore or compare")
		return
	}
	unit, err := models.ParseUnit(req.NutritionUnit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Nutrition unit must be g or ml")
		return
	}

	decision, err := h.quota.Consume(r.Context(), user, mode)
	if err != nil {
		fail(w, "consume quota", err)
		return
	}
	if !decision.Allowed {
		metrics.QuotaRejections.WithLabelValues(string(mode)).Inc()
		slog.Info("daily limit reached", "user_id", user.ID, "mode", mode)
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":     fmt.Sprintf("Daily %s limit reached", mode),
			"message":   quota.LimitMessage(mode, h.quota.Limits()),
			"remaining": decision.Remaining,
		})
		return
	}

	cats, err := h.categories.Load(r.Context())
	if err != nil {
		fail(w, "load categories", err)
		return
	}

	matrix, err := h.aggregator.Aggregate(r.Context(), aggregate.Request{
		Categories:  cats,
		Selected:    req.SelectedCategories,
		Unit:        unit,
		UserProduct: req.UserProduct,
	})
	if err != nil {
		fail(w, "find products", err)
		return
	}

	if decision.Remaining != quota.Unlimited {
		w.Header().Set("X-Quota-Remaining", strconv.Itoa(decision.Remaining))
	}
	writeJSON(w, http.StatusOK, matrix)
}

type priceHistoryRequest struct {
	ProductIDs []json.RawMessage `json:"product_ids"`
}

// PriceHistory merges the price histories of several products into one
// series per store.
func (h *Products) PriceHistory(w http.ResponseWriter, r *http.Request) {
	var req priceHistoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, "price history", err)
		return
	}

	ids := make([]string, 0, len(req.ProductIDs))
	for _, raw := range req.ProductIDs {
		ids = append(ids, jsonutil.FlexibleString(raw))
	}
	if msg := validateProductIDs(ids); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	series, err := h.prices.Merge(r.Context(), ids)
	if err != nil {
		fail(w, "price history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"series": series})
}
