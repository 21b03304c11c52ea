package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"nutricompare/internal/cache"
	"nutricompare/internal/jsonutil"
	"nutricompare/internal/middleware"
	"nutricompare/internal/models"
	"nutricompare/internal/store"
)

// Library serves the per-user saved state: saved searches, shared
// comparisons and the short-lived product data scratch space.
type Library struct {
	searches *store.SavedSearchStore
	shares   *store.ShareStore
	scratch  *cache.ComparisonCache
	now      func() time.Time
}

// NewLibrary creates the library handler group.
func NewLibrary(searches *store.SavedSearchStore, shares *store.ShareStore, scratch *cache.ComparisonCache) *Library {
	return &Library{
		searches: searches,
		shares:   shares,
		scratch:  scratch,
		now:      time.Now,
	}
}

// --- Saved searches ---

// ListSearches returns the user's saved searches, newest first, optionally
// filtered by ?mode=.
func (h *Library) ListSearches(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())

	var mode models.Mode
	if raw := r.URL.Query().Get("mode"); raw != "" {
		m, err := models.ParseMode(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Mode must be explore or compare")
			return
		}
		mode = m
	}

	searches, err := h.searches.ListByUser(r.Context(), user.ID, mode)
	if err != nil {
		fail(w, "list saved searches", err)
		return
	}
	if searches == nil {
		searches = []models.SavedSearch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"searches":   searches,
		"is_premium": user.IsSubscribed(h.now()),
	})
}

type createSearchRequest struct {
	Name               string                    `json:"name"`
	SelectedCategories []models.SelectedCategory `json:"selected_categories"`
	UserProductData    json.RawMessage           `json:"user_product_data"`
	Mode               string                    `json:"mode"`
}

// CreateSearch saves a new search. Premium only; the router enforces it.
func (h *Library) CreateSearch(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())

	var req createSearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, "create saved search", err)
		return
	}
	if msg := validateSearchName(req.Name); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
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

	created, err := h.searches.Create(r.Context(), &models.SavedSearch{
		UserID:             user.ID,
		Name:               strings.TrimSpace(req.Name),
		SelectedCategories: req.SelectedCategories,
		UserProductData:    req.UserProductData,
		Mode:               mode,
	})
	if err != nil {
		fail(w, "create saved search", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "search": created})
}

// GetSearch opens one saved search and stamps its last access time.
func (h *Library) GetSearch(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid search ID")
		return
	}

	search, err := h.searches.Open(r.Context(), user.ID, id)
	if err != nil {
		fail(w, "open saved search", err)
		return
	}
	if search == nil {
		writeError(w, http.StatusNotFound, "Search not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "search": search})
}

type updateSearchRequest struct {
	Name               *string                   `json:"name"`
	SelectedCategories []models.SelectedCategory `json:"selected_categories"`
	UserProductData    json.RawMessage           `json:"user_product_data"`
}

// UpdateSearch applies a partial update. Fields left out keep their value.
func (h *Library) UpdateSearch(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid search ID")
		return
	}

	var req updateSearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, "update saved search", err)
		return
	}
	if req.Name == nil && req.SelectedCategories == nil && len(req.UserProductData) == 0 {
		writeError(w, http.StatusBadRequest, "No data provided")
		return
	}
	if req.Name != nil {
		if msg := validateSearchName(*req.Name); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if req.SelectedCategories != nil {
		if msg := validateSelections(req.SelectedCategories); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}

	updated, err := h.searches.Update(r.Context(), user.ID, id, store.SavedSearchPatch{
		Name:               req.Name,
		SelectedCategories: req.SelectedCategories,
		UserProductData:    req.UserProductData,
	})
	if err != nil {
		fail(w, "update saved search", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "Search not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "search": updated})
}

// DeleteSearch removes one saved search.
func (h *Library) DeleteSearch(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid search ID")
		return
	}

	deleted, err := h.searches.Delete(r.Context(), user.ID, id)
	if err != nil {
		fail(w, "delete saved search", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Search not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// --- Shared comparisons ---

type createShareRequest struct {
	ComparisonData json.RawMessage `json:"comparison_data"`
}

// CreateShare publishes a comparison under a public token. Premium only;
// the router enforces it.
func (h *Library) CreateShare(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())

	var req createShareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, "create share", err)
		return
	}
	if _, ok := jsonutil.Object(req.ComparisonData); !ok {
		writeError(w, http.StatusBadRequest, "No comparison data provided")
		return
	}

	share, err := h.shares.Create(r.Context(), user.ID, req.ComparisonData)
	if err != nil {
		fail(w, "create share", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"token":     share.Token,
		"share_url": baseURL(r) + "/share/" + share.Token,
	})
}

// ViewShare is the public view of a shared comparison. Every view counts;
// inactive and unknown tokens look the same.
func (h *Library) ViewShare(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeError(w, http.StatusNotFound, "Shared comparison not found")
		return
	}

	share, err := h.shares.View(r.Context(), token)
	if err != nil {
		fail(w, "view share", err)
		return
	}
	if share == nil {
		writeError(w, http.StatusNotFound, "Shared comparison not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"comparison_data": share.ComparisonData,
		"created_at":      share.CreatedAt,
		"view_count":      share.ViewCount,
	})
}

// baseURL reconstructs the externally visible origin of r.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// --- Product data scratch space ---

// PutProductData stores the user's product data for a later comparison
// and returns the key to fetch it with.
func (h *Library) PutProductData(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())

	var payload json.RawMessage
	if err := decodeJSON(w, r, &payload); err != nil {
		fail(w, "store product data", err)
		return
	}
	if _, ok := jsonutil.Object(payload); !ok {
		writeError(w, http.StatusBadRequest, "Product data must be a JSON object")
		return
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		writeError(w, http.StatusBadRequest, "Product data must be a JSON object")
		return
	}
	key, err := h.scratch.Put(r.Context(), user.ID, compact.Bytes())
	if err != nil {
		fail(w, "store product data", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "key": key})
}

// GetProductData returns the payload stored under ?key=.
func (h *Library) GetProductData(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "Missing key")
		return
	}

	data, ok, err := h.scratch.Get(r.Context(), user.ID, key)
	if err != nil {
		fail(w, "load product data", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Product data expired or not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

// ClearProductData drops everything the user stored.
func (h *Library) ClearProductData(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	h.scratch.Purge(r.Context(), user.ID)
	w.WriteHeader(http.StatusNoContent)
}
