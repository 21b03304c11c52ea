package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"nutricompare/internal/models"
	"nutricompare/internal/taxonomy"
)

// Categories serves the category picker endpoints. Every request reads a
// fresh snapshot from the source.
type Categories struct {
	source taxonomy.Store
}

// NewCategories creates the category handler group.
func NewCategories(source taxonomy.Store) *Categories {
	return &Categories{source: source}
}

// Tree returns the active categories as a nested tree.
func (h *Categories) Tree(w http.ResponseWriter, r *http.Request) {
	cats, err := h.source.Load(r.Context())
	if err != nil {
		fail(w, "load categories", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tree": taxonomy.BuildTree(taxonomy.FilterActive(cats)),
	})
}

// Path returns the breadcrumb for one category.
func (h *Categories) Path(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cats, err := h.source.Load(r.Context())
	if err != nil {
		fail(w, "load categories", err)
		return
	}
	path, ok := taxonomy.FindPath(cats, id)
	if !ok {
		writeError(w, http.StatusNotFound, "Category not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "path": path})
}

// Leaves returns the leaf categories at or beneath one category.
func (h *Categories) Leaves(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cats, err := h.source.Load(r.Context())
	if err != nil {
		fail(w, "load categories", err)
		return
	}
	leaves := taxonomy.LeafDescendants(cats, id)
	if leaves == nil {
		writeError(w, http.StatusNotFound, "Category not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "leaves": leaves})
}

type mergeRequest struct {
	Existing    []models.SelectedCategory `json:"existing"`
	Suggestions []models.SelectedCategory `json:"suggestions"`
}

// Merge adds suggested categories to a selection, skipping ids already
// selected.
func (h *Categories) Merge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, "merge categories", err)
		return
	}
	merged := taxonomy.MergeSelections(req.Existing, req.Suggestions)
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": merged,
		"added":      len(merged) - len(req.Existing),
	})
}
