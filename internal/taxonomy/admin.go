package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nutricompare/internal/apperrors"
	"nutricompare/internal/models"
)

// Stats summarises a category set for the admin screen.
type Stats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

// Count computes Stats for categories.
func Count(categories []models.Category) Stats {
	s := Stats{Total: len(categories)}
	for _, c := range categories {
		if c.IsActive {
			s.Active++
		}
	}
	s.Inactive = s.Total - s.Active
	return s
}

// Search returns the categories whose name contains query
// (case-insensitively) together with all of their ancestors, so the result
// still forms a tree. An empty query returns categories unchanged.
func Search(categories []models.Category, query string) []models.Category {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return categories
	}

	cats := byID(categories)
	keep := make(map[string]bool)
	for _, c := range categories {
		if !strings.Contains(strings.ToLower(c.Name), query) {
			continue
		}
		cur := c.ID
		for cur != "" && !keep[cur] {
			keep[cur] = true
			parent, ok := cats[cur]
			if !ok {
				break
			}
			cur = parent.Parent()
		}
	}

	out := make([]models.Category, 0, len(keep))
	for _, c := range categories {
		if keep[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// ToggleResult describes the outcome of an activation toggle.
type ToggleResult struct {
	ID       string   `json:"id"`
	Active   bool     `json:"active"`
	Affected []string `json:"affected"`
}

// PlanToggle flips the active flag of id. Deactivating cascades to every
// descendant; activating touches only id itself, never its ancestors or
// children.
func PlanToggle(categories []models.Category, id string) (*ToggleResult, error) {
	target, ok := byID(categories)[id]
	if !ok {
		return nil, fmt.Errorf("category %s: %w", id, apperrors.ErrNotFound)
	}

	res := &ToggleResult{ID: id, Active: !target.IsActive, Affected: []string{id}}
	if !res.Active {
		res.Affected = append(res.Affected, Descendants(categories, id)...)
	}
	return res, nil
}

// Apply returns a copy of categories with the toggle applied.
func (r *ToggleResult) Apply(categories []models.Category) []models.Category {
	affected := make(map[string]bool, len(r.Affected))
	for _, id := range r.Affected {
		affected[id] = true
	}
	out := make([]models.Category, len(categories))
	for i, c := range categories {
		if affected[c.ID] {
			c.IsActive = r.Active
		}
		out[i] = c
	}
	return out
}

// Message is the human-readable confirmation shown after a toggle.
func (r *ToggleResult) Message() string {
	status := "deactivated"
	if r.Active {
		status = "activated"
	}
	msg := fmt.Sprintf("Category %s successfully", status)
	if len(r.Affected) > 1 {
		msg += fmt.Sprintf(" (%d categories total including subcategories)", len(r.Affected))
	}
	return msg
}

// ToggleActive loads the current categories from store, plans the toggle
// and persists it.
func ToggleActive(ctx context.Context, store Store, id string) (*ToggleResult, error) {
	cats, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("toggle category: %w", err)
	}
	res, err := PlanToggle(cats, id)
	if err != nil {
		return nil, err
	}
	if err := store.SetActive(ctx, res.Affected, res.Active); err != nil {
		return nil, fmt.Errorf("toggle category %s: %w", id, err)
	}
	return res, nil
}

// CheckIntegrity reports parent references to unknown ids and categories
// caught in a parent cycle. Traversals tolerate both, so sources only log
// the result.
func CheckIntegrity(categories []models.Category) error {
	cats := byID(categories)
	var errs []error

	for _, c := range categories {
		if p := c.Parent(); p != "" {
			if _, ok := cats[p]; !ok {
				errs = append(errs, fmt.Errorf("category %s: unknown parent %s", c.ID, p))
			}
		}
	}

	// A node is on a cycle if walking its parents returns to it.
	reported := make(map[string]bool)
	for _, c := range categories {
		seen := map[string]bool{}
		cur := c.ID
		for cur != "" && !seen[cur] {
			seen[cur] = true
			next, ok := cats[cur]
			if !ok {
				break
			}
			cur = next.Parent()
		}
		if cur == c.ID && !reported[c.ID] {
			reported[c.ID] = true
			errs = append(errs, fmt.Errorf("category %s: parent cycle", c.ID))
		}
	}

	return errors.Join(errs...)
}
