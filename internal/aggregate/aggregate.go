// Package aggregate builds comparison matrices: it expands the selected
// categories to their leaves, pages through the product API for every leaf,
// de-duplicates offers and filters them to the requested unit.
package aggregate

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"nutricompare/internal/apperrors"
	"nutricompare/internal/kassal"
	"nutricompare/internal/metrics"
	"nutricompare/internal/models"
	"nutricompare/internal/taxonomy"
)

// maxPagesPerLeaf stops a leaf whose API keeps advertising a next page.
const maxPagesPerLeaf = 500

// ProductSource is the part of the product API the aggregator uses.
type ProductSource interface {
	Configured() bool
	SearchProducts(ctx context.Context, categoryID string, page, size int) (*kassal.Page, error)
}

// Options tunes an Aggregator. Zero values select the defaults.
type Options struct {
	PageSize int // default kassal.MaxPageSize
	Workers  int // leaves fetched concurrently, default 1
}

// Aggregator turns category selections into a ComparisonMatrix.
type Aggregator struct {
	source   ProductSource
	pageSize int
	workers  int
	now      func() time.Time
}

// New creates an Aggregator reading from source.
func New(source ProductSource, opts Options) *Aggregator {
	if opts.PageSize <= 0 || opts.PageSize > kassal.MaxPageSize {
		opts.PageSize = kassal.MaxPageSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Aggregator{
		source:   source,
		pageSize: opts.PageSize,
		workers:  opts.Workers,
		now:      time.Now,
	}
}

// Configured reports whether the product API has credentials.
func (a *Aggregator) Configured() bool {
	return a.source != nil && a.source.Configured()
}

// Request is one product search.
type Request struct {
	Categories  []models.Category // taxonomy snapshot used for expansion
	Selected    []models.SelectedCategory
	Unit        models.Unit
	UserProduct json.RawMessage // echoed back untouched
}

// leafResult is what one leaf's pagination produced, in page order.
type leafResult struct {
	offers  []*kassal.Offer
	skipped int // items rejected as malformed
	err     error
}

// Aggregate runs the search. Upstream failures only abandon the affected
// leaf, so apart from validation, configuration and context errors the
// result is always a matrix, possibly with no products.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (*models.ComparisonMatrix, error) {
	if len(req.Selected) == 0 {
		return nil, apperrors.Validation("no categories selected")
	}
	if !a.Configured() {
		return nil, apperrors.Configuration("KASSAL_API_TOKEN")
	}
	unit := req.Unit
	if unit == "" {
		unit = models.UnitGram
	}

	leaves := taxonomy.ExpandSelections(req.Categories, req.Selected)
	results, err := a.fetchAll(ctx, leaves.IDs)
	if err != nil {
		return nil, err
	}

	products := make([]models.Product, 0)
	seen := make(map[models.DedupKey]bool)
	skipped := 0
	for i, leafID := range leaves.IDs {
		res := results[i]
		skipped += res.skipped
		if res.err != nil {
			metrics.AbandonedUnits.WithLabelValues("leaf").Inc()
			slog.Warn("leaf category abandoned", "category_id", leafID, "products_kept", len(res.offers), "error", res.err)
		}

		for _, offer := range res.offers {
			p := offer.Product
			key := models.ProductKey(p.EAN, p.ID, p.Store)
			// The key is claimed before the unit check, so an offer first
			// seen in another unit stays excluded.
			if seen[key] {
				continue
			}
			seen[key] = true
			if p.WeightUnit != string(unit) {
				continue
			}

			if len(offer.Categories) > 0 {
				p.CategoryName = strings.Join(offer.Categories, taxonomy.PathSeparator)
			} else {
				p.CategoryName = leaves.Origin[leafID]
			}
			products = append(products, p)
		}
	}

	matrix := buildMatrix(products, req, unit, a.now())
	metrics.AggregatedProducts.Observe(float64(len(products)))
	slog.Info("products aggregated",
		"products", len(products),
		"leaves", len(leaves.IDs),
		"selections", len(req.Selected),
		"skipped_items", skipped,
		"unit", unit,
	)
	return matrix, nil
}

// fetchAll paginates every leaf with at most a.workers in flight. Results
// are indexed by leaf position so the merge order never depends on timing.
func (a *Aggregator) fetchAll(ctx context.Context, leafIDs []string) ([]leafResult, error) {
	results := make([]leafResult, len(leafIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, id := range leafIDs {
		g.Go(func() error {
			results[i] = a.fetchLeaf(gctx, id)
			// A per-request timeout only abandons the leaf; only the
			// caller's cancellation stops the whole search.
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// fetchLeaf walks the pages of one leaf until a page is empty or has no
// next link. On failure the offers from earlier pages are kept.
func (a *Aggregator) fetchLeaf(ctx context.Context, leafID string) leafResult {
	var res leafResult
	for page := 1; page <= maxPagesPerLeaf; page++ {
		if err := ctx.Err(); err != nil {
			res.err = err
			return res
		}

		p, err := a.source.SearchProducts(ctx, leafID, page, a.pageSize)
		if err != nil {
			res.err = err
			return res
		}

		for _, raw := range p.Items {
			offer, err := kassal.DecodeOffer(raw)
			if err != nil {
				res.skipped++
				slog.Debug("product skipped", "category_id", leafID, "page", page, "error", err)
				continue
			}
			res.offers = append(res.offers, offer)
		}

		if len(p.Items) == 0 || !p.HasNext() {
			return res
		}
	}
	slog.Warn("leaf pagination cut off", "category_id", leafID, "pages", maxPagesPerLeaf)
	return res
}

func buildMatrix(products []models.Product, req Request, unit models.Unit, now time.Time) *models.ComparisonMatrix {
	nutrition := make(map[string]bool)
	allergens := make(map[string]bool)
	stores := make(map[string]bool)
	for _, p := range products {
		for code := range p.Nutrition {
			nutrition[code] = true
		}
		for code := range p.Allergens {
			allergens[code] = true
		}
		if p.Store != "" {
			stores[p.Store] = true
		}
	}

	categories := make([]string, 0, len(req.Selected))
	for _, sel := range req.Selected {
		categories = append(categories, taxonomy.DisplayName(req.Categories, sel))
	}

	return &models.ComparisonMatrix{
		Products:           products,
		NutritionCodes:     sortedKeys(nutrition),
		AllergenCodes:      sortedKeys(allergens),
		Stores:             sortedKeys(stores),
		Categories:         categories,
		SelectedCategories: req.Selected,
		UserProduct:        req.UserProduct,
		NutritionUnit:      unit,
		Timestamp:          now,
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
