// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package pricehistory merges the price histories of several products into
// one chronological series per store.
//
// Product detail records do not agree on where the history lives or how
// its entries are spelled, so extraction is a fixed, ordered list of
// strategies per concern; the first strategy that yields a value wins.
package pricehistory

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"nutricompare/internal/apperrors"
	"nutricompare/internal/jsonutil"
	"nutricompare/internal/metrics"
	"nutricompare/internal/models"
)

// Field names tried in order.
var (
	recordFields  = []string{"data"}
	historyFields = []string{"prices", "price_history", "priceHistory"}
	priceFields   = []string{"price", "amount", "value"}
	dateFields    = []string{"date", "created_at", "updated_at", "timestamp"}
	storeFields   = []string{"name", "store"}
)

// DetailSource fetches a product detail record.
type DetailSource interface {
	Configured() bool
	ProductDetail(ctx context.Context, productID string) (json.RawMessage, error)
}

// Series maps a store name to its price points, oldest first, one per date.
type Series map[string][]models.PricePoint

// Merger fetches and merges price histories.
type Merger struct {
	source  DetailSource
	workers int
}

// New creates a Merger fetching at most workers products at once.
func New(source DetailSource, workers int) *Merger {
	if workers <= 0 {
		workers = 1
	}
	return &Merger{source: source, workers: workers}
}

// entry is one extracted observation before grouping.
type entry struct {
	store string
	date  string
	price float64
}

// Merge fetches every product and merges their histories. Products that
// fail to load are skipped; an empty id list returns an empty Series
// without touching the network.
func (m *Merger) Merge(ctx context.Context, productIDs []string) (Series, error) {
	ids := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return Series{}, nil
	}
	if m.source == nil || !m.source.Configured() {
		return nil, apperrors.Configuration("KASSAL_API_TOKEN")
	}

	perProduct := make([][]entry, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, id := range ids {
		g.Go(func() error {
			raw, err := m.source.ProductDetail(gctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				metrics.AbandonedUnits.WithLabelValues("product").Inc()
				slog.Warn("price history skipped", "product_id", id, "error", err)
				return nil
			}
			perProduct[i] = extract(raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []entry
	for _, entries := range perProduct {
		all = append(all, entries...)
	}
	return collapse(all), nil
}

// extract returns the usable history entries of one detail record, in
// record order. Entries without a store, a numeric price or a date are
// dropped.
func extract(raw json.RawMessage) []entry {
	root, ok := jsonutil.Object(raw)
	if !ok {
		return nil
	}
	record := locateRecord(root)
	rootStore := storeName(record["store"])

	history := locateHistory(record)
	out := make([]entry, 0, len(history))
	for _, item := range history {
		obj, ok := jsonutil.Object(item)
		if !ok {
			continue
		}
		price, ok := firstFloat(obj, priceFields)
		if !ok {
			continue
		}
		date := firstString(obj, dateFields)
		if date == "" {
			continue
		}
		if len(date) > 10 {
			date = date[:10]
		}
		store := storeName(obj["store"])
		if store == "" {
			store = rootStore
		}
		if store == "" {
			continue
		}
		out = append(out, entry{store: store, date: date, price: price})
	}
	return out
}

// locateRecord returns the first wrapper object found, else the root.
func locateRecord(root map[string]json.RawMessage) map[string]json.RawMessage {
	for _, f := range recordFields {
		if obj, ok := jsonutil.Object(root[f]); ok && len(obj) > 0 {
			return obj
		}
	}
	return root
}

// locateHistory returns the first history field that holds an array.
func locateHistory(record map[string]json.RawMessage) []json.RawMessage {
	for _, f := range historyFields {
		if list, ok := jsonutil.Array(record[f]); ok {
			return list
		}
	}
	return nil
}

// storeName reads a store given as an object ({"name": ...} or
// {"store": ...}) or as a plain string.
func storeName(raw json.RawMessage) string {
	if obj, ok := jsonutil.Object(raw); ok {
		return strings.TrimSpace(firstString(obj, storeFields))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}

func firstFloat(obj map[string]json.RawMessage, fields []string) (float64, bool) {
	for _, f := range fields {
		if v, ok := jsonutil.FlexibleFloat(obj[f]); ok {
			return v, true
		}
	}
	return 0, false
}

func firstString(obj map[string]json.RawMessage, fields []string) string {
	for _, f := range fields {
		if s := strings.TrimSpace(jsonutil.FlexibleString(obj[f])); s != "" {
			return s
		}
	}
	return ""
}

// collapse groups entries by store, keeps the last price seen per date and
// sorts each store's points by date.
func collapse(entries []entry) Series {
	byStore := make(map[string]map[string]float64)
	for _, e := range entries {
		dates, ok := byStore[e.store]
		if !ok {
			dates = make(map[string]float64)
			byStore[e.store] = dates
		}
		dates[e.date] = e.price
	}

	series := make(Series, len(byStore))
	for store, dates := range byStore {
		points := make([]models.PricePoint, 0, len(dates))
		for d, p := range dates {
			points = append(points, models.PricePoint{Date: d, Price: p})
		}
		sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
		series[store] = points
	}
	return series
}
