package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Unit is the measurement unit products are compared in.
type Unit string

const (
	UnitGram       Unit = "g"
	UnitMillilitre Unit = "ml"
)

// ParseUnit validates a requested unit. An empty value means grams.
func ParseUnit(s string) (Unit, error) {
	switch Unit(strings.ToLower(strings.TrimSpace(s))) {
	case "", UnitGram:
		return UnitGram, nil
	case UnitMillilitre:
		return UnitMillilitre, nil
	}
	return "", fmt.Errorf("unknown unit %q", s)
}

// Mode is the usage mode of a product search. Free accounts get separate
// daily allowances per mode.
type Mode string

const (
	ModeExplore Mode = "explore"
	ModeCompare Mode = "compare"
)

// ParseMode validates a requested mode. An empty value means compare.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCompare:
		return ModeCompare, nil
	case ModeExplore:
		return ModeExplore, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// UnknownStore is used when an upstream product carries no store.
const UnknownStore = "Unknown"

// NutritionValue is one nutrient amount on a product.
type NutritionValue struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// Product is a normalised upstream product as it appears in a comparison.
type Product struct {
	ID               int64                     `json:"id"`
	Name             string                    `json:"name"`
	EAN              *string                   `json:"ean"`
	Brand            *string                   `json:"brand"`
	CurrentPrice     *float64                  `json:"current_price"`
	CurrentUnitPrice *float64                  `json:"current_unit_price"`
	Weight           *float64                  `json:"weight"`
	WeightUnit       string                    `json:"weight_unit"`
	Image            *string                   `json:"image"`
	URL              *string                   `json:"url"`
	UpdatedAt        *string                   `json:"updated_at"`
	Nutrition        map[string]NutritionValue `json:"nutrition"`
	Allergens        map[string]bool           `json:"allergens"`
	Store            string                    `json:"store"`
	CategoryName     string                    `json:"category_name"`
	Ingredients      *string                   `json:"ingredients"`
	Description      *string                   `json:"description"`
	Vendor           *string                   `json:"vendor"`
}

// DedupKey identifies a product offer across pages and leaf categories:
// (ean, store) when the EAN is known, otherwise (id, store).
type DedupKey struct {
	Ref   string
	Store string
}

// ProductKey builds the dedup key for an offer.
func ProductKey(ean *string, id int64, store string) DedupKey {
	if ean != nil && *ean != "" {
		return DedupKey{Ref: "ean:" + *ean, Store: store}
	}
	return DedupKey{Ref: fmt.Sprintf("id:%d", id), Store: store}
}

// ComparisonMatrix is the aggregated, de-duplicated result of one product
// search across the selected categories.
type ComparisonMatrix struct {
	Products           []Product          `json:"products"`
	NutritionCodes     []string           `json:"nutrition_codes"`
	AllergenCodes      []string           `json:"allergen_codes"`
	Stores             []string           `json:"stores"`
	Categories         []string           `json:"categories"`
	SelectedCategories []SelectedCategory `json:"selected_categories"`
	UserProduct        json.RawMessage    `json:"user_product,omitempty"`
	NutritionUnit      Unit               `json:"nutrition_unit"`
	Timestamp          time.Time          `json:"timestamp"`
}

// PricePoint is one dated price observation for a store.
type PricePoint struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Price float64 `json:"price"`
}
