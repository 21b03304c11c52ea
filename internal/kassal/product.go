package kassal

import (
	"encoding/json"
	"fmt"
	"strings"

	"nutricompare/internal/apperrors"
	"nutricompare/internal/jsonutil"
	"nutricompare/internal/models"
)

// rawProduct mirrors a search result item. Scalars stay raw because the
// API is inconsistent about numbers versus numeric strings.
type rawProduct struct {
	ID               json.RawMessage `json:"id"`
	Name             json.RawMessage `json:"name"`
	EAN              json.RawMessage `json:"ean"`
	Brand            json.RawMessage `json:"brand"`
	CurrentPrice     json.RawMessage `json:"current_price"`
	CurrentUnitPrice json.RawMessage `json:"current_unit_price"`
	Weight           json.RawMessage `json:"weight"`
	WeightUnit       json.RawMessage `json:"weight_unit"`
	Image            json.RawMessage `json:"image"`
	URL              json.RawMessage `json:"url"`
	UpdatedAt        json.RawMessage `json:"updated_at"`
	Nutrition        json.RawMessage `json:"nutrition"`
	Allergens        json.RawMessage `json:"allergens"`
	Store            json.RawMessage `json:"store"`
	Category         json.RawMessage `json:"category"`
	Ingredients      json.RawMessage `json:"ingredients"`
	Description      json.RawMessage `json:"description"`
	Vendor           json.RawMessage `json:"vendor"`
}

type rawNutrient struct {
	Code   json.RawMessage `json:"code"`
	Amount json.RawMessage `json:"amount"`
	Unit   json.RawMessage `json:"unit"`
}

type rawAllergen struct {
	Code     json.RawMessage `json:"code"`
	Contains json.RawMessage `json:"contains"`
}

// Offer is a decoded search result item.
type Offer struct {
	Product models.Product
	// Categories are the item's own category names, root first.
	Categories []string
}

// DecodeOffer normalises one search result item. Items without a numeric
// id or a name are rejected with apperrors.ErrDataShape; every other field
// is optional.
func DecodeOffer(raw json.RawMessage) (*Offer, error) {
	var rp rawProduct
	if err := json.Unmarshal(raw, &rp); err != nil {
		return nil, fmt.Errorf("decode product: %v: %w", err, apperrors.ErrDataShape)
	}

	id, ok := jsonutil.FlexibleFloat(rp.ID)
	if !ok {
		return nil, fmt.Errorf("product without id: %w", apperrors.ErrDataShape)
	}
	if len(rp.Name) == 0 || string(rp.Name) == "null" {
		return nil, fmt.Errorf("product %d without name: %w", int64(id), apperrors.ErrDataShape)
	}

	p := models.Product{
		ID:               int64(id),
		Name:             jsonutil.FlexibleString(rp.Name),
		EAN:              jsonutil.StringPtr(rp.EAN),
		Brand:            jsonutil.StringPtr(rp.Brand),
		CurrentPrice:     jsonutil.FloatPtr(rp.CurrentPrice),
		CurrentUnitPrice: jsonutil.FloatPtr(rp.CurrentUnitPrice),
		Weight:           jsonutil.FloatPtr(rp.Weight),
		WeightUnit:       jsonutil.FlexibleString(rp.WeightUnit),
		Image:            jsonutil.StringPtr(rp.Image),
		URL:              jsonutil.StringPtr(rp.URL),
		UpdatedAt:        jsonutil.StringPtr(rp.UpdatedAt),
		Nutrition:        decodeNutrition(rp.Nutrition),
		Allergens:        decodeAllergens(rp.Allergens),
		Store:            StoreName(rp.Store),
		Ingredients:      jsonutil.StringPtr(rp.Ingredients),
		Description:      jsonutil.StringPtr(rp.Description),
		Vendor:           jsonutil.StringPtr(rp.Vendor),
	}

	return &Offer{Product: p, Categories: categoryNames(rp.Category)}, nil
}

// StoreName extracts the store name from a store object, or
// models.UnknownStore when there is none.
func StoreName(raw json.RawMessage) string {
	obj, ok := jsonutil.Object(raw)
	if !ok {
		return models.UnknownStore
	}
	if name := strings.TrimSpace(jsonutil.FlexibleString(obj["name"])); name != "" {
		return name
	}
	return models.UnknownStore
}

func decodeNutrition(raw json.RawMessage) map[string]models.NutritionValue {
	out := make(map[string]models.NutritionValue)
	items, _ := jsonutil.Array(raw)
	for _, item := range items {
		var n rawNutrient
		if err := json.Unmarshal(item, &n); err != nil {
			continue
		}
		code := jsonutil.FlexibleString(n.Code)
		if code == "" {
			continue
		}
		amount, _ := jsonutil.FlexibleFloat(n.Amount)
		out[code] = models.NutritionValue{Amount: amount, Unit: jsonutil.FlexibleString(n.Unit)}
	}
	return out
}

func decodeAllergens(raw json.RawMessage) map[string]bool {
	out := make(map[string]bool)
	items, _ := jsonutil.Array(raw)
	for _, item := range items {
		var a rawAllergen
		if err := json.Unmarshal(item, &a); err != nil {
			continue
		}
		code := jsonutil.FlexibleString(a.Code)
		if code == "" {
			continue
		}
		out[code] = jsonutil.FlexibleBool(a.Contains)
	}
	return out
}

func categoryNames(raw json.RawMessage) []string {
	items, _ := jsonutil.Array(raw)
	var names []string
	for _, item := range items {
		obj, ok := jsonutil.Object(item)
		if !ok {
			continue
		}
		if name := jsonutil.FlexibleString(obj["name"]); name != "" {
			names = append(names, name)
		}
	}
	return names
}
