// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SavedSearch is a named set of selected categories a user can re-run.
type SavedSearch struct {
	ID                 uuid.UUID          `json:"id"`
	UserID             uuid.UUID          `json:"user_id"`
	Name               string             `json:"name"`
	SelectedCategories []SelectedCategory `json:"selected_categories"`
	UserProductData    json.RawMessage    `json:"user_product_data,omitempty"`
	Mode               Mode               `json:"mode"`
	CreatedAt          time.Time          `json:"created_at"`
	LastAccessed       time.Time          `json:"last_accessed"`
}

// SharedComparison is a comparison published under a public token.
type SharedComparison struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Token          string          `json:"token"`
	ComparisonData json.RawMessage `json:"comparison_data"`
	CreatedAt      time.Time       `json:"created_at"`
	ViewCount      int             `json:"view_count"`
	IsActive       bool            `json:"is_active"`

	// Virtual field populated by store joins.
	OwnerEmail string `json:"owner_email,omitempty"`
}
