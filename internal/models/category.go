// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is one row of the flat product taxonomy. Categories form a
// forest: roots have a nil ParentID.
type Category struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parent_id"`
	Name     string  `json:"name"`
	IsActive bool    `json:"is_active"`
}

// Parent returns the parent id, or "" for a root.
func (c Category) Parent() string {
	if c.ParentID == nil {
		return ""
	}
	return *c.ParentID
}

// IsRoot reports whether the category has no parent.
func (c Category) IsRoot() bool {
	return c.Parent() == ""
}

// ParentRef returns a ParentID value for id, mapping "" to nil so that an
// empty parent column always means "root".
func ParentRef(id string) *string {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return &id
}

// CategoryNode is a Category with its children attached, as served to the
// category pickers. Children are ordered case-insensitively by name.
type CategoryNode struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	IsActive bool           `json:"is_active"`
	Children []CategoryNode `json:"children"`
}

// SelectedCategory is a client-supplied selection. It may reference a
// non-leaf category; Name is optional.
type SelectedCategory struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	FullPath string `json:"full_path,omitempty"`
}

// UnmarshalJSON accepts the id as either a JSON string or a number, since
// the category pickers send numeric ids.
func (s *SelectedCategory) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       json.RawMessage `json:"id"`
		Name     string          `json:"name"`
		FullPath string          `json:"full_path"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := flexibleID(raw.ID)
	if err != nil {
		return fmt.Errorf("selected category id: %w", err)
	}
	s.ID = id
	s.Name = raw.Name
	s.FullPath = raw.FullPath
	return nil
}

// flexibleID converts a JSON string or integer into its string form.
func flexibleID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("unsupported id %s", string(raw))
}
