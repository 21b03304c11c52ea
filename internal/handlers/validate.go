package handlers

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"nutricompare/internal/models"
)

// Validation limits for request fields.
const (
	maxSearchNameLen = 200
	maxSelections    = 200
	maxProductIDs    = 200
	maxCategoryIDLen = 64
)

// validateSearchName checks a saved search name and returns the first error found.
func validateSearchName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Name is required"
	}
	if utf8.RuneCountInString(name) > maxSearchNameLen {
		return fmt.Sprintf("Name is too long (max %d characters)", maxSearchNameLen)
	}
	return ""
}

// validateSelections checks the selected categories of a search.
func validateSelections(selected []models.SelectedCategory) string {
	if len(selected) == 0 {
		return "No categories selected"
	}
	if len(selected) > maxSelections {
		return fmt.Sprintf("Too many categories selected (max %d)", maxSelections)
	}
	for _, s := range selected {
		if s.ID == "" {
			return "Every selected category needs an id"
		}
		if len(s.ID) > maxCategoryIDLen {
			return "Category id is too long"
		}
	}
	return ""
}

// validateProductIDs checks a price history request.
func validateProductIDs(ids []string) string {
	if len(ids) > maxProductIDs {
		return fmt.Sprintf("Too many products (max %d)", maxProductIDs)
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return "Product ids must not be empty"
		}
	}
	return ""
}
