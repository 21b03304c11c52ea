package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"nutricompare/internal/models"
)

// SavedSearchStore persists named category selections per user.
type SavedSearchStore struct {
	db *sql.DB
}

// NewSavedSearchStore creates a new SavedSearchStore.
func NewSavedSearchStore(db *sql.DB) *SavedSearchStore {
	return &SavedSearchStore{db: db}
}

const savedSearchColumns = `id, user_id, name, selected_categories, user_product_data, mode, created_at, last_accessed`

func scanSavedSearch(scanner interface{ Scan(...any) error }) (*models.SavedSearch, error) {
	var (
		s          models.SavedSearch
		categories []byte
		product    []byte
	)
	err := scanner.Scan(&s.ID, &s.UserID, &s.Name, &categories, &product, &s.Mode, &s.CreatedAt, &s.LastAccessed)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(categories, &s.SelectedCategories); err != nil {
		return nil, fmt.Errorf("decode selected categories: %w", err)
	}
	if len(product) > 0 {
		s.UserProductData = json.RawMessage(product)
	}
	return &s, nil
}

// nullableJSON maps an empty or null document to SQL NULL.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return string(raw)
}

// Create inserts a saved search.
func (s *SavedSearchStore) Create(ctx context.Context, search *models.SavedSearch) (*models.SavedSearch, error) {
	categories, err := json.Marshal(search.SelectedCategories)
	if err != nil {
		return nil, fmt.Errorf("encode selected categories: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO saved_searches (user_id, name, selected_categories, user_product_data, mode)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+savedSearchColumns,
		search.UserID, search.Name, string(categories), nullableJSON(search.UserProductData), search.Mode,
	)
	created, err := scanSavedSearch(row)
	if err != nil {
		return nil, fmt.Errorf("create saved search: %w", err)
	}
	return created, nil
}

// ListByUser returns the user's searches, newest first. An empty mode
// returns every mode.
func (s *SavedSearchStore) ListByUser(ctx context.Context, userID uuid.UUID, mode models.Mode) ([]models.SavedSearch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+savedSearchColumns+` FROM saved_searches
		WHERE user_id = $1 AND ($2 = '' OR mode = $2)
		ORDER BY created_at DESC
	`, userID, string(mode))
	if err != nil {
		return nil, fmt.Errorf("list saved searches: %w", err)
	}
	defer rows.Close()

	var items []models.SavedSearch
	for rows.Next() {
		search, err := scanSavedSearch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan saved search: %w", err)
		}
		items = append(items, *search)
	}
	return items, rows.Err()
}

// Open returns one of the user's searches and stamps last_accessed.
// Returns nil if the search does not exist or belongs to someone else.
func (s *SavedSearchStore) Open(ctx context.Context, userID, id uuid.UUID) (*models.SavedSearch, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE saved_searches SET last_accessed = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING `+savedSearchColumns,
		id, userID,
	)
	search, err := scanSavedSearch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open saved search: %w", err)
	}
	return search, nil
}

// SavedSearchPatch holds the fields an update may change; nil fields are
// left alone.
type SavedSearchPatch struct {
	Name               *string
	SelectedCategories []models.SelectedCategory
	UserProductData    json.RawMessage
}

// Update applies patch to one of the user's searches. Returns nil if the
// search does not exist or belongs to someone else.
func (s *SavedSearchStore) Update(ctx context.Context, userID, id uuid.UUID, patch SavedSearchPatch) (*models.SavedSearch, error) {
	var categories any
	if patch.SelectedCategories != nil {
		b, err := json.Marshal(patch.SelectedCategories)
		if err != nil {
			return nil, fmt.Errorf("encode selected categories: %w", err)
		}
		categories = string(b)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE saved_searches SET
			name = COALESCE($3, name),
			selected_categories = COALESCE($4::jsonb, selected_categories),
			user_product_data = COALESCE($5::jsonb, user_product_data)
		WHERE id = $1 AND user_id = $2
		RETURNING `+savedSearchColumns,
		id, userID, patch.Name, categories, nullableJSON(patch.UserProductData),
	)
	search, err := scanSavedSearch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update saved search: %w", err)
	}
	return search, nil
}

// Delete removes one of the user's searches and reports whether it existed.
func (s *SavedSearchStore) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_searches WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete saved search: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete saved search: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of saved searches across all users.
func (s *SavedSearchStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM saved_searches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count saved searches: %w", err)
	}
	return n, nil
}
