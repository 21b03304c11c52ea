// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"nutricompare/internal/models"
)

// ShareStore manages publicly shared comparisons.
type ShareStore struct {
	db *sql.DB
}

// NewShareStore creates a new ShareStore.
func NewShareStore(db *sql.DB) *ShareStore {
	return &ShareStore{db: db}
}

const shareColumns = `s.id, s.user_id, s.token, s.comparison_data, s.created_at, s.view_count, s.is_active`

func scanShare(scanner interface{ Scan(...any) error }, extra ...any) (*models.SharedComparison, error) {
	var (
		sc   models.SharedComparison
		data []byte
	)
	dest := append([]any{&sc.ID, &sc.UserID, &sc.Token, &data, &sc.CreatedAt, &sc.ViewCount, &sc.IsActive}, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	sc.ComparisonData = json.RawMessage(data)
	return &sc, nil
}

// NewToken returns a random URL-safe token with 32 bytes of entropy.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create stores a comparison under a fresh token.
func (s *ShareStore) Create(ctx context.Context, userID uuid.UUID, data json.RawMessage) (*models.SharedComparison, error) {
	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO shared_comparisons AS s (user_id, token, comparison_data)
		VALUES ($1, $2, $3)
		RETURNING `+shareColumns,
		userID, token, string(data),
	)
	sc, err := scanShare(row)
	if err != nil {
		return nil, fmt.Errorf("create share: %w", err)
	}
	return sc, nil
}

// View returns the active share with token and increments its view count.
// Returns nil if there is no active share with that token.
func (s *ShareStore) View(ctx context.Context, token string) (*models.SharedComparison, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE shared_comparisons AS s SET view_count = view_count + 1
		WHERE token = $1 AND is_active
		RETURNING `+shareColumns,
		token,
	)
	sc, err := scanShare(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("view share: %w", err)
	}
	return sc, nil
}

// shareSortColumns whitelists the admin listing's sort fields.
var shareSortColumns = map[string]string{
	"created_at": "s.created_at",
	"view_count": "s.view_count",
	"is_active":  "s.is_active",
}

// List returns every share with its owner's email, sorted by order.
func (s *ShareStore) List(ctx context.Context, order SortOrder) ([]models.SharedComparison, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shareColumns+`, COALESCE(u.email, '')
		FROM shared_comparisons s
		LEFT JOIN users u ON u.id = s.user_id`+
		orderBy(order, shareSortColumns, "created_at")+`, s.id`)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	defer rows.Close()

	var items []models.SharedComparison
	for rows.Next() {
		var email string
		sc, err := scanShare(rows, &email)
		if err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		sc.OwnerEmail = email
		items = append(items, *sc)
	}
	return items, rows.Err()
}

// ShareStats summarises shared comparisons for the admin dashboard.
type ShareStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Views  int `json:"views"`
}

// Stats counts shares and their accumulated views.
func (s *ShareStore) Stats(ctx context.Context) (ShareStats, error) {
	var st ShareStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active), COALESCE(SUM(view_count), 0)
		FROM shared_comparisons
	`).Scan(&st.Total, &st.Active, &st.Views)
	if err != nil {
		return st, fmt.Errorf("share stats: %w", err)
	}
	return st, nil
}

// ToggleActive flips a share's active flag and returns the updated share.
// Returns nil if not found.
func (s *ShareStore) ToggleActive(ctx context.Context, id uuid.UUID) (*models.SharedComparison, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE shared_comparisons AS s SET is_active = NOT is_active
		WHERE id = $1
		RETURNING `+shareColumns,
		id,
	)
	sc, err := scanShare(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("toggle share: %w", err)
	}
	return sc, nil
}
