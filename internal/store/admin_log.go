// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// admin_log.go records administrative changes (category, subscription and
// share toggles) so support can see who changed what and when.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// AdminLogStore handles admin action log operations.
type AdminLogStore struct {
	db *sql.DB
}

// NewAdminLogStore creates a new AdminLogStore.
func NewAdminLogStore(db *sql.DB) *AdminLogStore {
	return &AdminLogStore{db: db}
}

// AdminLogEntry is one recorded admin action.
type AdminLogEntry struct {
	ID         int64     `json:"id"`
	ActorEmail string    `json:"actor_email"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	LoggedAt   time.Time `json:"logged_at"`
}

// Log records an admin action. Failures are logged, never returned: the
// change itself already happened.
func (s *AdminLogStore) Log(ctx context.Context, actorEmail, entityType, entityID, action string) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_log (actor_email, entity_type, entity_id, action)
		VALUES ($1, $2, $3, $4)
	`, actorEmail, entityType, entityID, action)
	if err != nil {
		slog.Warn("failed to log admin action",
			"entity_type", entityType,
			"entity_id", entityID,
			"action", action,
			"error", err,
		)
		return
	}
	slog.Debug("admin action logged",
		"entity_type", entityType,
		"entity_id", entityID,
		"action", action,
	)
}

// Recent returns the latest entries, newest first.
func (s *AdminLogStore) Recent(ctx context.Context, limit int) ([]AdminLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_email, entity_type, entity_id, action, logged_at
		FROM admin_log
		ORDER BY logged_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query admin log: %w", err)
	}
	defer rows.Close()

	var entries []AdminLogEntry
	for rows.Next() {
		var e AdminLogEntry
		if err := rows.Scan(&e.ID, &e.ActorEmail, &e.EntityType, &e.EntityID, &e.Action, &e.LoggedAt); err != nil {
			return nil, fmt.Errorf("scan admin log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
