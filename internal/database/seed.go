package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"nutricompare/internal/models"
)

// CategoryImporter loads a taxonomy into the categories table.
type CategoryImporter interface {
	Import(ctx context.Context, categories []models.Category) error
}

// Seed populates the database with initial development data: a default
// admin account when no users exist, and the given taxonomy when the
// categories table is empty. Both steps are skipped when data exists.
func Seed(ctx context.Context, db *sql.DB, importer CategoryImporter, categories []models.Category) error {
	if err := seedAdmin(ctx, db); err != nil {
		return err
	}
	if importer == nil || len(categories) == 0 {
		return nil
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		return fmt.Errorf("seed check categories: %w", err)
	}
	if count > 0 {
		return nil
	}
	if err := importer.Import(ctx, categories); err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	slog.Info("database seeded with categories", "count", len(categories))
	return nil
}

func seedAdmin(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}
	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	// The dev admin gets an open-ended subscription so quota checks do not
	// get in the way locally.
	_, err = db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, role, subscription_status)
		VALUES ($1, $2, $3, $4)
	`, "admin@nutricompare.local", string(hash), models.RoleAdmin, models.SubscriptionActive)
	if err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	slog.Info("database seeded with default admin user",
		"email", "admin@nutricompare.local",
		"password", "admin",
	)
	return nil
}
