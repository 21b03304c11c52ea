// Package store provides database access methods for all nutricompare
// entities. Each store struct wraps a *sql.DB and exposes typed query methods.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"nutricompare/internal/models"
)

// UserStore handles all user-related database operations. Accounts are
// created and authenticated by the account service; this store reads them
// and maintains the daily search counters.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a new UserStore with the given database connection.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, email, role, subscription_status, subscription_end_date,
	explore_count, last_explore_date, compare_count, last_compare_date, created_at`

func scanUser(scanner interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	err := scanner.Scan(
		&u.ID, &u.Email, &u.Role, &u.SubscriptionStatus, &u.SubscriptionEndDate,
		&u.ExploreCount, &u.LastExploreDate, &u.CompareCount, &u.LastCompareDate, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// FindByEmail retrieves a user by their email address. Returns nil if not found.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// FindByID retrieves a user by their UUID. Returns nil if not found.
func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// Create inserts a new user with a bcrypt-hashed password. It is used by
// the development seed; production accounts come from the account service.
func (s *UserStore) Create(ctx context.Context, email, password string, role models.Role) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := scanUser(s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		email, string(hash), role,
	))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// SetSubscription records the billing state mirrored from the payment
// provider.
func (s *UserStore) SetSubscription(ctx context.Context, userID uuid.UUID, status string, endDate *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET subscription_status = $1, subscription_end_date = $2 WHERE id = $3
	`, status, endDate, userID)
	if err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	return nil
}

// quotaColumns whitelists the counter columns per mode.
var quotaColumns = map[models.Mode][2]string{
	models.ModeExplore: {"explore_count", "last_explore_date"},
	models.ModeCompare: {"compare_count", "last_compare_date"},
}

// ConsumeQuota resets the mode's counter when its day is not today and
// increments it, unless it already reached limit. A negative limit never
// refuses. The check and the update are one statement, so concurrent
// searches cannot both take the last slot. It returns the new count and
// whether the search was allowed.
func (s *UserStore) ConsumeQuota(ctx context.Context, userID uuid.UUID, mode models.Mode, limit int, today time.Time) (int, bool, error) {
	cols, ok := quotaColumns[mode]
	if !ok {
		return 0, false, fmt.Errorf("consume quota: unknown mode %q", mode)
	}
	count, last := cols[0], cols[1]

	var n int
	err := s.db.QueryRowContext(ctx, `
		UPDATE users SET
			`+count+` = CASE WHEN `+last+` = $2::date THEN `+count+` + 1 ELSE 1 END,
			`+last+` = $2::date
		WHERE id = $1
		  AND ($3 < 0 OR `+last+` IS DISTINCT FROM $2::date OR `+count+` < $3)
		RETURNING `+count,
		userID, today.Format("2006-01-02"), limit,
	).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("consume quota: %w", err)
	}
	return n, true, nil
}

// userSortColumns whitelists the admin listing's sort fields.
var userSortColumns = map[string]string{
	"created_at":          "created_at",
	"email":               "email",
	"subscription_status": "subscription_status",
}

// List returns users whose email contains search (case-insensitively),
// sorted by order. An empty search lists everyone.
func (s *UserStore) List(ctx context.Context, search string, order SortOrder) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE $1 = '' OR email ILIKE '%' || $1 || '%'`+
		orderBy(order, userSortColumns, "created_at")+`, id`,
		search,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UserCounts summarises the account table for the admin dashboard.
type UserCounts struct {
	Total   int `json:"total"`
	Premium int `json:"premium"`
	Free    int `json:"free"`
}

// Counts returns total and premium account numbers. Premium means an
// active subscription status, matching the billing service's view.
func (s *UserStore) Counts(ctx context.Context) (UserCounts, error) {
	var c UserCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE subscription_status = $1) FROM users
	`, models.SubscriptionActive).Scan(&c.Total, &c.Premium)
	if err != nil {
		return c, fmt.Errorf("count users: %w", err)
	}
	c.Free = c.Total - c.Premium
	return c, nil
}

// ToggleSubscription flips a user between active and inactive status for
// support cases and returns the updated user. Returns nil if not found.
func (s *UserStore) ToggleSubscription(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET subscription_status =
			CASE WHEN subscription_status = $2 THEN 'inactive' ELSE $2 END
		WHERE id = $1
		RETURNING `+userColumns,
		userID, models.SubscriptionActive,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("toggle subscription: %w", err)
	}
	return u, nil
}

// Delete removes a user by ID.
func (s *UserStore) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
