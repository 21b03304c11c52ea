// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's permission level in the system.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// SubscriptionActive is the subscription status written by the billing
// service for paying accounts.
const SubscriptionActive = "active"

// User is the subset of the account record this service reads: identity,
// role, subscription state and the daily usage counters.
type User struct {
	ID                  uuid.UUID  `json:"id"`
	Email               string     `json:"email"`
	Role                Role       `json:"role"`
	SubscriptionStatus  string     `json:"subscription_status"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date,omitempty"`
	ExploreCount        int        `json:"explore_count"`
	LastExploreDate     *time.Time `json:"last_explore_date,omitempty"`
	CompareCount        int        `json:"compare_count"`
	LastCompareDate     *time.Time `json:"last_compare_date,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// IsAdmin returns true if the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsSubscribed reports whether the account has an active subscription at
// now. An active status without an end date is trusted until the billing
// webhooks fill the date in.
func (u *User) IsSubscribed(now time.Time) bool {
	if u.SubscriptionStatus != SubscriptionActive {
		return false
	}
	if u.SubscriptionEndDate == nil {
		return true
	}
	return u.SubscriptionEndDate.After(now)
}
