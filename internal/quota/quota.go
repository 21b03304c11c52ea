// Package quota enforces the daily product-search allowance of free
// accounts. Subscribers are unlimited; their searches are still counted.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nutricompare/internal/models"
)

// Unlimited is the limit passed to the counter for subscribers.
const Unlimited = -1

// Limits are the free searches allowed per calendar day and mode.
type Limits struct {
	Explore int
	Compare int
}

// DefaultLimits is three explores and one compare a day.
var DefaultLimits = Limits{Explore: 3, Compare: 1}

// For returns the limit for mode.
func (l Limits) For(mode models.Mode) int {
	if mode == models.ModeExplore {
		return l.Explore
	}
	return l.Compare
}

// Day truncates t to its UTC calendar day. Counters reset when the stored
// day differs from today.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Used returns how many searches of mode u has made today.
func Used(u *models.User, mode models.Mode, today time.Time) int {
	count, last := u.CompareCount, u.LastCompareDate
	if mode == models.ModeExplore {
		count, last = u.ExploreCount, u.LastExploreDate
	}
	if last == nil || !Day(*last).Equal(Day(today)) {
		return 0
	}
	return count
}

// Remaining returns the searches of mode u has left today, or Unlimited.
func Remaining(u *models.User, mode models.Mode, limits Limits, now time.Time) int {
	if u.IsSubscribed(now) {
		return Unlimited
	}
	left := limits.For(mode) - Used(u, mode, now)
	if left < 0 {
		return 0
	}
	return left
}

// Counter atomically resets-or-increments a user's counter for mode,
// refusing when the count already reached limit. A negative limit always
// succeeds. It returns the count after the update.
type Counter interface {
	ConsumeQuota(ctx context.Context, userID uuid.UUID, mode models.Mode, limit int, today time.Time) (int, bool, error)
}

// Decision is the outcome of a Consume call.
type Decision struct {
	Allowed   bool
	Remaining int // Unlimited for subscribers
}

// Service applies Limits through a Counter.
type Service struct {
	counter Counter
	limits  Limits
	now     func() time.Time
}

// NewService creates a Service. Zero limits select DefaultLimits.
func NewService(counter Counter, limits Limits) *Service {
	if limits == (Limits{}) {
		limits = DefaultLimits
	}
	return &Service{counter: counter, limits: limits, now: time.Now}
}

// Limits returns the configured allowance.
func (s *Service) Limits() Limits { return s.limits }

// Consume records one search of mode for u if the allowance permits it.
func (s *Service) Consume(ctx context.Context, u *models.User, mode models.Mode) (Decision, error) {
	now := s.now()
	limit := s.limits.For(mode)
	subscribed := u.IsSubscribed(now)
	if subscribed {
		limit = Unlimited
	}

	count, ok, err := s.counter.ConsumeQuota(ctx, u.ID, mode, limit, Day(now))
	if err != nil {
		return Decision{}, fmt.Errorf("consume %s quota: %w", mode, err)
	}
	if subscribed {
		return Decision{Allowed: true, Remaining: Unlimited}, nil
	}
	if !ok {
		return Decision{Allowed: false, Remaining: 0}, nil
	}
	left := limit - count
	if left < 0 {
		left = 0
	}
	return Decision{Allowed: true, Remaining: left}, nil
}

// LimitMessage is the explanation shown when a free user runs out.
func LimitMessage(mode models.Mode, limits Limits) string {
	n := limits.For(mode)
	times := "times"
	if n == 1 {
		times = "time"
	}
	return fmt.Sprintf("Free users can %s %d %s per day. Upgrade to Premium for unlimited access!", mode, n, times)
}
