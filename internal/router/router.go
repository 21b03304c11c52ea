// Package router sets up all HTTP routes and middleware chains for the
// nutricompare API. It organizes routes into public, user, subscriber and
// admin groups with appropriate middleware stacks.
package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nutricompare/internal/handlers"
	"nutricompare/internal/metrics"
	"nutricompare/internal/middleware"
	"nutricompare/internal/ratelimit"
)

// Deps are the collaborators the route table is built from.
type Deps struct {
	Sessions middleware.SessionReader
	Users    middleware.UserFinder

	// Ping checks the database for /health. Nil reports healthy.
	Ping func(ctx context.Context) error

	// Limiter caps requests per client IP on /api and /share. Nil disables it.
	Limiter     *ratelimit.Keyed
	LimitWindow time.Duration

	Categories *handlers.Categories
	Products   *handlers.Products
	Library    *handlers.Library
	Admin      *handlers.Admin
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.LoadSession(d.Sessions))

	// Health and metrics: no auth, no rate limit.
	r.Get("/health", healthHandler(d.Ping))
	r.Handle("/metrics", metrics.Handler())

	// Public shared comparisons.
	r.Group(func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(middleware.RateLimit(d.Limiter, d.LimitWindow))
		}
		r.Get("/share/{token}", d.Library.ViewShare)
	})

	r.Route("/api", func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(middleware.RateLimit(d.Limiter, d.LimitWindow))
		}
		r.Use(middleware.RequireUser(d.Users))

		// Category pickers
		r.Route("/categories", func(r chi.Router) {
			r.Get("/tree", d.Categories.Tree)
			r.Post("/merge", d.Categories.Merge)
			r.Get("/{id}/path", d.Categories.Path)
			r.Get("/{id}/leaves", d.Categories.Leaves)
		})

		// Products
		r.Post("/products/find", d.Products.Find)
		r.Post("/products/price-history", d.Products.PriceHistory)

		// Product data scratch space
		r.Route("/product-data", func(r chi.Router) {
			r.Get("/", d.Library.GetProductData)
			r.Post("/", d.Library.PutProductData)
			r.Delete("/", d.Library.ClearProductData)
		})

		// Saved searches: anyone can read theirs, creating one is premium.
		r.Route("/searches", func(r chi.Router) {
			r.Get("/", d.Library.ListSearches)
			r.With(middleware.RequireSubscriber).Post("/", d.Library.CreateSearch)
			r.Get("/{id}", d.Library.GetSearch)
			r.Put("/{id}", d.Library.UpdateSearch)
			r.Delete("/{id}", d.Library.DeleteSearch)
		})

		// Sharing is premium.
		r.With(middleware.RequireSubscriber).Post("/shares", d.Library.CreateShare)

		// Administration
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Get("/stats", d.Admin.Dashboard)
			r.Get("/log", d.Admin.Log)

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", d.Admin.Categories)
				r.Get("/export", d.Admin.ExportCategories)
				r.Post("/{id}/toggle", d.Admin.ToggleCategory)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", d.Admin.Users)
				r.Post("/{id}/toggle-subscription", d.Admin.ToggleSubscription)
			})

			r.Route("/shares", func(r chi.Router) {
				r.Get("/", d.Admin.Shares)
				r.Post("/{id}/toggle", d.Admin.ToggleShare)
			})
		})
	})

	return r
}

// healthHandler reports {"status":"ok"}, or 503 {"status":"degraded"}
// when the database ping fails.
func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				slog.Error("health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}
