// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"nutricompare/internal/apperrors"
	"nutricompare/internal/middleware"
	"nutricompare/internal/models"
	"nutricompare/internal/store"
	"nutricompare/internal/taxonomy"
)

const (
	// exportLinkTTL is how long a presigned category export link stays valid.
	exportLinkTTL = 15 * time.Minute

	defaultLogLimit = 50
	maxLogLimit     = 500
)

// ObjectLinker issues temporary download links for stored objects.
type ObjectLinker interface {
	PresignedURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}

// Admin serves the administration endpoints.
type Admin struct {
	categories taxonomy.Store
	users      *store.UserStore
	searches   *store.SavedSearchStore
	shares     *store.ShareStore
	log        *store.AdminLogStore

	// Set when the category table lives in object storage.
	linker       ObjectLinker
	exportBucket string
	exportKey    string
}

// NewAdmin creates the admin handler group.
func NewAdmin(categories taxonomy.Store, users *store.UserStore, searches *store.SavedSearchStore, shares *store.ShareStore, log *store.AdminLogStore) *Admin {
	return &Admin{
		categories: categories,
		users:      users,
		searches:   searches,
		shares:     shares,
		log:        log,
	}
}

// WithCategoryObject makes ExportCategories hand out presigned links to the
// category object instead of streaming the table.
func (a *Admin) WithCategoryObject(linker ObjectLinker, bucket, key string) *Admin {
	a.linker = linker
	a.exportBucket = bucket
	a.exportKey = key
	return a
}

// --- Dashboard ---

type dashboardStats struct {
	Users      store.UserCounts `json:"users"`
	Searches   int              `json:"saved_searches"`
	Shares     store.ShareStats `json:"shares"`
	Categories taxonomy.Stats   `json:"categories"`
}

// Dashboard returns the headline numbers for the admin overview.
func (a *Admin) Dashboard(w http.ResponseWriter, r *http.Request) {
	var stats dashboardStats
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		stats.Users, err = a.users.Counts(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Searches, err = a.searches.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Shares, err = a.shares.Stats(ctx)
		return err
	})
	g.Go(func() error {
		cats, err := a.categories.Load(ctx)
		if err != nil {
			return err
		}
		stats.Categories = taxonomy.Count(cats)
		return nil
	})
	if err := g.Wait(); err != nil {
		fail(w, "admin dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- Categories ---

// Categories returns the full tree, inactive categories included, filtered
// by ?search= when given.
func (a *Admin) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := a.categories.Load(r.Context())
	if err != nil {
		fail(w, "load categories", err)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("search"))
	writeJSON(w, http.StatusOK, map[string]any{
		"tree":   taxonomy.BuildTree(taxonomy.Search(cats, query)),
		"stats":  taxonomy.Count(cats),
		"search": query,
	})
}

// ToggleCategory flips a category's active flag, cascading deactivation to
// its descendants.
func (a *Admin) ToggleCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := taxonomy.ToggleActive(r.Context(), a.categories, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Category not found")
			return
		}
		fail(w, "toggle category", err)
		return
	}

	slog.Info("category toggled",
		"category_id", id,
		"active", res.Active,
		"affected", len(res.Affected),
		"admin", adminEmail(r),
	)
	a.record(r, "category", id, activation(res.Active))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": res.Message(),
		"result":  res,
	})
}

// ExportCategories hands out the category table as CSV: a presigned link
// when it lives in object storage, the streamed file otherwise.
func (a *Admin) ExportCategories(w http.ResponseWriter, r *http.Request) {
	if a.linker != nil {
		url, err := a.linker.PresignedURL(r.Context(), a.exportBucket, a.exportKey, exportLinkTTL)
		if err != nil {
			fail(w, "presign category export", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"url":        url,
			"expires_in": int(exportLinkTTL.Seconds()),
		})
		return
	}

	cats, err := a.categories.Load(r.Context())
	if err != nil {
		fail(w, "load categories", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="categories.csv"`)
	if err := taxonomy.WriteCSV(w, cats); err != nil {
		slog.Error("export categories", "error", err)
	}
}

// --- Users ---

// Users lists accounts, filtered by ?search= on email and sorted by
// ?sort=created_at|email|subscription_status and ?order=.
func (a *Admin) Users(w http.ResponseWriter, r *http.Request) {
	field, asc := sortParams(r)
	users, err := a.users.List(r.Context(), r.URL.Query().Get("search"), store.SortOrder{Field: field, Asc: asc})
	if err != nil {
		fail(w, "list users", err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// ToggleSubscription switches an account between active and inactive
// subscription status.
func (a *Admin) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := a.users.ToggleSubscription(r.Context(), id)
	if err != nil {
		fail(w, "toggle subscription", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	verb := "Deactivated"
	if user.SubscriptionStatus == models.SubscriptionActive {
		verb = "Activated"
	}
	slog.Info("subscription toggled", "user_id", user.ID, "status", user.SubscriptionStatus, "admin", adminEmail(r))
	a.record(r, "user", user.ID.String(), activation(user.SubscriptionStatus == models.SubscriptionActive))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("%s subscription for %s", verb, user.Email),
		"user":    user,
	})
}

// --- Shared comparisons ---

// Shares lists every shared comparison with its owner, sorted by
// ?sort=created_at|view_count|is_active and ?order=.
func (a *Admin) Shares(w http.ResponseWriter, r *http.Request) {
	field, asc := sortParams(r)
	shares, err := a.shares.List(r.Context(), store.SortOrder{Field: field, Asc: asc})
	if err != nil {
		fail(w, "list shares", err)
		return
	}
	if shares == nil {
		shares = []models.SharedComparison{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"shares": shares})
}

// ToggleShare enables or disables a public share link.
func (a *Admin) ToggleShare(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid share ID")
		return
	}

	share, err := a.shares.ToggleActive(r.Context(), id)
	if err != nil {
		fail(w, "toggle share", err)
		return
	}
	if share == nil {
		writeError(w, http.StatusNotFound, "Shared link not found")
		return
	}

	status := "deactivated"
	if share.IsActive {
		status = "activated"
	}
	slog.Info("share toggled", "share_id", share.ID, "active", share.IsActive, "admin", adminEmail(r))
	a.record(r, "share", share.ID.String(), activation(share.IsActive))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   fmt.Sprintf("Link %s successfully", status),
		"is_active": share.IsActive,
	})
}

// --- Action log ---

// Log returns the most recent admin actions; ?limit= defaults to 50.
func (a *Admin) Log(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Limit must be a positive number")
			return
		}
		limit = min(n, maxLogLimit)
	}

	if a.log == nil {
		writeJSON(w, http.StatusOK, map[string]any{"entries": []store.AdminLogEntry{}})
		return
	}
	entries, err := a.log.Recent(r.Context(), limit)
	if err != nil {
		fail(w, "admin log", err)
		return
	}
	if entries == nil {
		entries = []store.AdminLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// record writes an entry to the action log when one is configured.
func (a *Admin) record(r *http.Request, entityType, entityID, action string) {
	if a.log == nil {
		return
	}
	a.log.Log(r.Context(), adminEmail(r), entityType, entityID, action)
}

func activation(active bool) string {
	if active {
		return "activate"
	}
	return "deactivate"
}

func adminEmail(r *http.Request) string {
	if u := middleware.UserFromCtx(r.Context()); u != nil {
		return u.Email
	}
	return ""
}
