// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router tests verify the HTTP routing configuration, middleware
// chains, and the health endpoint.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"nutricompare/internal/handlers"
	"nutricompare/internal/models"
	"nutricompare/internal/ratelimit"
	"nutricompare/internal/session"
	"nutricompare/internal/taxonomy"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		ping       func(context.Context) error
		wantStatus int
		wantBody   string
	}{
		{"no database check", nil, http.StatusOK, "ok"},
		{"database up", func(context.Context) error { return nil }, http.StatusOK, "ok"},
		{"database down", func(context.Context) error { return errors.New("connection refused") }, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			healthHandler(tt.ping)(w, httptest.NewRequest("GET", "/health", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content-type = %q", ct)
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["status"] != tt.wantBody {
				t.Errorf("status field = %q, want %q", body["status"], tt.wantBody)
			}
		})
	}
}

// headerSessions treats the X-Test-User header as the session's user id.
type headerSessions struct{}

func (headerSessions) Get(_ context.Context, r *http.Request) (*session.Data, error) {
	id, err := uuid.Parse(r.Header.Get("X-Test-User"))
	if err != nil {
		return nil, nil
	}
	return &session.Data{UserID: id}, nil
}

type memUsers map[uuid.UUID]*models.User

func (m memUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return m[id], nil
}

type routerFixture struct {
	handler http.Handler
	member  *models.User
	admin   *models.User
}

func newRouterFixture(t *testing.T, limiter *ratelimit.Keyed) *routerFixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "categories.csv")
	csv := "id,parent_id,name,is_active\n1,,Food,True\n2,1,Dairy,True\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write categories: %v", err)
	}
	categories := taxonomy.NewFileStore(path)

	member := &models.User{ID: uuid.New(), Role: models.RoleMember}
	admin := &models.User{ID: uuid.New(), Role: models.RoleAdmin}

	h := New(Deps{
		Sessions:    headerSessions{},
		Users:       memUsers{member.ID: member, admin.ID: admin},
		Limiter:     limiter,
		LimitWindow: time.Minute,
		Categories:  handlers.NewCategories(categories),
		Products:    handlers.NewProducts(categories, nil, nil, nil),
		Library:     handlers.NewLibrary(nil, nil, nil),
		Admin:       handlers.NewAdmin(categories, nil, nil, nil, nil),
	})
	return &routerFixture{handler: h, member: member, admin: admin}
}

func (f *routerFixture) do(method, path string, u *models.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.RemoteAddr = "192.0.2.1:1234"
	if u != nil {
		req.Header.Set("X-Test-User", u.ID.String())
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouteAccess(t *testing.T) {
	f := newRouterFixture(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		user   *models.User
		want   int
	}{
		{"health is public", "GET", "/health", nil, http.StatusOK},
		{"metrics is public", "GET", "/metrics", nil, http.StatusOK},
		{"api needs a session", "GET", "/api/categories/tree", nil, http.StatusUnauthorized},
		{"member reads tree", "GET", "/api/categories/tree", f.member, http.StatusOK},
		{"member reads path", "GET", "/api/categories/2/path", f.member, http.StatusOK},
		{"member cannot share", "POST", "/api/shares", f.member, http.StatusForbidden},
		{"member cannot save search", "POST", "/api/searches", f.member, http.StatusForbidden},
		{"member cannot administer", "GET", "/api/admin/categories", f.member, http.StatusForbidden},
		{"admin lists categories", "GET", "/api/admin/categories", f.admin, http.StatusOK},
		{"admin exports categories", "GET", "/api/admin/categories/export", f.admin, http.StatusOK},
		{"admin reads action log", "GET", "/api/admin/log", f.admin, http.StatusOK},
		{"unknown route", "GET", "/api/nope", f.member, http.StatusNotFound},
		{"wrong method", "DELETE", "/api/categories/tree", f.member, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.user)
			if rec.Code != tt.want {
				t.Errorf("%s %s: status = %d, want %d (%s)", tt.method, tt.path, rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	f := newRouterFixture(t, nil)
	rec := f.do("GET", "/health", nil)
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
}

func TestAPIRateLimited(t *testing.T) {
	limiter := ratelimit.NewKeyed(2, time.Minute)
	t.Cleanup(limiter.Stop)
	f := newRouterFixture(t, limiter)

	for i := 0; i < 2; i++ {
		if rec := f.do("GET", "/api/categories/tree", f.member); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec := f.do("GET", "/api/categories/tree", f.member)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}

	// Health stays reachable.
	if rec := f.do("GET", "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health while limited: status = %d", rec.Code)
	}
}
