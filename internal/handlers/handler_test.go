// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests.
// Unit tests run against a CSV category file and in-memory fakes;
// integration tests are skipped when PostgreSQL or Valkey are unavailable.
package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"nutricompare/internal/apperrors"
	"nutricompare/internal/cache"
	"nutricompare/internal/database"
	"nutricompare/internal/kassal"
	"nutricompare/internal/middleware"
	"nutricompare/internal/models"
	"nutricompare/internal/store"
	"nutricompare/internal/taxonomy"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "nutricompare")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "nutricompare")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, "comparison:*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})

	return client
}

// testEnv holds the database-backed dependencies for integration tests.
type testEnv struct {
	DB       *sql.DB
	Valkey   *redis.Client
	Users    *store.UserStore
	Searches *store.SavedSearchStore
	Shares   *store.ShareStore
	AdminLog *store.AdminLogStore
	Scratch  *cache.ComparisonCache
	Library  *Library
	Admin    *Admin
}

// newTestEnv creates a complete integration environment. Categories come
// from a CSV file so the tests do not depend on seeded rows.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	vk := testValkeyClient(t)

	users := store.NewUserStore(db)
	searches := store.NewSavedSearchStore(db)
	shares := store.NewShareStore(db)
	adminLog := store.NewAdminLogStore(db)
	scratch := cache.NewComparisonCache(vk, time.Minute)

	return &testEnv{
		DB:       db,
		Valkey:   vk,
		Users:    users,
		Searches: searches,
		Shares:   shares,
		AdminLog: adminLog,
		Scratch:  scratch,
		Library:  NewLibrary(searches, shares, scratch),
		Admin:    NewAdmin(taxonomy.NewFileStore(writeCategoryFile(t)), users, searches, shares, adminLog),
	}
}

// createTestUser inserts a throwaway account and removes it after the test.
func createTestUser(t *testing.T, env *testEnv, role models.Role, subscribed bool) *models.User {
	t.Helper()
	ctx := context.Background()
	email := fmt.Sprintf("handler-%s@example.test", uuid.NewString()[:8])
	u, err := env.Users.Create(ctx, email, "test-password", role)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	t.Cleanup(func() { env.Users.Delete(context.Background(), u.ID) })

	if subscribed {
		end := time.Now().Add(30 * 24 * time.Hour)
		if err := env.Users.SetSubscription(ctx, u.ID, models.SubscriptionActive, &end); err != nil {
			t.Fatalf("set subscription: %v", err)
		}
		u, err = env.Users.FindByID(ctx, u.ID)
		if err != nil || u == nil {
			t.Fatalf("reload user: %v", err)
		}
	}
	return u
}

// testCategoriesCSV is a small grocery taxonomy:
//
//	Food (1)
//	  Dairy (2)
//	    Milk (3)
//	    Cheese (4)
//	  Bakery (5, inactive)
const testCategoriesCSV = `id,parent_id,name,is_active
1,,Food,True
2,1,Dairy,True
3,2,Milk,True
4,2,Cheese,True
5,1,Bakery,False
`

// writeCategoryFile writes testCategoriesCSV to a temp file.
func writeCategoryFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "categories.csv")
	if err := os.WriteFile(path, []byte(testCategoriesCSV), 0o644); err != nil {
		t.Fatalf("write categories: %v", err)
	}
	return path
}

// withUser adds the authenticated user to a request.
func withUser(r *http.Request, u *models.User) *http.Request {
	return r.WithContext(middleware.WithUser(r.Context(), u))
}

// withChiURLParam adds a chi URL parameter to a request.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// decodeBody decodes a JSON response into a generic map.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

// fakeCatalog is an in-memory product API.
type fakeCatalog struct {
	mu         sync.Mutex
	configured bool
	items      map[string][]string // category id -> raw products
	details    map[string]string   // product id -> raw detail record
	calls      int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		configured: true,
		items:      make(map[string][]string),
		details:    make(map[string]string),
	}
}

func (f *fakeCatalog) Configured() bool { return f.configured }

func (f *fakeCatalog) SearchProducts(_ context.Context, categoryID string, page, _ int) (*kassal.Page, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	p := &kassal.Page{}
	if page > 1 {
		return p, nil
	}
	for _, item := range f.items[categoryID] {
		p.Items = append(p.Items, json.RawMessage(item))
	}
	return p, nil
}

func (f *fakeCatalog) ProductDetail(_ context.Context, id string) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	rec, ok := f.details[id]
	if !ok {
		return nil, &apperrors.UpstreamError{Op: "product detail", Status: http.StatusNotFound}
	}
	return json.RawMessage(rec), nil
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// product renders a minimal upstream product record.
func product(id int, ean, store, unit string) string {
	fields := []string{
		fmt.Sprintf(`"id": %d`, id),
		fmt.Sprintf(`"name": "Product %d"`, id),
		fmt.Sprintf(`"ean": %q`, ean),
		fmt.Sprintf(`"weight_unit": %q`, unit),
		fmt.Sprintf(`"store": {"name": %q}`, store),
	}
	return "{" + strings.Join(fields, ", ") + "}"
}

// memCounter is an in-memory quota counter keyed by mode.
type memCounter struct {
	mu     sync.Mutex
	counts map[models.Mode]int
	calls  int
	err    error
}

func newMemCounter() *memCounter {
	return &memCounter{counts: make(map[models.Mode]int)}
}

func (m *memCounter) ConsumeQuota(_ context.Context, _ uuid.UUID, mode models.Mode, limit int, _ time.Time) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return 0, false, m.err
	}
	if limit >= 0 && m.counts[mode] >= limit {
		return m.counts[mode], false, nil
	}
	m.counts[mode]++
	return m.counts[mode], true, nil
}
