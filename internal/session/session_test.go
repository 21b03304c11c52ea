package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testStore returns a Store on Valkey DB 15, skipping when Valkey is down.
func testStore(t *testing.T, secure bool) (*Store, *redis.Client) {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:     envOr("VALKEY_HOST", "localhost") + ":" + envOr("VALKEY_PORT", "6379"),
		Password: os.Getenv("VALKEY_PASSWORD"),
		DB:       15,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}
	t.Cleanup(func() {
		if keys, _ := client.Keys(ctx, keyPrefix+"*").Result(); len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})
	return NewStore(client, secure), client
}

// requestWith builds a request carrying the cookie set on w.
func requestWith(t *testing.T, w *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/categories/tree", nil)
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			req.AddCookie(c)
			return req
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{strings.Repeat("ab", idBytes), true},
		{strings.Repeat("AB", idBytes), true},
		{"", false},
		{"nonexistent-session-id", false},
		{strings.Repeat("zz", idBytes), false},
		{strings.Repeat("a", idBytes*2+1), false},
	}
	for _, tt := range tests {
		if got := validID(tt.id); got != tt.want {
			t.Errorf("validID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestGetWithoutUsableCookie(t *testing.T) {
	s := &Store{} // never reaches Valkey
	tests := map[string]*http.Cookie{
		"no cookie":    nil,
		"malformed id": {Name: CookieName, Value: "../../etc"},
		"short id":     {Name: CookieName, Value: "abcd"},
	}
	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if c != nil {
				req.AddCookie(c)
			}
			data, err := s.Get(context.Background(), req)
			if err != nil || data != nil {
				t.Errorf("Get = %+v, %v; want nil, nil", data, err)
			}
		})
	}
}

func TestIssueAndGet(t *testing.T) {
	s, _ := testStore(t, false)
	ctx := context.Background()
	userID := uuid.New()

	w := httptest.NewRecorder()
	id, err := s.Issue(ctx, w, Data{UserID: userID, Email: "shopper@example.test", Role: "member"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !validID(id) {
		t.Errorf("issued id %q is not a valid id", id)
	}

	got, err := s.Get(ctx, requestWith(t, w))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.UserID != userID || got.Email != "shopper@example.test" || got.Role != "member" {
		t.Fatalf("Get = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}
}

func TestGetSlidesExpiry(t *testing.T) {
	s, client := testStore(t, false)
	ctx := context.Background()
	s.ttl = time.Minute

	w := httptest.NewRecorder()
	id, err := s.Issue(ctx, w, Data{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	client.Expire(ctx, keyPrefix+id, 5*time.Second)

	if _, err := s.Get(ctx, requestWith(t, w)); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ttl := client.TTL(ctx, keyPrefix+id).Val(); ttl <= 5*time.Second {
		t.Errorf("ttl after read = %v, want it reset towards %v", ttl, s.ttl)
	}
}

func TestRevoke(t *testing.T) {
	s, _ := testStore(t, false)
	ctx := context.Background()

	w := httptest.NewRecorder()
	id, err := s.Issue(ctx, w, Data{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := s.Revoke(ctx, id); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if got, err := s.Get(ctx, requestWith(t, w)); err != nil || got != nil {
		t.Errorf("Get after revoke = %+v, %v", got, err)
	}
	if err := s.Revoke(ctx, id); err != nil {
		t.Errorf("second Revoke: %v", err)
	}
}

func TestIssueCookieFlags(t *testing.T) {
	for _, secure := range []bool{false, true} {
		s, _ := testStore(t, secure)
		w := httptest.NewRecorder()
		if _, err := s.Issue(context.Background(), w, Data{UserID: uuid.New()}); err != nil {
			t.Fatalf("Issue: %v", err)
		}
		c := w.Result().Cookies()[0]
		if !c.HttpOnly || c.Secure != secure || c.SameSite != http.SameSiteLaxMode {
			t.Errorf("secure=%v: cookie = %+v", secure, c)
		}
	}
}
