package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeLimiterStore struct {
	scopes []string
	count  int64
	err    error
}

func (f *fakeLimiterStore) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	f.scopes = append(f.scopes, scope)
	if f.err != nil {
		return false, 0, f.err
	}
	f.count++
	return f.count <= limit, f.count, nil
}

func limitedRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	return req.WithContext(WithUserID(req.Context(), userID))
}

func TestOrderRateLimitBlocksOverLimit(t *testing.T) {
	store := &fakeLimiterStore{}
	userID := uuid.NewString()
	calls := 0
	handler := OrderRateLimit(store, 2, time.Minute, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, limitedRequest(userID))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest(userID))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if calls != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls)
	}
	if store.scopes[0] != "orders:place:"+userID {
		t.Fatalf("unexpected scope %s", store.scopes[0])
	}
}

func TestOrderRateLimitFailsOpenOnStoreError(t *testing.T) {
	store := &fakeLimiterStore{err: errors.New("redis down")}
	called := false
	handler := OrderRateLimit(store, 1, time.Minute, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest(uuid.NewString()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !called {
		t.Fatal("expected handler to run when the store is unavailable")
	}
}

func TestOrderRateLimitDisabledWithZeroLimit(t *testing.T) {
	store := &fakeLimiterStore{}
	handler := OrderRateLimit(store, 0, time.Minute, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest(uuid.NewString()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(store.scopes) != 0 {
		t.Fatalf("expected no store calls, got %d", len(store.scopes))
	}
}

func TestOrderRateLimitSkipsAnonymousRequests(t *testing.T) {
	store := &fakeLimiterStore{}
	handler := OrderRateLimit(store, 1, time.Minute, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(store.scopes) != 0 {
		t.Fatalf("expected no store calls, got %d", len(store.scopes))
	}
}
