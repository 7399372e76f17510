package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/propstack/buyer-leads/internal/auth"
)

func TestRateLimiter_ExhaustsBurst(t *testing.T) {
	rl := NewRateLimiter(1.0/60.0, 2)
	if !rl.Allow("u-1") || !rl.Allow("u-1") {
		t.Fatal("burst requests should pass")
	}
	if rl.Allow("u-1") {
		t.Error("request over the burst should be rejected")
	}
	// Other callers have their own bucket.
	if !rl.Allow("u-2") {
		t.Error("separate caller should not be throttled")
	}
}

func TestRateLimit_KeyedByActor(t *testing.T) {
	handler := RateLimit(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(actorID string) int {
		req := httptest.NewRequest(http.MethodPost, "/buyers", nil)
		req = req.WithContext(auth.WithActor(req.Context(), auth.Actor{ID: actorID, Role: auth.RoleUser}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("u-1"); code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", code)
	}
	if code := do("u-1"); code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", code)
	}
	if code := do("u-2"); code != http.StatusOK {
		t.Fatalf("other actor: expected 200, got %d", code)
	}
}
