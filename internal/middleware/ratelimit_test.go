package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func limitedRequest(userID uuid.UUID, addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", nil)
	req.RemoteAddr = addr
	if userID != uuid.Nil {
		req = req.WithContext(context.WithValue(req.Context(), UserIDKey, userID))
	}
	return req
}

func TestRateLimiter_KeysByUser(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	alice := uuid.New()
	bob := uuid.New()

	// Both behind the same address; alice burning her budget must not
	// throttle bob.
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, limitedRequest(alice, "10.0.0.1:1234"))
		if i < 2 && rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected %d, got %d", i, http.StatusOK, rr.Code)
		}
		if i == 2 && rr.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d: expected %d, got %d", i, http.StatusTooManyRequests, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, limitedRequest(bob, "10.0.0.1:1234"))
	if rr.Code != http.StatusOK {
		t.Fatalf("a different user behind the same address should not be throttled, got %d", rr.Code)
	}
}

func TestRateLimiter_FallsBackToAddress(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, limitedRequest(uuid.Nil, "10.0.0.2:1234"))
	if rr.Code != http.StatusOK {
		t.Fatalf("first anonymous request should pass, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, limitedRequest(uuid.Nil, "10.0.0.2:1234"))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second anonymous request from the same address should be throttled, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, limitedRequest(uuid.Nil, "10.0.0.3:1234"))
	if rr.Code != http.StatusOK {
		t.Fatalf("a different address should not be throttled, got %d", rr.Code)
	}
}
