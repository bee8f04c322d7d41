package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/middleware"
	"github.com/CrowdShield/CS-Backend/internal/utils"
)

// mockFetcher implements middleware.SessionFetcher without any database dependency.
type mockFetcher struct {
	session utils.SessionData
	err     error
}

func (m mockFetcher) FindSessionByID(id string) (utils.SessionData, error) {
	return m.session, m.err
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// callWithCookie wraps a simple 200-OK inner handler in the provided middleware,
// optionally setting one cookie on the request, and returns the recorded response.
func callWithCookie(t *testing.T, mw func(http.Handler) http.Handler, cookieName, cookieValue string) *httptest.ResponseRecorder {
	t.Helper()

	handler := mw(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if cookieName != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: cookieValue})
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func validSession(role string) mockFetcher {
	return mockFetcher{session: utils.SessionData{
		UserID:    "user-1",
		Role:      role,
		ExpiresAt: time.Now().Add(time.Hour),
	}}
}

// TestSessionMiddleware_MissingCookie verifies that a request with no session_id
// cookie receives a 401 response.
func TestSessionMiddleware_MissingCookie(t *testing.T) {
	rec := callWithCookie(t, middleware.SessionMiddleware(mockFetcher{}), "", "")

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

// TestSessionMiddleware_ExpiredSession verifies that an expired session is
// rejected with "Session expired".
func TestSessionMiddleware_ExpiredSession(t *testing.T) {
	fetcher := mockFetcher{
		session: utils.SessionData{
			UserID:    "some-user",
			ExpiresAt: time.Now().Add(-1 * time.Hour),
		},
	}

	rec := callWithCookie(t, middleware.SessionMiddleware(fetcher), "session_id", "expired-session-id")

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "Session expired") {
		t.Errorf("expected body to contain %q, got: %q", "Session expired", body)
	}
}

func TestSessionMiddleware_FetcherError(t *testing.T) {
	fetcher := mockFetcher{err: errors.New("session not found")}

	rec := callWithCookie(t, middleware.SessionMiddleware(fetcher), "session_id", "nonexistent-session-id")

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

// TestSessionMiddleware_ValidSession verifies that the user id and role are
// injected into the context.
func TestSessionMiddleware_ValidSession(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := utils.GetUserIDFromContext(r.Context())
		if !ok || userID != "user-1" {
			http.Error(w, "wrong userID in context: "+userID, http.StatusInternalServerError)
			return
		}
		role, _ := utils.GetRoleFromContext(r.Context())
		if role != middleware.RoleOrganizer {
			http.Error(w, "wrong role in context: "+role, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	handler := middleware.SessionMiddleware(validSession(middleware.RoleOrganizer))(inner)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session-id"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d; body: %s", rec.Code, rec.Body.String())
	}
}

// TestRoleMiddleware_MissingUserID verifies the 401 path when no session ran.
func TestRoleMiddleware_MissingUserID(t *testing.T) {
	handler := middleware.RoleMiddleware(middleware.RoleAdmin)(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "missing user ID") {
		t.Errorf("expected body to contain %q, got: %q", "missing user ID", body)
	}
}

func TestOrganizerAndAdminMiddleware(t *testing.T) {
	cases := []struct {
		name string
		mw   func(middleware.SessionFetcher) func(http.Handler) http.Handler
		role string
		want int
	}{
		{"organizer reaches organizer route", middleware.OrganizerMiddleware, middleware.RoleOrganizer, http.StatusOK},
		{"admin reaches organizer route", middleware.OrganizerMiddleware, middleware.RoleAdmin, http.StatusOK},
		{"attendee role is forbidden", middleware.OrganizerMiddleware, "attendee", http.StatusForbidden},
		{"organizer cannot reach admin route", middleware.AdminMiddleware, middleware.RoleOrganizer, http.StatusForbidden},
		{"admin reaches admin route", middleware.AdminMiddleware, middleware.RoleAdmin, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := callWithCookie(t, tc.mw(validSession(tc.role)), "session_id", "sid")
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	mw := middleware.CORSMiddleware([]string{"https://dash.example"})

	t.Run("allowed origin is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://dash.example")
		rec := httptest.NewRecorder()
		mw(okHandler).ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example" {
			t.Errorf("expected origin echoed, got %q", got)
		}
	})

	t.Run("unknown origin is not echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		mw(okHandler).ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("expected no allow-origin header, got %q", got)
		}
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		rec := httptest.NewRecorder()
		mw(okHandler).ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})
}

func TestSharedKeyMiddleware(t *testing.T) {
	cases := []struct {
		name   string
		key    string
		header string
		value  string
		want   int
	}{
		{"disabled when key empty", "", "", "", http.StatusOK},
		{"bearer token", "s3cret", "Authorization", "Bearer s3cret", http.StatusOK},
		{"apikey header", "s3cret", "apikey", "s3cret", http.StatusOK},
		{"wrong key", "s3cret", "apikey", "nope", http.StatusUnauthorized},
		{"missing key", "s3cret", "", "", http.StatusUnauthorized},
		{"key prefix", "s3cret", "apikey", "s3cre", http.StatusUnauthorized},
		{"key with suffix", "s3cret", "Authorization", "Bearer s3cret2", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()
			middleware.SharedKeyMiddleware(tc.key)(okHandler).ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := middleware.RateLimitMiddleware(2)(okHandler)

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := do("10.0.0.1:1000"); got != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", got)
	}
	if got := do("10.0.0.1:1001"); got != http.StatusOK {
		t.Fatalf("second request: expected 200, got %d", got)
	}
	if got := do("10.0.0.1:1002"); got != http.StatusTooManyRequests {
		t.Errorf("third request: expected 429, got %d", got)
	}
	if got := do("10.0.0.2:1000"); got != http.StatusOK {
		t.Errorf("other client: expected 200, got %d", got)
	}
}
