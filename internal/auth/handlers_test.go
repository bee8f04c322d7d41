package auth

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestCreateOrganizerValidation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		role     string
		want     error
	}{
		{"missing username", "  ", "pw", "", ErrMissingCredentials},
		{"missing password", "alice", "", "", ErrMissingCredentials},
		{"unknown role", "alice", "pw", "superuser", ErrUnknownRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// validation fails before the database is touched
			_, err := CreateOrganizer(nil, tt.username, tt.password, tt.role)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSessionCookie(t *testing.T) {
	expires := time.Now().Add(time.Hour)

	local := (&Handler{}).sessionCookie("abc", expires)
	if local.Name != "session_id" || local.Value != "abc" {
		t.Errorf("unexpected cookie %+v", local)
	}
	if local.Secure || local.SameSite != http.SameSiteLaxMode || !local.HttpOnly {
		t.Errorf("expected insecure lax http-only cookie, got %+v", local)
	}

	deployed := (&Handler{Secure: true}).sessionCookie("abc", expires)
	if !deployed.Secure || deployed.SameSite != http.SameSiteNoneMode {
		t.Errorf("expected secure cross-site cookie, got %+v", deployed)
	}
}

func TestTTLDefault(t *testing.T) {
	if got := (&Handler{}).ttl(); got != DefaultSessionTTL {
		t.Errorf("expected %v, got %v", DefaultSessionTTL, got)
	}
	if got := (&Handler{TTL: time.Minute}).ttl(); got != time.Minute {
		t.Errorf("expected 1m, got %v", got)
	}
}
