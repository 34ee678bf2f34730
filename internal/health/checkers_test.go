package health

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/felixgeelhaar/vhub/internal/credstore"
	"github.com/felixgeelhaar/vhub/internal/identity"
	"github.com/felixgeelhaar/vhub/internal/session"
)

type brokenStore struct{ credstore.MemoryStore }

func (b *brokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, fmt.Errorf("permission denied")
}

func TestStoreChecker(t *testing.T) {
	tests := []struct {
		name  string
		setup map[string]string
		want  Status
	}{
		{"empty", nil, StatusHealthy},
		{"full pair", map[string]string{credstore.KeyToken: "tok", credstore.KeyUser: `{"id":1,"email":"a@b.org"}`}, StatusHealthy},
		{"token only", map[string]string{credstore.KeyToken: "tok"}, StatusDegraded},
		{"user only", map[string]string{credstore.KeyUser: `{"id":1}`}, StatusDegraded},
		{"corrupt user", map[string]string{credstore.KeyToken: "tok", credstore.KeyUser: "{not json"}, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := credstore.NewMemoryStore()
			for k, v := range tt.setup {
				if err := store.Set(context.Background(), k, v); err != nil {
					t.Fatal(err)
				}
			}

			result := NewStoreChecker(store, "memory").Check(context.Background())
			if result.Status != tt.want {
				t.Errorf("Status = %v, want %v (%s)", result.Status, tt.want, result.Message)
			}
			if result.Details["backend"] != "memory" {
				t.Errorf("backend detail = %v", result.Details["backend"])
			}
		})
	}
}

func TestStoreCheckerUnreadable(t *testing.T) {
	result := NewStoreChecker(&brokenStore{}, "file").Check(context.Background())
	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", result.Status)
	}
}

func TestAPIChecker(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Status
	}{
		{"ok", http.StatusOK, StatusHealthy},
		{"not found still reachable", http.StatusNotFound, StatusHealthy},
		{"server error", http.StatusBadGateway, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			result := NewAPIChecker(srv.URL+"/api", nil).Check(context.Background())
			if result.Status != tt.want {
				t.Errorf("Status = %v, want %v", result.Status, tt.want)
			}
			if result.Details["status_code"] != tt.status {
				t.Errorf("status_code detail = %v", result.Details["status_code"])
			}
		})
	}
}

func TestAPICheckerUnreachable(t *testing.T) {
	result := NewAPIChecker("http://127.0.0.1:1/api", nil).Check(context.Background())
	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", result.Status)
	}
	if _, ok := result.Details["error"]; !ok {
		t.Error("expected error detail")
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "42",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestSessionChecker(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	admin := &identity.User{ID: "42", Email: "admin@example.org", Metadata: identity.Metadata{"role": "admin"}}

	tests := []struct {
		name     string
		snap     session.Snapshot
		want     Status
		wantRole string
	}{
		{"anonymous", session.Snapshot{}, StatusDegraded, ""},
		{"opaque token", session.Snapshot{Token: "opaque", User: admin}, StatusHealthy, "admin"},
		{"valid jwt", session.Snapshot{Token: signedToken(t, now.Add(time.Hour)), User: admin}, StatusHealthy, "admin"},
		{"expired jwt", session.Snapshot{Token: signedToken(t, now.Add(-time.Hour)), User: admin}, StatusDegraded, "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewSessionChecker(func() session.Snapshot { return tt.snap })
			checker.now = func() time.Time { return now }

			result := checker.Check(context.Background())
			if result.Status != tt.want {
				t.Errorf("Status = %v, want %v (%s)", result.Status, tt.want, result.Message)
			}
			if tt.wantRole != "" && result.Details["role"] != tt.wantRole {
				t.Errorf("role detail = %v, want %s", result.Details["role"], tt.wantRole)
			}
		})
	}
}
