package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/vhub/internal/errors"
	"github.com/felixgeelhaar/vhub/internal/exitcode"
)

// backend is a fake Volunteer Hub API. Tokens in valid are accepted by /users/profile.
type backend struct {
	token string
	valid map[string]bool
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "42",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("server-secret"))
	require.NoError(t, err)

	b := &backend{token: token, valid: map[string]bool{token: true}}

	r := mux.NewRouter()
	r.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["password"] != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid login credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": b.token,
			"user": map[string]any{
				"id":        "42",
				"email":     req["email"],
				"full_name": "Food Bank",
				"metadata":  map[string]any{"role": "organization"},
			},
		})
	}).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "43", "email": req["email"], "role": req["role"]})
	}).Methods(http.MethodPost)
	r.HandleFunc("/api/users/profile", func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !b.valid[token] {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "42", "email": "bank@example.org", "full_name": "Food Bank"})
	}).Methods(http.MethodGet)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return b, srv
}

type env struct {
	configPath string
	storePath  string
	metrics    string
}

func newEnv(t *testing.T, apiURL string) env {
	t.Helper()
	dir := t.TempDir()
	e := env{
		configPath: filepath.Join(dir, "config.yaml"),
		storePath:  filepath.Join(dir, "credentials.json"),
		metrics:    filepath.Join(dir, "vhub.prom"),
	}
	content := fmt.Sprintf("api:\n  url: %s/api\n  timeout: 5s\nstore:\n  backend: file\n  path: %s\nlog:\n  level: error\n", apiURL, e.storePath)
	require.NoError(t, os.WriteFile(e.configPath, []byte(content), 0o600))
	return e
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", e.configPath, "--no-color"}, args...))
	defer rootCmd.SetArgs(nil)

	err := ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	want := map[string][]string{
		"auth":   {"login", "logout", "register", "status"},
		"route":  {"check", "list"},
		"config": {"view", "path"},
	}

	for parent, children := range want {
		cmd, _, err := rootCmd.Find([]string{parent})
		require.NoError(t, err, parent)
		for _, child := range children {
			sub, _, err := cmd.Find([]string{child})
			require.NoError(t, err)
			assert.Equal(t, child, sub.Name(), "%s %s", parent, child)
		}
	}
}

func TestLoginStatusLogout(t *testing.T) {
	b, srv := newBackend(t)
	e := newEnv(t, srv.URL)

	out, err := e.run(t, "auth", "login", "--email", "bank@example.org", "--password", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in")
	assert.Contains(t, out, "organization")

	stored, err := os.ReadFile(e.storePath)
	require.NoError(t, err)
	assert.Contains(t, string(stored), b.token)

	out, err = e.run(t, "auth", "status", "--format", "json")
	require.NoError(t, err)
	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "AUTHENTICATED", status["state"])
	assert.Equal(t, "organization", status["role"])
	assert.Equal(t, "file", status["store"])
	assert.Contains(t, status, "token", "JWT claims are shown for display")

	out, err = e.run(t, "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out.")
	_, err = os.Stat(e.storePath)
	assert.True(t, os.IsNotExist(err), "credential file removed once empty")

	out, err = e.run(t, "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in.")
}

func TestLoginRejected(t *testing.T) {
	_, srv := newBackend(t)
	e := newEnv(t, srv.URL)

	_, err := e.run(t, "auth", "login", "--email", "bank@example.org", "--password", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
	assert.Equal(t, exitcode.AuthError, exitcode.DetermineExitCode(err))

	_, statErr := os.Stat(e.storePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStatusVerifyRevokedToken(t *testing.T) {
	b, srv := newBackend(t)
	e := newEnv(t, srv.URL)

	_, err := e.run(t, "auth", "login", "--email", "bank@example.org", "--password", "s3cret")
	require.NoError(t, err)

	out, err := e.run(t, "auth", "status", "--verify")
	require.NoError(t, err)
	assert.Contains(t, out, "Token accepted by the API")

	delete(b.valid, b.token)

	out, err = e.run(t, "auth", "status", "--verify", "--format", "json")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSessionExpired)

	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "ANONYMOUS", status["state"])
	assert.Equal(t, false, status["verified"])

	_, statErr := os.Stat(e.storePath)
	assert.True(t, os.IsNotExist(statErr), "rejected credentials are cleared")
}

func TestRegister(t *testing.T) {
	_, srv := newBackend(t)
	e := newEnv(t, srv.URL)

	out, err := e.run(t, "auth", "register",
		"--email", "new@example.org", "--password", "pw", "--full-name", "New Org", "--role", "organization")
	require.NoError(t, err)
	assert.Contains(t, out, "Account created")
	assert.Contains(t, out, "new@example.org")

	_, err = e.run(t, "auth", "status")
	require.NoError(t, err)
	_, statErr := os.Stat(e.storePath)
	assert.True(t, os.IsNotExist(statErr), "registration does not log in")

	_, err = e.run(t, "auth", "register",
		"--email", "x@example.org", "--password", "pw", "--full-name", "X", "--role", "admin")
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))
}

func TestRouteCheck(t *testing.T) {
	_, srv := newBackend(t)
	e := newEnv(t, srv.URL)

	out, err := e.run(t, "route", "check", "/dashboard", "--format", "json")
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "redirect-to-login", res["decision"])
	assert.Equal(t, "/login", res["target"])

	_, err = e.run(t, "auth", "login", "--email", "bank@example.org", "--password", "s3cret")
	require.NoError(t, err)

	tests := []struct {
		location string
		decision string
	}{
		{"/post-opportunity", "render"},
		{"/admin/users", "redirect-to-home"},
		{"/opportunities/9", "render"},
		{"/missing", "redirect-to-home"},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			out, err := e.run(t, "route", "check", tt.location, "--format", "json")
			require.NoError(t, err)
			var res map[string]any
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			assert.Equal(t, tt.decision, res["decision"])
			assert.Equal(t, "organization", res["role"])
		})
	}

	out, err = e.run(t, "route", "check", "/admin")
	require.NoError(t, err)
	assert.Contains(t, out, "redirect-to-home -> /")
}

func TestRouteList(t *testing.T) {
	_, srv := newBackend(t)
	e := newEnv(t, srv.URL)

	out, err := e.run(t, "route", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "/admin/users")
	assert.Contains(t, out, "admin-only")
	assert.Contains(t, out, "org-or-admin")

	out, err = e.run(t, "route", "list", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "requirement: public")
}

func TestConfigView(t *testing.T) {
	_, srv := newBackend(t)
	e := newEnv(t, srv.URL)

	out, err := e.run(t, "config", "view", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: file")
	assert.Contains(t, out, srv.URL)
}

func TestInvalidConfig(t *testing.T) {
	e := newEnv(t, "ftp://nowhere")

	_, err := e.run(t, "auth", "status")
	require.Error(t, err)
	assert.Equal(t, exitcode.ConfigError, exitcode.DetermineExitCode(err))

	out, err := e.run(t, "version", "--short")
	require.NoError(t, err, "version works without a valid config")
	assert.NotEmpty(t, strings.TrimSpace(out))
}

func TestMetricsTextfile(t *testing.T) {
	_, srv := newBackend(t)
	e := newEnv(t, srv.URL)

	_, err := e.run(t, "--metrics-textfile", e.metrics,
		"auth", "login", "--email", "bank@example.org", "--password", "s3cret")
	require.NoError(t, err)

	data, err := os.ReadFile(e.metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), `vhub_login_attempts_total{result="success"} 1`)
	assert.Contains(t, string(data), "vhub_requests_total")
}

func TestDoctor(t *testing.T) {
	_, srv := newBackend(t)
	e := newEnv(t, srv.URL)

	out, err := e.run(t, "doctor")
	require.NoError(t, err, "degraded checks do not fail the command")
	assert.Contains(t, out, "not logged in")
	assert.Contains(t, out, "Overall: degraded")

	_, err = e.run(t, "auth", "login", "--email", "bank@example.org", "--password", "s3cret")
	require.NoError(t, err)

	out, err = e.run(t, "doctor", "--format", "json")
	require.NoError(t, err)
	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "healthy", report.Status)
	require.Len(t, report.Checks, 3)
	assert.Equal(t, "credential-store", report.Checks[0].Name)
	assert.Equal(t, "api", report.Checks[1].Name)
	assert.Equal(t, "session", report.Checks[2].Name)
}

func TestDoctorUnreachableAPI(t *testing.T) {
	e := newEnv(t, "http://127.0.0.1:1")

	out, err := e.run(t, "doctor", "--timeout", "2s")
	require.Error(t, err)
	assert.Contains(t, out, "cannot reach")
}

func TestSealedStore(t *testing.T) {
	b, srv := newBackend(t)
	e := newEnv(t, srv.URL)
	t.Setenv("VHUB_STORE_PASSPHRASE", "correct horse")

	_, err := e.run(t, "auth", "login", "--email", "bank@example.org", "--password", "s3cret")
	require.NoError(t, err)

	stored, err := os.ReadFile(e.storePath)
	require.NoError(t, err)
	assert.NotContains(t, string(stored), b.token)
	assert.NotContains(t, string(stored), "bank@example.org")

	out, err := e.run(t, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in")

	t.Setenv("VHUB_STORE_PASSPHRASE", "wrong")
	out, err = e.run(t, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in", "unreadable credentials degrade to anonymous")
}
