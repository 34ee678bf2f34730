package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/felixgeelhaar/vhub/internal/credstore"
	"github.com/felixgeelhaar/vhub/internal/identity"
	"github.com/felixgeelhaar/vhub/internal/session"
)

// StoreChecker reads both credential keys and reports whether they form a consistent pair.
type StoreChecker struct {
	store   credstore.Store
	backend string
}

// NewStoreChecker creates a checker for store; backend only labels the result.
func NewStoreChecker(store credstore.Store, backend string) *StoreChecker {
	return &StoreChecker{store: store, backend: backend}
}

// Name returns the name of this health check.
func (c *StoreChecker) Name() string {
	return "credential-store"
}

// Check returns:
//   - Unhealthy if either key cannot be read
//   - Degraded if only one key is present or the user record does not parse
//   - Healthy otherwise
func (c *StoreChecker) Check(ctx context.Context) *Result {
	token, hasToken, err := c.store.Get(ctx, credstore.KeyToken)
	if err != nil {
		return Unhealthy("credential store cannot be read").
			WithDetail("backend", c.backend).
			WithDetail("error", err.Error())
	}
	user, hasUser, err := c.store.Get(ctx, credstore.KeyUser)
	if err != nil {
		return Unhealthy("credential store cannot be read").
			WithDetail("backend", c.backend).
			WithDetail("error", err.Error())
	}

	switch {
	case hasToken != hasUser:
		return Degraded("credential store holds a partial pair").
			WithDetail("backend", c.backend).
			WithDetail("token", hasToken).
			WithDetail("user", hasUser).
			WithDetail("suggestion", "Run 'vhub auth logout' to reset stored credentials")
	case !hasToken:
		return Healthy("credential store is empty").WithDetail("backend", c.backend)
	}

	if _, err := identity.Decode(user); err != nil {
		return Degraded("stored user record is not parseable").
			WithDetail("backend", c.backend).
			WithDetail("error", err.Error()).
			WithDetail("suggestion", "Run 'vhub auth logout' to reset stored credentials")
	}
	return Healthy("credentials stored").
		WithDetail("backend", c.backend).
		WithDetail("token_length", len(token))
}

// APIChecker checks that the Volunteer Hub API answers HTTP at all. It uses its own client so
// a probe never goes through session recovery.
type APIChecker struct {
	url    string
	client *http.Client
}

// NewAPIChecker creates a checker for baseURL. A nil client gets a 5-second default.
func NewAPIChecker(baseURL string, client *http.Client) *APIChecker {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &APIChecker{url: baseURL, client: client}
}

// Name returns the name of this health check.
func (c *APIChecker) Name() string {
	return "api"
}

// Check returns:
//   - Unhealthy if the request fails at the transport level
//   - Degraded on a 5xx response
//   - Healthy on any other response
func (c *APIChecker) Check(ctx context.Context) *Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Unhealthy("invalid API URL").WithDetail("error", err.Error())
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Unhealthy(fmt.Sprintf("cannot reach %s", c.url)).
			WithDetail("error", err.Error()).
			WithLatency(latency)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Degraded(fmt.Sprintf("API answered %d", resp.StatusCode)).
			WithDetail("status_code", resp.StatusCode).
			WithLatency(latency)
	}
	return Healthy("API reachable").
		WithDetail("url", c.url).
		WithDetail("status_code", resp.StatusCode).
		WithLatency(latency)
}

// SessionChecker reports the hydrated session, and flags a JWT whose exp claim has passed.
type SessionChecker struct {
	snapshot func() session.Snapshot
	now      func() time.Time
}

// NewSessionChecker creates a checker reading snapshot on every Check.
func NewSessionChecker(snapshot func() session.Snapshot) *SessionChecker {
	return &SessionChecker{snapshot: snapshot, now: time.Now}
}

// Name returns the name of this health check.
func (c *SessionChecker) Name() string {
	return "session"
}

// Check returns:
//   - Degraded if nobody is logged in or the token has expired
//   - Healthy if a session is present
func (c *SessionChecker) Check(ctx context.Context) *Result {
	snap := c.snapshot()
	if !snap.Authenticated() {
		return Degraded("not logged in").
			WithDetail("suggestion", "Run 'vhub auth login'")
	}

	result := Healthy("logged in").
		WithDetail("email", snap.User.Email).
		WithDetail("role", snap.Role().String())

	info, err := session.InspectToken(snap.Token)
	if err != nil {
		return result.WithDetail("token", "opaque")
	}
	if info.ExpiresAt != nil {
		result.WithDetail("expires_at", info.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if info.Expired(c.now()) {
		result.Status = StatusDegraded
		result.Message = "token has expired"
		result.WithDetail("suggestion", "Run 'vhub auth login' to sign in again")
	}
	return result
}
