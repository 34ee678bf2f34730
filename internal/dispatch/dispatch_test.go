package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/felixgeelhaar/vhub/internal/credstore"
	"github.com/felixgeelhaar/vhub/internal/errors"
	"github.com/felixgeelhaar/vhub/internal/log"
	"github.com/felixgeelhaar/vhub/internal/metrics"
	"github.com/felixgeelhaar/vhub/internal/nav"
)

type fixture struct {
	store    *credstore.MemoryStore
	location *nav.Location
	metrics  *metrics.Metrics
	spans    *tracetest.InMemoryExporter
	d        *Dispatcher
	client   *http.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, m := metrics.NewRegistry()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := &fixture{
		store:    credstore.NewMemoryStore(),
		location: nav.NewLocation("/dashboard"),
		metrics:  m,
		spans:    exporter,
	}
	f.d = New(f.store, f.location,
		WithLogger(log.Discard()),
		WithMetrics(m),
		WithTracerProvider(tp),
	)
	f.client = f.d.Client(5 * time.Second)
	return f
}

func (f *fixture) seed(t *testing.T, token string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, credstore.KeyUser, `{"id":"1","metadata":{"role":"admin"}}`))
	require.NoError(t, f.store.Set(ctx, credstore.KeyToken, token))
}

func statusServer(status int, seen chan<- *http.Request) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			seen <- r.Clone(context.Background())
		}
		w.WriteHeader(status)
	}))
}

func TestRoundTrip_AttachesStoredToken(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "abc")

	seen := make(chan *http.Request, 1)
	srv := statusServer(http.StatusOK, seen)
	defer srv.Close()

	resp, err := f.client.Get(srv.URL + "/users/profile")
	require.NoError(t, err)
	resp.Body.Close()

	got := <-seen
	assert.Equal(t, "Bearer abc", got.Header.Get("Authorization"))
	assert.NotEmpty(t, got.Header.Get(RequestIDHeader))
}

func TestRoundTrip_NoTokenStripsAuthorization(t *testing.T) {
	f := newFixture(t)

	seen := make(chan *http.Request, 1)
	srv := statusServer(http.StatusOK, seen)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/opportunities", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer stale")
	req.Header.Set(RequestIDHeader, "req-42")

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	got := <-seen
	assert.Empty(t, got.Header.Get("Authorization"))
	assert.Equal(t, "req-42", got.Header.Get(RequestIDHeader))
	assert.Equal(t, "Bearer stale", req.Header.Get("Authorization"), "caller's request must not be mutated")
}

func TestRoundTrip_UnauthorizedClearsAndRedirects(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "abc")

	var events []Expiry
	f.d.Subscribe(func(e Expiry) { events = append(events, e) })

	srv := statusServer(http.StatusUnauthorized, nil)
	defer srv.Close()

	_, err := f.client.Get(srv.URL + "/users/profile")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSessionExpired)

	ctx := context.Background()
	_, ok, _ := f.store.Get(ctx, credstore.KeyToken)
	assert.False(t, ok)
	_, ok, _ = f.store.Get(ctx, credstore.KeyUser)
	assert.False(t, ok)
	assert.Equal(t, nav.LoginPath, f.location.Current())

	require.Len(t, events, 1)
	assert.True(t, events[0].HadToken)
	assert.Equal(t, "/users/profile", events[0].Path)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ForcedLogouts))
}

func TestRoundTrip_ConcurrentUnauthorized(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "abc")

	var mu sync.Mutex
	withToken := 0
	f.d.Subscribe(func(e Expiry) {
		mu.Lock()
		defer mu.Unlock()
		if e.HadToken {
			withToken++
		}
	})

	redirects := 0
	f.location.OnChange(func(from, to string) { redirects++ })

	srv := statusServer(http.StatusUnauthorized, nil)
	defer srv.Close()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.client.Get(srv.URL + "/notifications")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, errors.ErrSessionExpired)
	}
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, nav.LoginPath, f.location.Current())
	assert.Equal(t, 1, redirects)
	assert.Equal(t, 1, withToken)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ForcedLogouts))
}

func TestRoundTrip_WithoutRecoveryKeepsCredentials(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "abc")

	srv := statusServer(http.StatusUnauthorized, nil)
	defer srv.Close()

	req, err := http.NewRequestWithContext(WithoutRecovery(context.Background()), http.MethodPost, srv.URL+"/auth/login", nil)
	require.NoError(t, err)

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 2, f.store.Len())
	assert.Equal(t, "/dashboard", f.location.Current())
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.ForcedLogouts))
}

// localhostURL points at srv through "localhost" so it differs in host from 127.0.0.1.
func localhostURL(srv *httptest.Server) string {
	return strings.Replace(srv.URL, "127.0.0.1", "localhost", 1)
}

func TestRoundTrip_CrossHostRedirectDropsToken(t *testing.T) {
	seen := make(chan *http.Request, 1)
	other := statusServer(http.StatusOK, seen)
	defer other.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, localhostURL(other)+"/landing", http.StatusFound)
	}))
	defer apiSrv.Close()

	f := newFixture(t)
	f.d = New(f.store, f.location, WithLogger(log.Discard()), WithOrigin(apiSrv.URL))
	f.client = f.d.Client(5 * time.Second)
	f.seed(t, "secret-token")

	resp, err := f.client.Get(apiSrv.URL + "/users/profile")
	require.NoError(t, err)
	resp.Body.Close()

	got := <-seen
	assert.Equal(t, "/landing", got.URL.Path)
	assert.Empty(t, got.Header.Get("Authorization"))
}

func TestRoundTrip_ForeignUnauthorizedKeepsSession(t *testing.T) {
	other := statusServer(http.StatusUnauthorized, nil)
	defer other.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, localhostURL(other)+"/login", http.StatusFound)
	}))
	defer apiSrv.Close()

	f := newFixture(t)
	f.d = New(f.store, f.location, WithLogger(log.Discard()), WithMetrics(f.metrics), WithOrigin(apiSrv.URL))
	f.client = f.d.Client(5 * time.Second)
	f.seed(t, "abc")

	resp, err := f.client.Get(apiSrv.URL + "/users/profile")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 2, f.store.Len())
	assert.Equal(t, "/dashboard", f.location.Current())
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.ForcedLogouts))
}

func TestRoundTrip_OriginAttachesToken(t *testing.T) {
	seen := make(chan *http.Request, 1)
	srv := statusServer(http.StatusOK, seen)
	defer srv.Close()

	f := newFixture(t)
	f.d = New(f.store, f.location, WithLogger(log.Discard()), WithOrigin(srv.URL+"/api"))
	f.client = f.d.Client(5 * time.Second)
	f.seed(t, "abc")

	resp, err := f.client.Get(srv.URL + "/api/users/profile")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer abc", (<-seen).Header.Get("Authorization"))
}

func TestExclusive_BlocksExpire(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "abc")

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- f.d.Exclusive(func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	expired := make(chan struct{})
	go func() {
		f.d.Expire(context.Background(), "/users/profile")
		close(expired)
	}()

	select {
	case <-expired:
		t.Fatal("Expire ran while Exclusive held the lock")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 2, f.store.Len())

	close(release)
	require.NoError(t, <-done)
	<-expired
	assert.Equal(t, 0, f.store.Len())
}

func TestRoundTrip_TransportUnreachable(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "abc")

	srv := statusServer(http.StatusOK, nil)
	url := srv.URL
	srv.Close()

	_, err := f.client.Get(url + "/users/profile")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTransportUnreachable)
	assert.Equal(t, 2, f.store.Len(), "network failures must not touch credentials")
	assert.Equal(t, "/dashboard", f.location.Current())
}

func TestExpire_Idempotent(t *testing.T) {
	f := newFixture(t)

	calls := 0
	unsubscribe := f.d.Subscribe(func(Expiry) { calls++ })

	ctx := context.Background()
	f.d.Expire(ctx, "/messages")
	f.d.Expire(ctx, "/messages")
	assert.Equal(t, 2, calls)
	assert.Equal(t, nav.LoginPath, f.location.Current())
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.ForcedLogouts), "nothing was stored")

	unsubscribe()
	unsubscribe()
	f.d.Expire(ctx, "/messages")
	assert.Equal(t, 2, calls)
}

func TestExpire_NilNavigator(t *testing.T) {
	store := credstore.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), credstore.KeyToken, "abc"))

	d := New(store, nil, WithLogger(log.Discard()))
	d.Expire(context.Background(), "/groups")

	assert.Equal(t, 0, store.Len())
}

func TestRoundTrip_RecordsSpans(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "abc")

	ok := statusServer(http.StatusOK, nil)
	defer ok.Close()
	denied := statusServer(http.StatusUnauthorized, nil)
	defer denied.Close()

	resp, err := f.client.Get(ok.URL + "/opportunities")
	require.NoError(t, err)
	resp.Body.Close()
	_, _ = f.client.Get(denied.URL + "/profile")

	spans := f.spans.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "HTTP GET", spans[0].Name)
	assert.NotEqual(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)

	found := false
	for _, attr := range spans[1].Attributes {
		if attr.Key == "http.response.status_code" {
			found = true
			assert.Equal(t, int64(http.StatusUnauthorized), attr.Value.AsInt64())
		}
	}
	assert.True(t, found, "status code attribute missing")
}

func TestRequestMetrics(t *testing.T) {
	f := newFixture(t)

	srv := statusServer(http.StatusNoContent, nil)
	defer srv.Close()

	for i := 0; i < 3; i++ {
		resp, err := f.client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(f.metrics.Requests.WithLabelValues("GET", "204")))
}
