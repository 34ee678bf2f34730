// Package dispatch wraps every outbound API call.
//
// The Dispatcher is an http.RoundTripper. Before a request leaves it reads the token
// straight from the credential store and attaches it as a bearer credential. When the
// server answers 401 it clears the stored credentials, sends the client to the login
// surface, tells its subscribers, and fails the request with a SessionExpired error.
package dispatch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/vhub/internal/credstore"
	"github.com/felixgeelhaar/vhub/internal/errors"
	"github.com/felixgeelhaar/vhub/internal/log"
	"github.com/felixgeelhaar/vhub/internal/metrics"
	"github.com/felixgeelhaar/vhub/internal/nav"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

const tracerName = "github.com/felixgeelhaar/vhub/internal/dispatch"

// Expiry describes one forced credential clear.
type Expiry struct {
	// Path is the request path the server rejected.
	Path string
	// HadToken is false when the rejected request carried no stored token.
	HadToken bool
	At       time.Time
}

// Dispatcher attaches stored credentials to requests and recovers from authorization failures.
type Dispatcher struct {
	base      http.RoundTripper
	store     credstore.Store
	navigator nav.Navigator
	loginPath string
	origin    string
	logger    *log.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time

	// recoverMu serializes clear+redirect so concurrent 401s settle on one end state.
	recoverMu sync.Mutex

	subMu  sync.Mutex
	subs   map[int]func(Expiry)
	nextID int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBase sets the underlying transport (default http.DefaultTransport).
func WithBase(rt http.RoundTripper) Option {
	return func(d *Dispatcher) { d.base = rt }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) { d.logger = l.WithComponent("dispatch") }
}

// WithMetrics records request and forced-logout metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracerProvider sets the tracer provider (default: the otel global).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) { d.tracer = tp.Tracer(tracerName) }
}

// WithLoginPath overrides the login surface (default nav.LoginPath).
func WithLoginPath(path string) Option {
	return func(d *Dispatcher) { d.loginPath = path }
}

// WithOrigin restricts credentials and 401 recovery to requests for the host of baseURL.
// Requests to any other host, such as a redirect target, go out without the stored token
// and their 401s are passed through untouched.
func WithOrigin(baseURL string) Option {
	return func(d *Dispatcher) {
		if u, err := url.Parse(baseURL); err == nil {
			d.origin = strings.ToLower(u.Host)
		}
	}
}

// New creates a Dispatcher over store. navigator may be nil when there is nothing to redirect.
func New(store credstore.Store, navigator nav.Navigator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		base:      http.DefaultTransport,
		store:     store,
		navigator: navigator,
		loginPath: nav.LoginPath,
		logger:    log.DefaultLogger().WithComponent("dispatch"),
		tracer:    otel.GetTracerProvider().Tracer(tracerName),
		now:       time.Now,
		subs:      make(map[int]func(Expiry)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Client returns an http.Client that routes through d.
func (d *Dispatcher) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: d, Timeout: timeout}
}

// Subscribe registers fn for every forced clear. fn may run concurrently with other
// requests and must be idempotent. The returned func removes the subscription.
func (d *Dispatcher) Subscribe(fn func(Expiry)) (unsubscribe func()) {
	d.subMu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	d.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.subMu.Lock()
			delete(d.subs, id)
			d.subMu.Unlock()
		})
	}
}

// RoundTrip implements http.RoundTripper.
func (d *Dispatcher) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := d.tracer.Start(req.Context(), "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
		),
	)
	defer span.End()

	out := req.Clone(ctx)
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}
	trusted := d.trusts(out.URL)
	hasToken := false
	if trusted {
		hasToken = d.attachToken(ctx, out)
	} else {
		out.Header.Del("Authorization")
	}
	span.SetAttributes(attribute.Bool("vhub.credential_attached", hasToken))

	start := d.now()
	resp, err := d.base.RoundTrip(out)
	elapsed := d.now().Sub(start)

	if err != nil {
		d.metrics.ObserveRequest(req.Method, 0, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			return nil, err
		}
		unreachable := errors.NewTransportUnreachableError(req.URL.Host, err)
		d.metrics.Error(string(unreachable.Code), "dispatch")
		return nil, unreachable
	}

	d.metrics.ObserveRequest(req.Method, resp.StatusCode, elapsed)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusUnauthorized || !trusted || !recoveryEnabled(req.Context()) {
		if resp.StatusCode >= 500 {
			span.SetStatus(codes.Error, resp.Status)
		}
		return resp, nil
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	d.Expire(context.WithoutCancel(ctx), req.URL.Path)

	expired := errors.NewSessionExpiredError(req.URL.Path)
	span.SetStatus(codes.Error, "session expired")
	d.metrics.Error(string(expired.Code), "dispatch")
	return nil, expired
}

func (d *Dispatcher) trusts(u *url.URL) bool {
	return d.origin == "" || strings.EqualFold(u.Host, d.origin)
}

func (d *Dispatcher) attachToken(ctx context.Context, req *http.Request) bool {
	token, ok, err := d.store.Get(ctx, credstore.KeyToken)
	if err != nil {
		d.logger.WithError(err).WarnContext(ctx, "reading stored token failed; sending request without credential")
		ok = false
	}
	if !ok || token == "" {
		req.Header.Del("Authorization")
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return true
}

// Expire runs the authorization-failure recovery: clear both stored keys, navigate to
// the login surface and notify subscribers. It is safe to call repeatedly and
// concurrently. Clearing cleared keys and navigating to the current location are no-ops.
func (d *Dispatcher) Expire(ctx context.Context, path string) {
	d.recoverMu.Lock()
	defer d.recoverMu.Unlock()

	_, hadToken, err := d.store.Get(ctx, credstore.KeyToken)
	if err != nil {
		// Unreadable still means the credential must go.
		hadToken = true
	}

	if err := credstore.ClearCredentials(ctx, d.store); err != nil {
		d.logger.WithError(err).ErrorContext(ctx, "clearing rejected credentials failed", "path", path)
	}

	moved := false
	if d.navigator != nil {
		moved = d.navigator.Navigate(d.loginPath)
	}

	if hadToken {
		d.metrics.ForcedLogout()
		d.logger.InfoContext(ctx, "server rejected stored credential; signed out",
			"path", path, "redirected", moved, "login_path", d.loginPath)
	} else {
		d.logger.DebugContext(ctx, "unauthorized response without stored credential", "path", path)
	}

	event := Expiry{Path: path, HadToken: hadToken, At: d.now()}
	for _, fn := range d.subscribers() {
		fn(event)
	}
}

// Exclusive runs fn while no recovery is in progress. Credential writes made inside fn
// cannot interleave with the clear performed by Expire.
func (d *Dispatcher) Exclusive(fn func() error) error {
	d.recoverMu.Lock()
	defer d.recoverMu.Unlock()
	return fn()
}

func (d *Dispatcher) subscribers() []func(Expiry) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	fns := make([]func(Expiry), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	return fns
}

var _ http.RoundTripper = (*Dispatcher)(nil)
