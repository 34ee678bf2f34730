package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/vhub/internal/api"
	"github.com/felixgeelhaar/vhub/internal/config"
	"github.com/felixgeelhaar/vhub/internal/credstore"
	"github.com/felixgeelhaar/vhub/internal/dispatch"
	"github.com/felixgeelhaar/vhub/internal/errors"
	"github.com/felixgeelhaar/vhub/internal/guard"
	"github.com/felixgeelhaar/vhub/internal/log"
	"github.com/felixgeelhaar/vhub/internal/metrics"
	"github.com/felixgeelhaar/vhub/internal/nav"
	"github.com/felixgeelhaar/vhub/internal/session"
	"github.com/felixgeelhaar/vhub/internal/telemetry"
)

// runtime is everything one command invocation works with.
type runtime struct {
	cfg      *config.Config
	logger   *log.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	span     trace.Span

	// Populated only for commands annotated with needsSession.
	store      credstore.Store
	closer     io.Closer
	location   *nav.Location
	dispatcher *dispatch.Dispatcher
	client     *api.Client
	session    *session.Manager
	routes     *guard.Table
}

var current *runtime

// setup loads configuration and, for session commands, opens the store and hydrates the session.
func setup(cmd *cobra.Command, args []string) error {
	if skipsConfig(cmd) {
		return nil
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if textfile, _ := cmd.Flags().GetString("metrics-textfile"); textfile != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Textfile = textfile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCfg := log.FromSettings(cfg.Log.Level, cfg.Log.Format)
	logCfg.Output = log.NewOutput(cmd.ErrOrStderr())
	logger := log.New(logCfg)
	log.SetDefaultLogger(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := telemetry.InitProvider(ctx, cfg.TelemetryConfig()); err != nil {
		logger.WithError(err).Warn("tracing disabled")
	}

	registry, m := metrics.NewRegistry()
	rt := &runtime{cfg: cfg, logger: logger, registry: registry, metrics: m}
	current = rt

	ctx, rt.span = telemetry.StartCommandSpan(ctx, cmd.CommandPath())
	cmd.SetContext(ctx)

	if cmd.Annotations[needsSession] == "" {
		return nil
	}
	return rt.openSession(ctx)
}

func (rt *runtime) openSession(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	store, closer, err := credstore.Open(rt.cfg.StoreOptions())
	if err != nil {
		rt.metrics.Error(string(errors.CodeOf(err)), "cli")
		return err
	}
	rt.store, rt.closer = store, closer

	rt.location = nav.NewLocation(nav.HomePath)
	rt.location.OnChange(func(from, to string) {
		rt.logger.Debug("location changed", "from", from, "to", to)
	})

	rt.dispatcher = dispatch.New(store, rt.location,
		dispatch.WithLogger(rt.logger),
		dispatch.WithMetrics(rt.metrics),
		dispatch.WithOrigin(rt.cfg.API.URL),
		dispatch.WithTracerProvider(telemetry.GetTracerProvider()),
	)
	rt.client = api.NewClient(rt.cfg.API.URL, rt.dispatcher.Client(rt.cfg.API.Timeout))
	rt.session = session.NewManager(store, rt.client,
		session.WithLogger(rt.logger),
		session.WithMetrics(rt.metrics),
		session.WithExpirySource(rt.dispatcher),
	)
	rt.session.OnChange(func(t session.Transition) {
		rt.logger.Debug("session transition", "from", t.From.String(), "to", t.To.String(), "reason", t.Reason)
	})
	rt.session.Init(ctx)

	rt.routes = guard.DefaultTable()
	return nil
}

// teardown releases the session and store, then flushes spans and metrics. cmdErr is the
// command's result, recorded on the command span. Safe to call twice.
func teardown(cmd *cobra.Command, cmdErr error) error {
	rt := current
	if rt == nil {
		return nil
	}
	current = nil

	if rt.session != nil {
		rt.session.Close()
	}
	if rt.closer != nil {
		if err := rt.closer.Close(); err != nil {
			rt.logger.WithError(err).Warn("closing credential store failed")
		}
	}
	if rt.span != nil {
		telemetry.End(rt.span, cmdErr)
	}
	if err := telemetry.Shutdown(context.Background()); err != nil {
		rt.logger.WithError(err).Warn("flushing traces failed")
	}
	if rt.cfg.Metrics.Enabled && rt.cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(rt.cfg.Metrics.Textfile, rt.registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfig] != "" {
			return true
		}
		if c.Name() == "help" || c.Name() == "completion" || c.Name() == cobra.ShellCompRequestCmd {
			return true
		}
	}
	return false
}

// runtimeFor returns the runtime prepared by setup.
func runtimeFor(cmd *cobra.Command) (*runtime, error) {
	if current == nil {
		return nil, fmt.Errorf("command %q ran without setup", cmd.CommandPath())
	}
	if cmd.Annotations[needsSession] != "" && current.session == nil {
		return nil, fmt.Errorf("command %q has no session", cmd.CommandPath())
	}
	return current, nil
}
