package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/yamlauth/internal/logger"
	"github.com/marmos91/yamlauth/internal/telemetry"
	"github.com/marmos91/yamlauth/internal/watch"
	"github.com/marmos91/yamlauth/pkg/api"
	"github.com/marmos91/yamlauth/pkg/config"
	"github.com/marmos91/yamlauth/pkg/credstore"
	"github.com/marmos91/yamlauth/pkg/plugin"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the authentication daemon",
	Long: `Run the yamlauth daemon in the foreground.

The users file named in the configuration is loaded once at start-up; a
failure there is fatal. Afterwards it is reloaded when the file changes (if
watching is enabled), on SIGHUP, or on POST /reload. A failed reload keeps
the credentials that were in force.

SIGINT or SIGTERM clears the credentials and stops the daemon.

Examples:
  # Start with the default config location
  yamlauth serve

  # Start with a custom config file
  yamlauth serve --config /etc/yamlauth/config.yaml

  # Configure through the environment only
  YAMLAUTH_USERS_FILE=/etc/mosquitto/users.yaml yamlauth serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "yamlauth",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	logger.Info("yamlauth starting", "version", Version, "plugin_api", plugin.APIVersion)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}

	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}
	return d.run(ctx)
}

// daemon wires the plugin to its reload triggers and HTTP front end.
type daemon struct {
	cfg      *config.Config
	plugin   *plugin.Plugin
	opts     []plugin.Option
	registry *prometheus.Registry
	servers  []*api.Server
	watcher  *watch.Watcher
}

func newDaemon(cfg *config.Config) (*daemon, error) {
	d := &daemon{cfg: cfg, opts: cfg.HostOptions()}

	var storeOpts []credstore.Option
	if cfg.Metrics.Enabled {
		d.registry = prometheus.NewRegistry()
		d.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		storeOpts = append(storeOpts, credstore.WithMetrics(credstore.NewMetrics(d.registry)))
		logger.Info("Metrics enabled")
	} else {
		logger.Info("Metrics collection disabled")
	}

	d.plugin = plugin.New(d.opts, storeOpts...)

	deps := api.Dependencies{
		Auth:       d.plugin,
		Reloader:   d.plugin,
		Store:      d.plugin.Store(),
		AdminToken: cfg.API.AdminToken,
	}
	if d.registry != nil {
		deps.Gatherer = d.registry
	}

	switch {
	case cfg.API.IsEnabled():
		d.servers = append(d.servers, api.NewServer(cfg.API, deps))
		logger.Info("API server configured", "port", cfg.API.Port)
	case d.registry != nil:
		// Probes and metrics only.
		metricsCfg := api.APIConfig{Port: cfg.Metrics.Port}
		d.servers = append(d.servers, api.NewServer(metricsCfg, api.Dependencies{
			Store:    d.plugin.Store(),
			Gatherer: d.registry,
		}))
		logger.Info("API server disabled, serving metrics only", "port", cfg.Metrics.Port)
	default:
		logger.Info("API server disabled")
	}

	if cfg.Watch.IsEnabled() {
		w, err := watch.New(cfg.UsersFile, cfg.Watch.Debounce, func(ctx context.Context) {
			d.reload(ctx, "watch")
		})
		if err != nil {
			return nil, fmt.Errorf("failed to watch users file: %w", err)
		}
		d.watcher = w
		logger.Info("Watching users file", logger.Path(w.Path()), "debounce", cfg.Watch.Debounce.String())
	}

	return d, nil
}

// run performs the initial load and blocks until ctx is cancelled or a
// component fails. The store is always cleared before returning.
func (d *daemon) run(ctx context.Context) error {
	defer func() {
		if d.watcher != nil {
			_ = d.watcher.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
		defer cancel()
		d.plugin.SecurityCleanup(shutdownCtx, d.opts, false)
		d.plugin.Cleanup()
		logger.Info("Credentials cleared, daemon stopped")
	}()

	if err := d.plugin.SecurityInit(ctx, d.opts, false); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range d.servers {
		g.Go(func() error { return srv.Start(gctx) })
	}

	if d.watcher != nil {
		g.Go(func() error { return d.watcher.Run(gctx) })
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				d.reload(gctx, "sighup")
			}
		}
	})

	logger.Info("Daemon is running. Press Ctrl+C to stop.")

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Daemon error", logger.Err(err))
		return err
	}
	logger.Info("Shutdown signal received")
	return nil
}

// reload re-reads the users file. Errors are logged, not returned: the
// previous credentials stay in force. Each reload carries its own request
// ID so the hook log lines it produces can be grouped.
func (d *daemon) reload(ctx context.Context, trigger string) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanDaemonReload)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.ReloadTrigger(trigger))

	lc := logger.NewLogContext("reload").WithClient(uuid.NewString(), "")
	ctx = logger.WithContext(ctx, lc)

	if err := d.plugin.Reload(ctx, nil); err != nil {
		logger.WarnCtx(ctx, "reload failed, keeping previous credentials", "trigger", trigger, logger.Err(err))
		return
	}
	logger.InfoCtx(ctx, "reload complete", "trigger", trigger, logger.Count(d.plugin.Store().Len()))
}
