package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"grimm.is/dynwall/internal/brand"
	"grimm.is/dynwall/internal/cloudflare"
	"grimm.is/dynwall/internal/config"
	"grimm.is/dynwall/internal/geoip"
	"grimm.is/dynwall/internal/health"
	"grimm.is/dynwall/internal/logging"
	"grimm.is/dynwall/internal/metrics"
	"grimm.is/dynwall/internal/poller"
	"grimm.is/dynwall/internal/reconcile"
	"grimm.is/dynwall/internal/resolver"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitConfig   = 1
	ExitRejected = 2
)

// ConfigErrorPause is slept before exiting on an unreadable config so that
// a supervisor restarting the process does not flood the log.
var ConfigErrorPause = 10 * time.Second

// Component factories, replaced in tests.
var (
	newResolver = func(cfg *config.Config, logger *logging.Logger) poller.AddressResolver {
		return resolver.ForDetection(cfg.Detection, resolver.WithLogger(logger))
	}
	newFilterAPI = func(logger *logging.Logger) reconcile.FilterAPI {
		return cloudflare.NewClient(cloudflare.WithLogger(logger))
	}
)

// Execute runs the command line given in args (without the program name)
// and returns the process exit code. Logs go to out.
func Execute(ctx context.Context, args []string, out io.Writer) int {
	logger := logging.New(logging.Config{Level: logging.LevelInfo, Output: out, TimeFormat: time.RFC3339})
	logging.SetDefault(logger)

	repeat := false
	switch {
	case len(args) == 0:
	case len(args) == 1 && args[0] == "--repeat":
		repeat = true
	default:
		bad := args[0]
		if bad == "--repeat" {
			bad = args[1]
		}
		logger.Error(fmt.Sprintf("Unrecognized parameter '%s'. Stopping now.", bad))
		return ExitRejected
	}

	result, err := config.Load()
	if err != nil {
		logger.Error("Error reading config", "error", err)
		time.Sleep(ConfigErrorPause)
		return ExitConfig
	}
	cfg := result.Config

	logger = setupLogging(logger, cfg, out)
	logVersion := logger.Debug
	if repeat {
		logVersion = logger.Info
	}
	logVersion(fmt.Sprintf("%s %s", brand.Name, brand.Version), "commit", brand.GitCommit, "built", brand.BuildTime)
	logger.Debug("Loaded config", "path", result.Path, "format", result.Format)
	for _, w := range result.Warnings {
		logger.Warn(w)
	}

	if repeat {
		err = RunRepeat(ctx, cfg)
	} else {
		err = RunOnce(ctx, cfg)
	}
	if err != nil {
		logger.Error("Run failed", "error", err)
		return ExitConfig
	}
	return ExitOK
}

// setupLogging applies the configured level to the console logger, or
// replaces it with a JSON logger when log_json is set.
func setupLogging(console *logging.Logger, cfg *config.Config, out io.Writer) *logging.Logger {
	level, _ := logging.ParseLevel(cfg.LogLevel)
	if !cfg.LogJSON {
		console.SetLevel(level)
		return console
	}

	logger := logging.New(logging.Config{
		Level:      level,
		Output:     out,
		JSON:       true,
		TimeFormat: time.RFC3339,
	})
	logging.SetDefault(logger)
	return logger
}

// RunOnce performs a single resolve and reconcile pass.
func RunOnce(ctx context.Context, cfg *config.Config) error {
	loop, locator := newLoop(cfg)
	defer locator.Close()

	_, err := loop.RunOnce(ctx)
	return err
}

// RunRepeat runs the poll loop until ctx is cancelled. When metrics_listen
// is set, the metrics endpoint is served alongside it.
func RunRepeat(ctx context.Context, cfg *config.Config) error {
	loop, locator := newLoop(cfg)
	defer locator.Close()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsListen != "" {
		checker := health.NewChecker(nil)
		checker.Register("poller", loop.HealthCheck)
		srv := metrics.NewServer(cfg.MetricsListen, logging.WithComponent("metrics"), checker)
		g.Go(func() error {
			if err := srv.ListenAndServe(gctx); err != nil {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return loop.Run(gctx)
	})
	return g.Wait()
}

func newLoop(cfg *config.Config) (*poller.Loop, *geoip.Locator) {
	locator, err := geoip.Open(cfg.GeoIPDB)
	switch {
	case err != nil:
		logging.Warn("GeoIP lookups disabled", "error", err)
	case locator != nil:
		logging.Info("GeoIP database loaded", "path", locator.Path())
	}

	res := newResolver(cfg, logging.WithComponent("resolver"))
	rec := reconcile.New(newFilterAPI(logging.WithComponent("cloudflare")), logging.WithComponent("reconcile"))

	return poller.New(res, rec, poller.Options{
		Families: resolver.Families(cfg.IPv4, cfg.IPv6),
		Targets:  cfg.Targets,
		Delay:    cfg.Delay,
		Logger:   logging.WithComponent("poller"),
		Locator:  locator,
	}), locator
}
