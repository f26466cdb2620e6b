package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/maxpoletaev/esclient/config"
	"github.com/maxpoletaev/esclient/metrics"
)

type shutdownFunc func(ctx context.Context) error

var noopShutdown = func(ctx context.Context) error { return nil }

func setupLogger(c *cli.Context) kitlog.Logger {
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)

	if !c.Bool("verbose") {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	return logger
}

// setupSettings loads the settings and applies the command line overrides.
func setupSettings(c *cli.Context) (config.Settings, error) {
	settings, err := config.Load(c.String("config"), c.String("env-prefix"))
	if err != nil {
		return config.Settings{}, err
	}

	if seeds := c.StringSlice("seed"); len(seeds) > 0 {
		settings.GossipSeeds = seeds
		settings.Endpoint = ""
	}

	if endpoint := c.String("endpoint"); endpoint != "" {
		settings.Endpoint = endpoint
		settings.GossipSeeds = nil
	}

	if c.IsSet("preference") {
		settings.NodePreference = c.String("preference")
	}

	if c.Bool("insecure") {
		settings.TLS = false
	}

	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}

	return settings, nil
}

// setupMetrics creates the metrics registry and, if an address is given, serves
// it over HTTP until shutdown.
func setupMetrics(c *cli.Context, logger kitlog.Logger) (*metrics.Registry, shutdownFunc) {
	registry := prometheus.NewRegistry()
	m := metrics.NewRegistry(registry)

	addr := c.String("metrics-addr")
	if addr == "" {
		return m, noopShutdown
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			level.Error(logger).Log("msg", "metrics server failed", "addr", addr, "err", err)
		}
	}()

	level.Info(logger).Log("msg", "serving metrics", "addr", addr)

	shutdown := func(ctx context.Context) error {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown metrics server: %w", err)
		}

		return nil
	}

	return m, shutdown
}
