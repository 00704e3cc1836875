package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/app"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/config"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/metrics"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/source"
)

func main() {
	var lateEventsPath string

	flag.StringVar(&lateEventsPath, "late-events", "", "Path to a JSON array of readings replayed after the configured sources")
	klog.InitFlags(nil)
	// Log to ecowatch.log as well as stderr unless overridden on the command line
	flag.Set("log_file", "ecowatch.log")
	flag.Set("logtostderr", "false")
	flag.Set("alsologtostderr", "true")
	flag.Parse()
	defer klog.Flush()

	if err := run(lateEventsPath); err != nil {
		klog.ErrorS(err, "ecowatch failed")
		klog.Flush()
		os.Exit(1)
	}
}

func run(lateEventsPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	sources, err := app.BuildSources(cfg)
	if err != nil {
		return err
	}
	if lateEventsPath != "" {
		data, err := os.ReadFile(lateEventsPath)
		if err != nil {
			return err
		}
		late, err := source.NewMemorySourceFromJSON("late-events", data)
		if err != nil {
			return err
		}
		sources = append(sources, late)
	}

	a, err := app.New(cfg, sources, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	metrics.Register()
	if cfg.Run.MetricsAddr != "" {
		server := startMetricsServer(cfg.Run.MetricsAddr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	klog.InfoS("Starting EcoWatch",
		"sources", len(sources),
		"cacheTTL", cfg.Cache.TTL,
		"outputDir", cfg.Reports.OutputDir,
		"interval", cfg.Run.Interval)

	err = a.Run(ctx, cfg.Run.Interval)
	klog.InfoS("EcoWatch finished")
	return err
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		klog.V(1).InfoS("Starting metrics server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.ErrorS(err, "Metrics server failed")
		}
	}()
	return server
}
