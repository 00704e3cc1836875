// Package app wires sources, the ingestion pipeline, the window cache and
// the report writers into a single run.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/cache"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/clock"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/config"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/ingest"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/record"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/report"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/source"
)

// Window around the newest ingested reading that each run queries
const (
	rangeBefore = 2 * time.Minute
	rangeAfter  = time.Minute
)

// App owns the cache and the pipelines for the lifetime of the process
type App struct {
	cache     *cache.WindowCache
	pipelines []*ingest.Pipeline
	sources   []source.Source
	reports   []report.Report
	writer    *report.CSVWriter
}

// Result summarizes one run
type Result struct {
	RunID     string
	Ingested  int
	CacheSize int
	InRange   int
	Reports   []string // paths of written report files
}

// BuildSources creates the sources enabled in cfg, in the order CSV, SQLite, Kafka
func BuildSources(cfg *config.Config) ([]source.Source, error) {
	var specs []source.Spec
	if cfg.Sources.CSV.Path != "" {
		specs = append(specs, source.Spec{
			Kind: source.KindCSV,
			CSV:  source.CSVOptions{Path: cfg.Sources.CSV.Path, Columns: cfg.Sources.CSV.Columns},
		})
	}
	if cfg.Sources.SQLite.Path != "" {
		specs = append(specs, source.Spec{
			Kind:   source.KindSQLite,
			SQLite: source.SQLiteOptions{Path: cfg.Sources.SQLite.Path, Query: cfg.Sources.SQLite.Query},
		})
	}
	if len(cfg.Sources.Kafka.Brokers) > 0 {
		specs = append(specs, source.Spec{
			Kind: source.KindKafka,
			Kafka: source.KafkaOptions{
				Brokers:     cfg.Sources.Kafka.Brokers,
				Topic:       cfg.Sources.Kafka.Topic,
				GroupID:     cfg.Sources.Kafka.GroupID,
				MaxMessages: cfg.Sources.Kafka.MaxMessages,
				PollTimeout: cfg.Sources.Kafka.PollTimeout,
			},
		})
	}

	sources := make([]source.Source, 0, len(specs))
	for _, spec := range specs {
		src, err := source.New(spec)
		if err != nil {
			for _, s := range sources {
				source.Close(s)
			}
			return nil, fmt.Errorf("failed to create %s source: %w", spec.Kind, err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// New creates an App reading from sources. A nil clock means wall-clock time.
func New(cfg *config.Config, sources []source.Source, clk clock.Clock) (*App, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}

	types, err := cfg.ReportTypes()
	if err != nil {
		return nil, err
	}
	reports := make([]report.Report, 0, len(types))
	for _, t := range types {
		rep, err := report.New(t, cfg.ReportOptions())
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}

	pipelines := make([]*ingest.Pipeline, 0, len(sources))
	for _, src := range sources {
		pipelines = append(pipelines, ingest.NewPipeline(source.Instrument(src)))
	}

	return &App{
		cache:     cache.New(cfg.Cache.TTL, clk),
		pipelines: pipelines,
		sources:   sources,
		reports:   reports,
		writer:    report.NewCSVWriter(cfg.Reports.OutputDir, clk),
	}, nil
}

// Cache returns the window cache shared by every run
func (a *App) Cache() *cache.WindowCache {
	return a.cache
}

// Run executes RunOnce, then repeats it every interval until ctx is done.
// A non-positive interval runs once.
func (a *App) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		_, err := a.RunOnce(ctx)
		return err
	}

	klog.InfoS("Starting periodic ingestion", "interval", interval)
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		if _, err := a.RunOnce(ctx); err != nil {
			klog.ErrorS(err, "Run completed with errors")
		}
	}, interval)
	klog.InfoS("Periodic ingestion stopped")
	return nil
}

// RunOnce reads every source concurrently into the cache, queries it and
// writes the configured reports from a snapshot. Failed reports are logged
// and returned joined; they do not stop the other reports.
func (a *App) RunOnce(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	logger := klog.LoggerWithValues(klog.FromContext(ctx), "run", res.RunID)
	logger.Info("Starting ingestion run", "sources", len(a.pipelines))

	var (
		mu     sync.Mutex
		newest time.Time
		g      wait.Group
	)
	for _, p := range a.pipelines {
		g.Start(func() {
			records := p.ProcessNewLogs(ctx)
			a.cache.InsertMany(records)

			mu.Lock()
			defer mu.Unlock()
			res.Ingested += len(records)
			if latest, ok := maxTimestamp(records); ok && latest.After(newest) {
				newest = latest
			}
			logger.Info("Ingested batch",
				"source", p.Source().Name(),
				"records", len(records),
				"cacheSize", a.cache.Size())
		})
	}
	g.Wait()

	res.CacheSize = a.cache.Size()
	logger.Info("Cache updated", "cache", a.cache.String())

	for _, room := range a.cache.Rooms() {
		recs := a.cache.GetByRoom(room)
		if len(recs) == 0 {
			continue
		}
		logger.V(1).Info("Latest reading", "room", room, "readings", len(recs), "latest", recs[len(recs)-1].String())
	}

	if !newest.IsZero() {
		start, end := newest.Add(-rangeBefore), newest.Add(rangeAfter)
		res.InRange = len(a.cache.GetByRange(start, end))
		logger.Info("Readings around newest ingested reading",
			"start", start.Format(time.TimeOnly),
			"end", end.Format(time.TimeOnly),
			"count", res.InRange)
	}

	snapshot := a.cache.GetAll()
	if len(snapshot) == 0 {
		logger.Info("No data in cache, skipping reports")
		return res, nil
	}

	var errs []error
	for _, rep := range a.reports {
		path, err := a.writer.Execute(rep, snapshot)
		if err != nil {
			logger.Error(err, "Failed to write report", "report", rep.Name())
			errs = append(errs, fmt.Errorf("%s: %w", rep.Name(), err))
			continue
		}
		if path != "" {
			res.Reports = append(res.Reports, path)
		}
	}

	logger.Info("Ingestion run finished",
		"ingested", res.Ingested,
		"cacheSize", res.CacheSize,
		"reports", len(res.Reports))
	return res, errors.Join(errs...)
}

// Close releases every source
func (a *App) Close() error {
	var errs []error
	for _, src := range a.sources {
		if err := source.Close(src); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func maxTimestamp(records []record.Record) (time.Time, bool) {
	var latest time.Time
	for _, r := range records {
		if r.Timestamp.After(latest) {
			latest = r.Timestamp
		}
	}
	return latest, len(records) > 0
}
