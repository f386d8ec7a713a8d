package app

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"loadhunt/internal/config"
	"loadhunt/internal/geocode"
	"loadhunt/internal/listener"
	"loadhunt/internal/metrics"
	"loadhunt/internal/pipeline"
	"loadhunt/internal/storage"
	"loadhunt/internal/tasks"
	"loadhunt/internal/tenant"
)

// App is the wired runtime shared by the CLI and the listener binary.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	DB       *storage.DB
	Metrics  *metrics.Metrics
	Queue    *tasks.Queue
	Geocoder *geocode.Cache
	Ingest   *pipeline.IngestService
}

func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, eris.Wrap(err, "app: open storage")
	}

	m := metrics.New()
	queue := tasks.New(tasks.Options{
		Workers:     cfg.TaskWorkers,
		QueueSize:   cfg.TaskQueueSize,
		MaxAttempts: cfg.TaskMaxAttempts,
		OnFailure: func(name string, _ error) {
			m.TaskFailures.WithLabelValues(name).Inc()
		},
	}, logger.Named("tasks"))

	geocoder := geocode.NewCache(
		db,
		geocode.NewMapboxClient(cfg),
		geocode.NewKeyedLimiter(cfg.GeocodePerMinute, cfg.GeocodeDailyLimit),
		queue,
		m,
		logger.Named("geocode"),
	)

	ingest := pipeline.NewIngestService(
		cfg,
		db,
		tenant.NewResolver(db, logger.Named("tenant")),
		geocoder,
		queue,
		m,
		logger.Named("ingest"),
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Metrics:  m,
		Queue:    queue,
		Geocoder: geocoder,
		Ingest:   ingest,
	}, nil
}

// Close drains the background queue before closing the database so queued
// writes land.
func (a *App) Close() error {
	a.Queue.Close()
	return a.DB.Close()
}

// Listen runs the scheduled listener and, when an address is configured, the
// health and metrics server until ctx is done.
func (a *App) Listen(ctx context.Context) error {
	svc := listener.NewService(a.Config, a.Ingest, a.Logger.Named("listener"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(ctx) })
	if a.Config.MetricsAddr != "" {
		g.Go(func() error {
			return listener.Serve(ctx, a.Config.MetricsAddr, listener.NewHandler(a.DB, a.Metrics), a.Logger)
		})
	}
	return g.Wait()
}
