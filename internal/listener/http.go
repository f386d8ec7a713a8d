package listener

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"loadhunt/internal/metrics"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHandler serves /live, /ready (database ping) and /metrics. Check
// results are also exported as gauges on the metrics registry.
func NewHandler(db Pinger, m *metrics.Metrics) http.Handler {
	health := healthcheck.NewMetricsHandler(m.Registry(), "loadhunt")
	health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(5000))
	health.AddReadinessCheck("database", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return db.Ping(ctx)
	})

	mux := http.NewServeMux()
	mux.Handle("/live", health)
	mux.Handle("/ready", health)
	mux.Handle("/metrics", m.Handler())
	return mux
}

// Serve runs handler on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "listener: metrics server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
