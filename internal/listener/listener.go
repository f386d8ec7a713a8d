package listener

import (
	"context"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"loadhunt/internal"
	"loadhunt/internal/config"
	"loadhunt/internal/connectors"
	gmailconnector "loadhunt/internal/connectors/gmail"
	imapconnector "loadhunt/internal/connectors/imap"
	"loadhunt/internal/pipeline"
)

const defaultSchedule = "@every 2m"

// ConnectFunc builds the mailbox connector for one cycle.
type ConnectFunc func(ctx context.Context, cfg config.Config, logger *zap.Logger) (connectors.MailConnector, error)

type Batcher interface {
	RunBatch(ctx context.Context, mail pipeline.MailSource) (internal.IngestionRun, error)
}

type Service struct {
	cfg     config.Config
	ingest  Batcher
	connect ConnectFunc
	logger  *zap.Logger
}

func NewService(cfg config.Config, ingest Batcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, ingest: ingest, connect: Connect, logger: logger}
}

// Connect picks the connector for cfg.MailProvider.
func Connect(ctx context.Context, cfg config.Config, logger *zap.Logger) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MailProvider)) {
	case "", "gmail":
		return gmailconnector.NewConnector(ctx, cfg, logger.Named("gmail"))
	case "imap":
		return imapconnector.NewConnector(cfg, logger.Named("imap"))
	default:
		return nil, eris.Errorf("listener: unsupported mail provider %q", cfg.MailProvider)
	}
}

// RunOnce connects and ingests one batch.
func (s *Service) RunOnce(ctx context.Context) (internal.IngestionRun, error) {
	conn, err := s.connect(ctx, s.cfg, s.logger)
	if err != nil {
		return internal.IngestionRun{}, eris.Wrap(err, "listener: connect")
	}
	return s.ingest.RunBatch(ctx, conn)
}

// Run ingests once immediately and then on the cron schedule until ctx is
// done. Overlapping cycles are skipped.
func (s *Service) Run(ctx context.Context) error {
	schedule := s.cfg.ListenerSchedule
	if strings.TrimSpace(schedule) == "" {
		schedule = defaultSchedule
	}

	cronLog := cronLogger{s.logger.Sugar()}
	c := cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)))
	if _, err := c.AddFunc(schedule, func() { s.cycle(ctx) }); err != nil {
		return eris.Wrapf(err, "listener: schedule %q", schedule)
	}

	s.cycle(ctx)
	c.Start()
	s.logger.Info("listener started", zap.String("schedule", schedule), zap.String("provider", s.cfg.MailProvider))

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("listener stopped")
	return nil
}

func (s *Service) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	run, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("listener cycle failed", zap.String("trace_id", run.TraceID),
			zap.String("reason", run.AbortReason), zap.Error(err))
		return
	}
	s.logger.Info("listener cycle done",
		zap.String("trace_id", run.TraceID),
		zap.String("tenant_id", run.TenantID),
		zap.Int("fetched", run.Fetched),
		zap.Int("ingested", run.Ingested))
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
