package pipeline

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"loadhunt/internal"
	"loadhunt/internal/config"
	"loadhunt/internal/geocode"
	"loadhunt/internal/metrics"
	"loadhunt/internal/tasks"
	"loadhunt/internal/util"
)

// MailSource is a polled mailbox.
type MailSource interface {
	Identity(ctx context.Context) (string, error)
	ListUnread(ctx context.Context, max int) ([]internal.InboundMessage, error)
}

type TenantResolver interface {
	Resolve(ctx context.Context, mailbox, traceID string) (string, error)
}

type Geocoder interface {
	Lookup(ctx context.Context, caller, city, state string) (internal.Coordinates, bool)
	LookupPostal(ctx context.Context, caller, postal string) (geocode.Place, bool)
}

type TaskSubmitter interface {
	Submit(ctx context.Context, task tasks.Task) error
}

type Store interface {
	HintStore
	MatchStore
	CustomerStore
	ShipmentExists(ctx context.Context, messageID string) (bool, error)
	InsertShipment(ctx context.Context, s internal.ShipmentRecord) (int64, bool, error)
	InsertRun(ctx context.Context, r internal.IngestionRun) error
}

type Outcome string

const (
	OutcomeIngested  Outcome = "ingested"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// IngestService runs one mailbox batch through detect, parse, hints,
// geocode and the dedup insert, then hands customers and matching to the
// background queue.
type IngestService struct {
	cfg      config.Config
	store    Store
	resolver TenantResolver
	detector *Detector
	hints    *HintOverlay
	geocoder Geocoder
	matcher  *Matcher
	queue    TaskSubmitter
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewIngestService(cfg config.Config, store Store, resolver TenantResolver, geocoder Geocoder, queue TaskSubmitter, m *metrics.Metrics, logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &IngestService{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		detector: NewDetector(cfg),
		hints:    NewHintOverlay(store, logger),
		geocoder: geocoder,
		matcher:  NewMatcher(store, cfg.RegionalRadiusMiles, m, logger),
		queue:    queue,
		metrics:  m,
		logger:   logger,
	}
}

// RunBatch ingests the unread messages of one mailbox. Only an identity,
// tenant or listing failure aborts the batch; message failures are counted
// and skipped. The run is always recorded.
func (s *IngestService) RunBatch(ctx context.Context, mail MailSource) (internal.IngestionRun, error) {
	run := internal.IngestionRun{TraceID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := s.logger.With(zap.String("trace_id", run.TraceID))

	mailbox, err := mail.Identity(ctx)
	if err != nil {
		return s.abort(ctx, log, run, "identity_unavailable", eris.Wrap(err, "ingest: mailbox identity"))
	}
	run.Mailbox = strings.ToLower(strings.TrimSpace(mailbox))
	log = log.With(zap.String("mailbox", run.Mailbox))

	tenantID, err := s.resolver.Resolve(ctx, run.Mailbox, run.TraceID)
	if err != nil {
		return s.abort(ctx, log, run, "tenant_unresolved", err)
	}
	run.TenantID = tenantID
	log = log.With(zap.String("tenant_id", tenantID))

	msgs, err := mail.ListUnread(ctx, s.cfg.MailFetchMax)
	if err != nil {
		return s.abort(ctx, log, run, "list_failed", eris.Wrap(err, "ingest: list unread"))
	}
	run.Fetched = len(msgs)

	// Providers list newest first; shipment ids must follow arrival so hunt
	// floors stay meaningful.
	slices.SortStableFunc(msgs, func(a, b internal.InboundMessage) int {
		return a.ReceivedAt.Compare(b.ReceivedAt)
	})

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(max(1, s.cfg.BatchWorkers))
	for _, msg := range msgs {
		g.Go(func() error {
			outcome := s.processMessage(ctx, log, run.Mailbox, tenantID, msg)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case OutcomeIngested:
				run.Ingested++
			case OutcomeDuplicate:
				run.Duplicates++
			default:
				run.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.finish(ctx, log, &run, "ok")
	log.Info("ingest: batch done",
		zap.Int("fetched", run.Fetched),
		zap.Int("ingested", run.Ingested),
		zap.Int("duplicates", run.Duplicates),
		zap.Int("failed", run.Failed))
	return run, nil
}

func (s *IngestService) abort(ctx context.Context, log *zap.Logger, run internal.IngestionRun, reason string, err error) (internal.IngestionRun, error) {
	run.AbortReason = reason
	log.Error("ingest: batch aborted", zap.String("reason", reason), zap.Error(err))
	s.finish(ctx, log, &run, "aborted")
	return run, err
}

func (s *IngestService) finish(ctx context.Context, log *zap.Logger, run *internal.IngestionRun, result string) {
	run.FinishedAt = time.Now().UTC()
	s.metrics.Runs.WithLabelValues(result).Inc()
	if err := s.store.InsertRun(context.WithoutCancel(ctx), *run); err != nil {
		log.Warn("ingest: record run", zap.String("reason", "run_ledger"), zap.Error(err))
	}
}

// processMessage handles one message under its own timeout. A panic is
// recovered and counted as a failure so the batch keeps going.
func (s *IngestService) processMessage(ctx context.Context, batchLog *zap.Logger, mailbox, tenantID string, msg internal.InboundMessage) (outcome Outcome) {
	ctx, cancel := context.WithTimeout(ctx, s.messageTimeout())
	defer cancel()

	start := time.Now()
	log := batchLog.With(zap.String("message_id", msg.MessageID))
	var dialect internal.Dialect

	defer func() {
		if r := recover(); r != nil {
			log.Error("ingest: message panicked", zap.String("reason", "panic"), zap.Any("panic", r))
			outcome = OutcomeFailed
		}
		s.metrics.Messages.WithLabelValues(string(outcome), string(dialect)).Inc()
		s.metrics.MessageLatency.Observe(time.Since(start).Seconds())
	}()

	if strings.TrimSpace(msg.MessageID) == "" {
		log.Warn("ingest: message skipped", zap.String("reason", "malformed_message"))
		return OutcomeFailed
	}

	exists, err := s.store.ShipmentExists(ctx, msg.MessageID)
	if err != nil {
		log.Error("ingest: message skipped", zap.String("reason", "exists_check_failed"), zap.Error(err))
		return OutcomeFailed
	}
	if exists {
		log.Info("ingest: message skipped", zap.String("reason", "duplicate"))
		return OutcomeDuplicate
	}

	detection := s.detector.Detect(msg)
	dialect = detection.Dialect
	log = log.With(zap.String("dialect", string(dialect)))

	text := msg.TextBody
	attached, errs := attachmentText(msg.Attachments)
	for _, err := range errs {
		log.Debug("ingest: attachment unreadable", zap.String("reason", "attachment_unreadable"), zap.Error(err))
	}
	if attached != "" {
		text = strings.TrimSpace(text + "\n" + attached)
	}

	src := newSource(msg.Subject, msg.HTMLBody, text)
	parsed := parserFor(dialect).parse(src)
	hinted := s.hints.Apply(ctx, dialect, tenantID, src.combined(), &parsed)

	rec := internal.ShipmentRecord{
		TenantID:      tenantID,
		MessageID:     msg.MessageID,
		ThreadID:      msg.ThreadID,
		Dialect:       dialect,
		Status:        internal.StatusNew,
		Subject:       msg.Subject,
		SenderAddress: msg.FromAddress,
		ReceivedAt:    msg.ReceivedAt,
	}
	parsed.ApplyTo(&rec)
	s.geocodeShipment(ctx, log, mailbox, &rec)

	id, inserted, err := s.store.InsertShipment(ctx, rec)
	if err != nil {
		log.Error("ingest: message skipped", zap.String("reason", "insert_failed"), zap.Error(err))
		return OutcomeFailed
	}
	if !inserted {
		log.Info("ingest: message skipped", zap.String("reason", "duplicate_on_insert"))
		return OutcomeDuplicate
	}
	rec.ID = id

	log.Info("ingest: shipment stored",
		zap.Int64("shipment_id", id),
		zap.String("detect_reason", detection.Reason),
		zap.Int("fields", parsed.FieldCount()),
		zap.Int("hint_fields", hinted),
		zap.Bool("geocoded", rec.Pickup != nil))

	s.enqueueFollowUps(ctx, log, rec)
	return OutcomeIngested
}

// geocodeShipment sets pickup coordinates, and delivery coordinates when
// enabled. A postal-only endpoint is backfilled with the provider's city and
// state. Misses leave the coordinates nil.
func (s *IngestService) geocodeShipment(ctx context.Context, log *zap.Logger, caller string, rec *internal.ShipmentRecord) {
	if s.geocoder == nil {
		return
	}
	rec.Pickup = s.geocodeEndpoint(ctx, caller, &rec.OriginCity, &rec.OriginState, rec.OriginPostal)
	if rec.Pickup == nil {
		log.Debug("ingest: pickup not geocoded", zap.String("reason", "geocode_miss"))
	}
	if s.cfg.GeocodeDelivery {
		rec.Delivery = s.geocodeEndpoint(ctx, caller, &rec.DestinationCity, &rec.DestinationState, rec.DestinationPostal)
	}
}

func (s *IngestService) geocodeEndpoint(ctx context.Context, caller string, city, state **string, postal *string) *internal.Coordinates {
	if *city != nil {
		if c, ok := s.geocoder.Lookup(ctx, caller, util.Deref(*city), util.Deref(*state)); ok {
			return &c
		}
	}
	if postal == nil {
		return nil
	}
	place, ok := s.geocoder.LookupPostal(ctx, caller, *postal)
	if !ok {
		return nil
	}
	if *city == nil {
		*city = util.NonEmpty(place.City)
	}
	if *state == nil {
		*state = util.NonEmpty(place.State)
	}
	return &place.Coordinates
}

func (s *IngestService) enqueueFollowUps(ctx context.Context, log *zap.Logger, rec internal.ShipmentRecord) {
	if s.queue == nil {
		return
	}
	if c, ok := customerFromShipment(rec); ok {
		if err := s.queue.Submit(ctx, customerTask(s.store, c, s.logger)); err != nil {
			log.Warn("ingest: customer upsert not queued", zap.String("reason", "enqueue_failed"), zap.Error(err))
		}
	}
	if err := s.queue.Submit(ctx, MatchTask(s.matcher, rec)); err != nil {
		log.Warn("ingest: matching not queued", zap.String("reason", "enqueue_failed"), zap.Error(err))
	}
}

// MatchTask wraps a matcher run for the background queue.
func MatchTask(m *Matcher, rec internal.ShipmentRecord) tasks.Task {
	return tasks.Task{
		Name: "hunt_match",
		Run: func(ctx context.Context) error {
			_, err := m.Match(ctx, rec)
			return err
		},
	}
}

// Matcher exposes the service's matcher for re-runs.
func (s *IngestService) Matcher() *Matcher {
	return s.matcher
}

func (s *IngestService) messageTimeout() time.Duration {
	if s.cfg.MessageTimeout > 0 {
		return s.cfg.MessageTimeout
	}
	return 45 * time.Second
}
