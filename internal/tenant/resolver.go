package tenant

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"loadhunt/internal"
)

// ErrUnresolved means no tenant owns the mailbox. Callers must abort the
// batch before writing anything.
var ErrUnresolved = eris.New("tenant: mailbox not mapped to a tenant")

const auditKind = "tenant_unresolved"

type Store interface {
	MailboxTenant(ctx context.Context, mailbox string) (string, error)
	EnabledIntegrations(ctx context.Context) ([]internal.Integration, error)
	InsertAuditEvent(ctx context.Context, kind, subject, reason, traceID string) error
}

type Resolver struct {
	store  Store
	logger *zap.Logger
}

func NewResolver(store Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve maps a mailbox to its tenant. The stored mailbox mapping wins; then
// an enabled integration whose settings name the mailbox; then the sole
// enabled integration when there is exactly one and it names no mailbox.
// Anything else fails closed and leaves an audit row keyed by traceID.
func (r *Resolver) Resolve(ctx context.Context, mailbox, traceID string) (string, error) {
	mailbox = strings.ToLower(strings.TrimSpace(mailbox))
	if mailbox == "" {
		return "", r.fail(ctx, mailbox, "empty mailbox identity", traceID)
	}

	tenantID, err := r.store.MailboxTenant(ctx, mailbox)
	if err != nil {
		return "", eris.Wrap(err, "tenant: mailbox lookup")
	}
	if tenantID != "" {
		return tenantID, nil
	}

	integrations, err := r.store.EnabledIntegrations(ctx)
	if err != nil {
		return "", eris.Wrap(err, "tenant: integration lookup")
	}
	for _, in := range integrations {
		if strings.EqualFold(strings.TrimSpace(in.Mailbox), mailbox) {
			return in.TenantID, nil
		}
	}
	// The sole integration only counts when it names no mailbox; one that
	// names a different mailbox belongs to someone else.
	if len(integrations) == 1 && strings.TrimSpace(integrations[0].Mailbox) == "" {
		r.logger.Info("tenant resolved from sole integration",
			zap.String("mailbox", mailbox),
			zap.String("tenant_id", integrations[0].TenantID),
		)
		return integrations[0].TenantID, nil
	}

	reason := "no mailbox mapping"
	switch {
	case len(integrations) > 1:
		reason = "ambiguous integrations"
	case len(integrations) == 1:
		reason = "sole integration names another mailbox"
	}
	return "", r.fail(ctx, mailbox, reason, traceID)
}

func (r *Resolver) fail(ctx context.Context, mailbox, reason, traceID string) error {
	r.logger.Warn("tenant unresolved",
		zap.String("reason", reason),
		zap.String("mailbox", mailbox),
		zap.String("trace_id", traceID),
	)
	if err := r.store.InsertAuditEvent(ctx, auditKind, mailbox, reason, traceID); err != nil {
		r.logger.Error("audit write failed", zap.Error(err))
	}
	return eris.Wrapf(ErrUnresolved, "%s (%s)", mailbox, reason)
}
