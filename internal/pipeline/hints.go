package pipeline

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"loadhunt/internal"
	"loadhunt/internal/util"
)

type HintStore interface {
	ActiveHints(ctx context.Context, dialect internal.Dialect, tenantID string) ([]internal.ParserHint, error)
}

// HintOverlay fills fields the dialect parser missed from stored patterns.
// Tenant hints are tried before global ones; a set field is never replaced.
type HintOverlay struct {
	store  HintStore
	logger *zap.Logger
}

func NewHintOverlay(store HintStore, logger *zap.Logger) *HintOverlay {
	return &HintOverlay{store: store, logger: logger}
}

// Apply runs the active hints for dialect against body and returns how many
// fields it filled. It never fails the message.
func (o *HintOverlay) Apply(ctx context.Context, dialect internal.Dialect, tenantID, body string, parsed *ParsedShipment) int {
	hints, err := o.store.ActiveHints(ctx, dialect, tenantID)
	if err != nil {
		o.logger.Warn("hint overlay: load hints",
			zap.String("reason", "hints_unavailable"),
			zap.String("tenant_id", tenantID),
			zap.String("dialect", string(dialect)),
			zap.Error(err))
		return 0
	}

	applied := 0
	for _, h := range hints {
		value, ok := matchHint(h, body)
		if !ok {
			continue
		}
		if parsed.SetField(h.FieldName, value) {
			applied++
			o.logger.Debug("hint overlay: field filled",
				zap.Int64("hint_id", h.ID),
				zap.String("field", h.FieldName))
		}
	}
	return applied
}

// matchHint returns the first capture group, or the whole match when the
// pattern has none. A pattern that does not compile falls back to the text
// between the hint's prefix and suffix.
func matchHint(h internal.ParserHint, body string) (string, bool) {
	re, err := regexp.Compile(h.Pattern)
	if err != nil {
		return between(body, h.Prefix, h.Suffix)
	}
	m := re.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	value := m[0]
	if len(m) > 1 && m[1] != "" {
		value = m[1]
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func between(body, prefix, suffix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	_, start := util.IndexFold(body, prefix)
	if start < 0 {
		return "", false
	}

	rest := body[start:]
	end := strings.IndexByte(rest, '\n')
	if suffix != "" {
		if i, _ := util.IndexFold(rest, suffix); i >= 0 {
			end = i
		}
	}
	if end >= 0 {
		rest = rest[:end]
	}
	value := strings.TrimSpace(rest)
	return value, value != ""
}
