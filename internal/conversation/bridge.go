package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/businessgohq/bridge/internal/audit"
	"github.com/businessgohq/bridge/internal/ids"
	"github.com/businessgohq/bridge/internal/obs"
)

const auditDetailMax = 160

// RecordResult reports what the bridge did with one event.
type RecordResult struct {
	Ref       string
	Duplicate bool
}

// Notifier observes records after they are durably written.
type Notifier interface {
	ConversationRecorded(ctx context.Context, r Record)
}

// Bridge performs the dual write for every bridged message: the
// conversation record first, then the audit entry. The audit write and
// the counters are best effort and never fail a recorded message.
type Bridge struct {
	store    Store
	audit    audit.Sink
	logger   *slog.Logger
	dedup    *dedup
	notifier Notifier
	now      func() time.Time
}

type BridgeOption func(*Bridge)

// WithNotifier attaches a post-write observer.
func WithNotifier(n Notifier) BridgeOption {
	return func(b *Bridge) { b.notifier = n }
}

// WithDedupWindow sets how many transport ids are remembered per tenant.
func WithDedupWindow(capacity int) BridgeOption {
	return func(b *Bridge) { b.dedup = newDedup(capacity) }
}

// WithClock overrides the bridge time source, for tests.
func WithClock(now func() time.Time) BridgeOption {
	return func(b *Bridge) { b.now = now }
}

func NewBridge(log *slog.Logger, store Store, sink audit.Sink, opts ...BridgeOption) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	b := &Bridge{
		store:  store,
		audit:  sink,
		logger: log.With(slog.String("service", "bridge")),
		dedup:  newDedup(0),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RecordInbound persists a customer or operator message arriving from
// the transport.
func (b *Bridge) RecordInbound(ctx context.Context, e Event) (RecordResult, error) {
	return b.record(ctx, e, DirectionInbound, OriginInbound)
}

// RecordManualReply persists an outbound message typed by a person.
func (b *Bridge) RecordManualReply(ctx context.Context, e Event) (RecordResult, error) {
	return b.record(ctx, e, DirectionOutbound, OriginManual)
}

// RecordAutomaticReply persists an outbound message produced by the
// automation engine or the challenge flow.
func (b *Bridge) RecordAutomaticReply(ctx context.Context, e Event) (RecordResult, error) {
	return b.record(ctx, e, DirectionOutbound, OriginAutomatic)
}

// Recent returns the latest records for a tenant, newest first.
func (b *Bridge) Recent(ctx context.Context, tenantID int64, limit int) ([]Record, error) {
	return b.store.ListRecent(ctx, tenantID, limit)
}

func (b *Bridge) record(ctx context.Context, e Event, dir Direction, origin Origin) (RecordResult, error) {
	if e.TenantID == 0 {
		return RecordResult{}, fmt.Errorf("tenant id is required")
	}
	prevRef, fresh := b.dedup.claim(e.TenantID, e.TransportID)
	if !fresh {
		obs.DedupHits.Inc()
		b.logger.Debug("duplicate transport id skipped",
			slog.Int64("tenant_id", e.TenantID),
			slog.String("transport_id", e.TransportID),
		)
		return RecordResult{Ref: prevRef, Duplicate: true}, nil
	}

	r := Record{
		Ref:         ids.New(),
		TenantID:    e.TenantID,
		Phone:       e.Phone,
		Direction:   dir,
		Origin:      origin,
		Body:        e.Body,
		TransportID: e.TransportID,
		ActorRef:    e.ActorRef,
		WorkflowRef: e.WorkflowRef,
		CreatedAt:   b.now(),
	}
	if err := b.store.Append(ctx, r); err != nil {
		// Release the claim so a redelivery can try again.
		b.dedup.forget(e.TenantID, e.TransportID)
		return RecordResult{}, fmt.Errorf("append conversation: %w", err)
	}
	b.dedup.commit(e.TenantID, e.TransportID, r.Ref)
	obs.BridgeWrites.WithLabelValues(string(origin)).Inc()

	if b.audit != nil {
		entry := audit.Entry{
			TenantID:    e.TenantID,
			Origin:      string(origin),
			ActorRef:    e.ActorRef,
			WorkflowRef: e.WorkflowRef,
			Detail:      truncateRunes(e.Body, auditDetailMax),
		}
		if err := b.audit.Record(ctx, entry); err != nil {
			b.logger.Warn("audit write failed",
				slog.Int64("tenant_id", e.TenantID),
				slog.String("ref", r.Ref),
				slog.Any("error", err),
			)
		}
	}
	if b.notifier != nil {
		b.notifier.ConversationRecorded(ctx, r)
	}
	return RecordResult{Ref: r.Ref}, nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
