package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/businessgohq/bridge/internal/db"
	"github.com/businessgohq/bridge/internal/ids"
)

// Entry is one structured audit record tagged with the conversation origin.
type Entry struct {
	ID          string
	TenantID    int64
	Origin      string
	ActorRef    string
	WorkflowRef string
	Detail      string
	At          time.Time
}

// Sink accepts audit entries. Writes are best-effort for callers: failures
// are logged upstream, never propagated into message routing.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// PGSink appends audit entries to the audit_entries table.
type PGSink struct {
	dbtx   db.DBTX
	logger *slog.Logger
}

func NewPGSink(log *slog.Logger, dbtx db.DBTX) *PGSink {
	if log == nil {
		log = slog.Default()
	}
	return &PGSink{
		dbtx:   dbtx,
		logger: log.With(slog.String("service", "audit")),
	}
}

func (s *PGSink) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	_, err := s.dbtx.Exec(ctx,
		`INSERT INTO audit_entries (id, tenant_id, origin, actor_ref, workflow_ref, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.TenantID, e.Origin, db.ToPgText(e.ActorRef), db.ToPgText(e.WorkflowRef), db.ToPgText(e.Detail), e.At)
	return err
}

// LogSink writes audit entries to the structured log. Used when no database
// is configured and as a development fallback.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{logger: log.With(slog.String("service", "audit"))}
}

func (s *LogSink) Record(_ context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	s.logger.Info("audit entry",
		slog.String("id", e.ID),
		slog.Int64("tenant_id", e.TenantID),
		slog.String("origin", e.Origin),
		slog.String("actor_ref", e.ActorRef),
		slog.String("workflow_ref", e.WorkflowRef),
		slog.String("detail", e.Detail),
	)
	return nil
}
