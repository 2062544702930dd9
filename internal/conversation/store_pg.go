package conversation

import (
	"context"
	"fmt"

	"github.com/businessgohq/bridge/internal/db"
)

// PGStore persists records in the conversation_messages table.
type PGStore struct {
	db db.DBTX
}

func NewPGStore(dbtx db.DBTX) *PGStore {
	return &PGStore{db: dbtx}
}

func (p *PGStore) Append(ctx context.Context, r Record) error {
	query := `
		INSERT INTO conversation_messages
			(ref, tenant_id, phone, direction, origin, body, transport_id, actor_ref, workflow_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := p.db.Exec(ctx, query,
		r.Ref, r.TenantID, r.Phone, string(r.Direction), string(r.Origin),
		r.Body, db.ToPgText(r.TransportID), db.ToPgText(r.ActorRef), db.ToPgText(r.WorkflowRef), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation message: %w", err)
	}
	return nil
}

func (p *PGStore) ListRecent(ctx context.Context, tenantID int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ref, tenant_id, phone, direction, origin, body,
			COALESCE(transport_id, ''), COALESCE(actor_ref, ''), COALESCE(workflow_ref, ''), created_at
		FROM conversation_messages
		WHERE tenant_id = $1
		ORDER BY created_at DESC, ref DESC
		LIMIT $2`
	rows, err := p.db.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversation messages: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		err := rows.Scan(
			&r.Ref, &r.TenantID, &r.Phone, &r.Direction, &r.Origin,
			&r.Body, &r.TransportID, &r.ActorRef, &r.WorkflowRef, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan conversation message: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation messages: %w", err)
	}
	return out, nil
}
