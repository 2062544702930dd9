package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/businessgohq/bridge/internal/db"
)

// PGStore persists sessions in the auth_sessions table so challenges
// survive restarts.
type PGStore struct {
	db db.DBTX
}

func NewPGStore(dbtx db.DBTX) *PGStore {
	return &PGStore{db: dbtx}
}

const sessionColumns = `phone, code, attempts, verified, tenant_id, pending_tenants, expires_at, updated_at`

func (p *PGStore) Get(ctx context.Context, phone string) (Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM auth_sessions WHERE phone = $1`
	s, err := scanSession(p.db.QueryRow(ctx, query, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("query session: %w", err)
	}
	return s, nil
}

func (p *PGStore) Put(ctx context.Context, s Session) error {
	query := `
		INSERT INTO auth_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (phone) DO UPDATE SET
			code = EXCLUDED.code,
			attempts = EXCLUDED.attempts,
			verified = EXCLUDED.verified,
			tenant_id = EXCLUDED.tenant_id,
			pending_tenants = EXCLUDED.pending_tenants,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`

	tenantID := pgtype.Int8{Int64: s.TenantID, Valid: s.TenantID != 0}
	_, err := p.db.Exec(ctx, query,
		s.Phone, s.Code, s.Attempts, s.Verified,
		tenantID, s.PendingTenants, s.ExpiresAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (p *PGStore) Delete(ctx context.Context, phone string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM auth_sessions WHERE phone = $1`, phone)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (p *PGStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM auth_sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *PGStore) List(ctx context.Context) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM auth_sessions ORDER BY updated_at DESC`
	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		s        Session
		tenantID pgtype.Int8
	)
	err := row.Scan(
		&s.Phone, &s.Code, &s.Attempts, &s.Verified,
		&tenantID, &s.PendingTenants, &s.ExpiresAt, &s.UpdatedAt,
	)
	if err != nil {
		return Session{}, err
	}
	if tenantID.Valid {
		s.TenantID = tenantID.Int64
	}
	return s, nil
}
