package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/businessgohq/bridge/internal/db"
)

// PGStore persists tokens in the business_tokens table.
type PGStore struct {
	db db.DBTX
}

func NewPGStore(dbtx db.DBTX) *PGStore {
	return &PGStore{db: dbtx}
}

func (p *PGStore) Save(ctx context.Context, t BusinessToken) error {
	operatorID, err := db.ParseUUID(t.OperatorID)
	if err != nil {
		return fmt.Errorf("parse operator id: %w", err)
	}
	query := `
		INSERT INTO business_tokens (token, operator_id, tenant_id, expires_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := p.db.Exec(ctx, query, t.Token, operatorID, t.TenantID, t.ExpiresAt); err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (p *PGStore) Find(ctx context.Context, token string) (BusinessToken, error) {
	query := `
		SELECT token, operator_id::text, tenant_id, expires_at
		FROM business_tokens
		WHERE token = $1`
	var t BusinessToken
	err := p.db.QueryRow(ctx, query, token).Scan(&t.Token, &t.OperatorID, &t.TenantID, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BusinessToken{}, ErrTokenNotFound
		}
		return BusinessToken{}, fmt.Errorf("query token: %w", err)
	}
	return t, nil
}

func (p *PGStore) Delete(ctx context.Context, token string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM business_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (p *PGStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM business_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
