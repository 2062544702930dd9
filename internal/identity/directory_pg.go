package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/businessgohq/bridge/internal/db"
)

// PGDirectory resolves operators from the relational directory tables.
type PGDirectory struct {
	db db.DBTX
}

func NewPGDirectory(dbtx db.DBTX) *PGDirectory {
	return &PGDirectory{db: dbtx}
}

// FindOperatorByPhone loads an active operator and its active memberships.
// Membership order is stable: oldest grant first, tenant id as tie-breaker.
func (d *PGDirectory) FindOperatorByPhone(ctx context.Context, phone string) (OperatorRecord, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return OperatorRecord{}, ErrOperatorNotFound
	}

	query := `
		SELECT id, phone, display_name
		FROM operators
		WHERE phone = $1 AND is_active = true`

	var (
		id          pgtype.UUID
		phoneCol    string
		displayName pgtype.Text
	)
	err := d.db.QueryRow(ctx, query, phone).Scan(&id, &phoneCol, &displayName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OperatorRecord{}, ErrOperatorNotFound
		}
		return OperatorRecord{}, fmt.Errorf("query operator: %w", err)
	}

	record := OperatorRecord{
		ID:          uuid.UUID(id.Bytes).String(),
		Phone:       phoneCol,
		DisplayName: db.TextToString(displayName),
	}

	memberships, err := d.listMemberships(ctx, id)
	if err != nil {
		return OperatorRecord{}, err
	}
	record.Memberships = memberships
	return record, nil
}

func (d *PGDirectory) listMemberships(ctx context.Context, operatorID pgtype.UUID) ([]Membership, error) {
	query := `
		SELECT tm.tenant_id, t.name, tm.role, tm.is_owner
		FROM tenant_members tm
		JOIN tenants t ON t.id = tm.tenant_id
		WHERE tm.operator_id = $1 AND tm.is_active = true AND t.is_active = true
		ORDER BY tm.created_at, tm.tenant_id`

	rows, err := d.db.Query(ctx, query, operatorID)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var (
			m    Membership
			role pgtype.Text
		)
		if err := rows.Scan(&m.TenantID, &m.TenantName, &role, &m.IsOwner); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		m.Role = db.TextToString(role)
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return memberships, nil
}

// HasActiveMembership reports whether the operator still holds an active
// grant on the tenant. Business calls re-check this on every request.
func (d *PGDirectory) HasActiveMembership(ctx context.Context, operatorID string, tenantID int64) (bool, error) {
	pgID, err := db.ParseUUID(operatorID)
	if err != nil {
		return false, fmt.Errorf("parse operator id: %w", err)
	}

	query := `
		SELECT EXISTS (
			SELECT 1
			FROM tenant_members tm
			JOIN tenants t ON t.id = tm.tenant_id
			WHERE tm.operator_id = $1 AND tm.tenant_id = $2
			  AND tm.is_active = true AND t.is_active = true
		)`

	var exists bool
	if err := d.db.QueryRow(ctx, query, pgID, tenantID).Scan(&exists); err != nil {
		return false, fmt.Errorf("query membership: %w", err)
	}
	return exists, nil
}
