// Package admin manages the panel accounts that operate the bridge.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"

	"github.com/businessgohq/bridge/internal/db"
)

// ErrAdminNotFound is returned when no admin user matches the lookup.
var ErrAdminNotFound = errors.New("admin user not found")

// AdminUser is a panel account allowed to call the admin endpoints.
type AdminUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}

// Service provides admin account lookup and bootstrap.
type Service struct {
	db  db.DBTX
	log *slog.Logger
}

// NewService creates an admin service.
func NewService(logger *slog.Logger, database db.DBTX) *Service {
	return &Service{
		db:  database,
		log: logger.With(slog.String("service", "admin")),
	}
}

// GetByEmail loads an admin user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (AdminUser, error) {
	query := `SELECT id, email, password_hash FROM admin_users WHERE email = $1`
	var (
		id   pgtype.UUID
		user AdminUser
	)
	err := s.db.QueryRow(ctx, query, strings.TrimSpace(email)).Scan(&id, &user.Email, &user.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return AdminUser{}, ErrAdminNotFound
	}
	if err != nil {
		return AdminUser{}, fmt.Errorf("load admin user: %w", err)
	}
	user.ID = uuid.UUID(id.Bytes).String()
	return user, nil
}

// EnsureBootstrap creates the configured admin account when the table is
// empty. Existing accounts are left untouched so password changes survive
// restarts.
func (s *Service) EnsureBootstrap(ctx context.Context, email, password string) error {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&count); err != nil {
		return fmt.Errorf("count admin users: %w", err)
	}
	if count > 0 {
		s.log.Debug("admin user already exists, skipping bootstrap")
		return nil
	}
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return errors.New("admin email/password required in config.toml")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	query := `INSERT INTO admin_users (id, email, password_hash) VALUES ($1, $2, $3)`
	id := uuid.NewString()
	if _, err := s.db.Exec(ctx, query, id, email, string(hashed)); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	s.log.Info("admin user created", slog.String("email", email))
	return nil
}

// VerifyPassword checks a plaintext password against the stored hash.
func (s *Service) VerifyPassword(user AdminUser, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}
