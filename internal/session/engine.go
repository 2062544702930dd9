package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/businessgohq/bridge/internal/obs"
)

var (
	// ErrSessionExpired is returned together with the stale session so the
	// caller can tell a lapsed code from a lapsed authenticated session.
	ErrSessionExpired = errors.New("session expired")

	ErrCodeMismatch        = errors.New("code mismatch")
	ErrTooManyAttempts     = errors.New("too many failed attempts")
	ErrNoTenantChoice      = errors.New("no tenant selection pending")
	ErrInvalidTenantChoice = errors.New("invalid tenant selection")
)

// Config carries the challenge tuning knobs. Zero values fall back to
// the defaults below.
type Config struct {
	CodeLength  int
	CodeTTL     time.Duration
	SessionTTL  time.Duration
	MaxAttempts int
}

// Engine drives the per-phone challenge lifecycle: issue a code, count
// verification attempts, then hold the verified session until it expires
// or the operator logs out.
type Engine struct {
	store       Store
	logger      *slog.Logger
	codeLength  int
	codeTTL     time.Duration
	sessionTTL  time.Duration
	maxAttempts int
	now         func() time.Time
}

type Option func(*Engine)

// WithClock overrides the engine time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(log *slog.Logger, store Store, cfg Config, opts ...Option) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		store:       store,
		logger:      log.With(slog.String("service", "session")),
		codeLength:  cfg.CodeLength,
		codeTTL:     cfg.CodeTTL,
		sessionTTL:  cfg.SessionTTL,
		maxAttempts: cfg.MaxAttempts,
		now:         time.Now,
	}
	if e.codeLength <= 0 {
		e.codeLength = 6
	}
	if e.codeTTL <= 0 {
		e.codeTTL = 10 * time.Minute
	}
	if e.sessionTTL <= 0 {
		e.sessionTTL = time.Hour
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = 3
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) MaxAttempts() int { return e.maxAttempts }

// IssueCode starts a fresh challenge for the phone. Any previous session
// is replaced whole, never merged.
func (e *Engine) IssueCode(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", fmt.Errorf("phone is required")
	}
	code, err := generateCode(e.codeLength)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	now := e.now()
	s := Session{
		Phone:     phone,
		Code:      code,
		ExpiresAt: now.Add(e.codeTTL),
		UpdatedAt: now,
	}
	if err := e.store.Put(ctx, s); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	obs.AuthTransitions.WithLabelValues("code_issued").Inc()
	e.logger.Info("challenge code issued", slog.String("phone", phone))
	return code, nil
}

// Current returns the live session for the phone. Expired sessions are
// evicted on read and returned alongside ErrSessionExpired.
func (e *Engine) Current(ctx context.Context, phone string) (Session, error) {
	s, err := e.store.Get(ctx, phone)
	if err != nil {
		return Session{}, err
	}
	if s.ExpiredAt(e.now()) {
		e.evict(ctx, phone)
		obs.AuthTransitions.WithLabelValues("expired").Inc()
		return s, ErrSessionExpired
	}
	return s, nil
}

// SubmitCode checks a candidate code against the pending challenge. On a
// match the session flips to verified with a fresh TTL; tenants drives
// what happens next: a single membership is selected immediately, several
// leave the session waiting for a tenant choice.
func (e *Engine) SubmitCode(ctx context.Context, phone, candidate string, tenants []int64) (Session, error) {
	s, err := e.store.Get(ctx, phone)
	if err != nil {
		return Session{}, err
	}
	now := e.now()
	if s.ExpiredAt(now) {
		e.evict(ctx, phone)
		obs.AuthTransitions.WithLabelValues("expired").Inc()
		return s, ErrSessionExpired
	}
	if s.Verified {
		return s, nil
	}
	if s.Attempts >= e.maxAttempts {
		e.evict(ctx, phone)
		obs.AuthTransitions.WithLabelValues("locked_out").Inc()
		return Session{}, ErrTooManyAttempts
	}

	candidate = strings.TrimSpace(candidate)
	if subtle.ConstantTimeCompare([]byte(s.Code), []byte(candidate)) != 1 {
		s.Attempts++
		s.UpdatedAt = now
		if s.Attempts >= e.maxAttempts {
			e.evict(ctx, phone)
			obs.AuthTransitions.WithLabelValues("locked_out").Inc()
			return Session{}, ErrTooManyAttempts
		}
		if err := e.store.Put(ctx, s); err != nil {
			return Session{}, fmt.Errorf("store session: %w", err)
		}
		obs.AuthTransitions.WithLabelValues("mismatch").Inc()
		return s, ErrCodeMismatch
	}

	s.Verified = true
	s.Code = ""
	s.Attempts = 0
	s.ExpiresAt = now.Add(e.sessionTTL)
	s.UpdatedAt = now
	switch len(tenants) {
	case 0:
		s.TenantID = 0
		s.PendingTenants = nil
	case 1:
		s.TenantID = tenants[0]
		s.PendingTenants = nil
	default:
		s.TenantID = 0
		s.PendingTenants = append([]int64(nil), tenants...)
	}
	if err := e.store.Put(ctx, s); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	obs.AuthTransitions.WithLabelValues("verified").Inc()
	e.logger.Info("session verified", slog.String("phone", phone), slog.Int("tenants", len(tenants)))
	return s, nil
}

// SelectTenant resolves a pending tenant choice. The input is matched as
// a 1-based position in the offered list first, then as a literal tenant
// id. An unrecognized input leaves the session untouched.
func (e *Engine) SelectTenant(ctx context.Context, phone, choice string) (Session, error) {
	s, err := e.store.Get(ctx, phone)
	if err != nil {
		return Session{}, err
	}
	now := e.now()
	if s.ExpiredAt(now) {
		e.evict(ctx, phone)
		obs.AuthTransitions.WithLabelValues("expired").Inc()
		return s, ErrSessionExpired
	}
	if !s.Verified || len(s.PendingTenants) == 0 {
		return s, ErrNoTenantChoice
	}

	n, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil {
		return s, ErrInvalidTenantChoice
	}
	var selected int64
	if n >= 1 && n <= len(s.PendingTenants) {
		selected = s.PendingTenants[n-1]
	} else {
		for _, id := range s.PendingTenants {
			if id == int64(n) {
				selected = id
				break
			}
		}
	}
	if selected == 0 {
		return s, ErrInvalidTenantChoice
	}

	s.TenantID = selected
	s.PendingTenants = nil
	s.UpdatedAt = now
	if err := e.store.Put(ctx, s); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	obs.AuthTransitions.WithLabelValues("tenant_selected").Inc()
	e.logger.Info("tenant selected", slog.String("phone", phone), slog.Int64("tenant_id", selected))
	return s, nil
}

// Logout removes the session. Returns ErrSessionNotFound when there was
// nothing to remove.
func (e *Engine) Logout(ctx context.Context, phone string) error {
	return e.store.Delete(ctx, phone)
}

// Sessions lists every stored session, expired ones included.
func (e *Engine) Sessions(ctx context.Context) ([]Session, error) {
	return e.store.List(ctx)
}

// Now reports the engine clock, so callers can derive session states
// consistent with expiry decisions.
func (e *Engine) Now() time.Time { return e.now() }

// Sweep removes every expired session and reports how many were dropped.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	removed, err := e.store.DeleteExpired(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	if removed > 0 {
		e.logger.Info("expired sessions removed", slog.Int("count", removed))
	}
	return removed, nil
}

func (e *Engine) evict(ctx context.Context, phone string) {
	if err := e.store.Delete(ctx, phone); err != nil && !errors.Is(err, ErrSessionNotFound) {
		e.logger.Warn("evict session failed", slog.String("phone", phone), slog.Any("error", err))
	}
}

func generateCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
