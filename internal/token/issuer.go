package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/businessgohq/bridge/internal/obs"
)

// ErrTokenExpired marks a token that existed but outlived its TTL. The
// stale record is evicted before the error is returned.
var ErrTokenExpired = errors.New("token expired")

const tokenBytes = 32

// Issuer mints and validates opaque business tokens. Tokens carry no
// claims; everything hangs off the stored record, so invalidation is a
// store delete.
type Issuer struct {
	store  Store
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Issuer)

// WithClock overrides the issuer time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(log *slog.Logger, store Store, ttl time.Duration, opts ...Option) *Issuer {
	if log == nil {
		log = slog.Default()
	}
	i := &Issuer{
		store:  store,
		logger: log.With(slog.String("service", "token")),
		ttl:    ttl,
		now:    time.Now,
	}
	if i.ttl <= 0 {
		i.ttl = 15 * time.Minute
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Mint issues a fresh token for the operator acting inside the tenant.
// Earlier tokens for the same operator stay valid until their own expiry.
func (i *Issuer) Mint(ctx context.Context, operatorID string, tenantID int64) (BusinessToken, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return BusinessToken{}, fmt.Errorf("generate token: %w", err)
	}
	t := BusinessToken{
		Token:      base64.RawURLEncoding.EncodeToString(raw),
		OperatorID: operatorID,
		TenantID:   tenantID,
		ExpiresAt:  i.now().Add(i.ttl),
	}
	if err := i.store.Save(ctx, t); err != nil {
		return BusinessToken{}, fmt.Errorf("store token: %w", err)
	}
	obs.TokensMinted.Inc()
	return t, nil
}

// Validate resolves a presented token to its grant. Expired tokens are
// evicted on read and reported as ErrTokenExpired.
func (i *Issuer) Validate(ctx context.Context, raw string) (BusinessToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return BusinessToken{}, ErrTokenNotFound
	}
	t, err := i.store.Find(ctx, raw)
	if err != nil {
		return BusinessToken{}, err
	}
	if t.ExpiredAt(i.now()) {
		if err := i.store.Delete(ctx, raw); err != nil && !errors.Is(err, ErrTokenNotFound) {
			i.logger.Warn("evict expired token failed", slog.Any("error", err))
		}
		return BusinessToken{}, ErrTokenExpired
	}
	return t, nil
}

// Invalidate removes a token ahead of its expiry.
func (i *Issuer) Invalidate(ctx context.Context, raw string) error {
	return i.store.Delete(ctx, strings.TrimSpace(raw))
}

// Sweep removes every expired token and reports how many were dropped.
func (i *Issuer) Sweep(ctx context.Context) (int, error) {
	removed, err := i.store.DeleteExpired(ctx, i.now())
	if err != nil {
		return 0, fmt.Errorf("sweep tokens: %w", err)
	}
	if removed > 0 {
		i.logger.Info("expired tokens removed", slog.Int("count", removed))
	}
	return removed, nil
}
