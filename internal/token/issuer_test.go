package token

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestIssuer(t *testing.T) (*Issuer, *MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	return NewIssuer(nil, store, 15*time.Minute, WithClock(clock.Now)), store, clock
}

const operatorID = "8d6bce38-52a7-4a3e-90cd-1d1a7f7210aa"

func TestMintValidateRoundTrip(t *testing.T) {
	issuer, _, clock := newTestIssuer(t)
	ctx := context.Background()

	minted, err := issuer.Mint(ctx, operatorID, 10)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if minted.Token == "" {
		t.Fatal("minted token is empty")
	}
	if got, want := minted.ExpiresAt, clock.Now().Add(15*time.Minute); !got.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", got, want)
	}

	got, err := issuer.Validate(ctx, minted.Token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got.OperatorID != operatorID || got.TenantID != 10 {
		t.Fatalf("grant = %+v, want operator %s tenant 10", got, operatorID)
	}
}

func TestValidateUnknownToken(t *testing.T) {
	issuer, _, _ := newTestIssuer(t)

	if _, err := issuer.Validate(context.Background(), "not-a-token"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("error = %v, want ErrTokenNotFound", err)
	}
	if _, err := issuer.Validate(context.Background(), "  "); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("blank token: error = %v, want ErrTokenNotFound", err)
	}
}

func TestValidateExpiredTokenEvicts(t *testing.T) {
	issuer, store, clock := newTestIssuer(t)
	ctx := context.Background()

	minted, err := issuer.Mint(ctx, operatorID, 10)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	clock.Advance(16 * time.Minute)

	if _, err := issuer.Validate(ctx, minted.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("error = %v, want ErrTokenExpired", err)
	}
	// Lazy eviction: the record is gone, a replay now reads as unknown.
	if _, err := store.Find(ctx, minted.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expired token not evicted: %v", err)
	}
	if _, err := issuer.Validate(ctx, minted.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("replay: error = %v, want ErrTokenNotFound", err)
	}
}

func TestMintKeepsEarlierTokensValid(t *testing.T) {
	issuer, _, _ := newTestIssuer(t)
	ctx := context.Background()

	first, err := issuer.Mint(ctx, operatorID, 10)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	second, err := issuer.Mint(ctx, operatorID, 10)
	if err != nil {
		t.Fatalf("second Mint() error = %v", err)
	}
	if first.Token == second.Token {
		t.Fatal("consecutive mints produced the same token")
	}
	if _, err := issuer.Validate(ctx, first.Token); err != nil {
		t.Fatalf("first token invalidated by re-mint: %v", err)
	}
	if _, err := issuer.Validate(ctx, second.Token); err != nil {
		t.Fatalf("second token: %v", err)
	}
}

func TestMintUniqueness(t *testing.T) {
	issuer, _, _ := newTestIssuer(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		minted, err := issuer.Mint(ctx, operatorID, 10)
		if err != nil {
			t.Fatalf("Mint() error = %v", err)
		}
		if seen[minted.Token] {
			t.Fatalf("duplicate token at mint %d", i)
		}
		seen[minted.Token] = true
	}
}

func TestInvalidate(t *testing.T) {
	issuer, _, _ := newTestIssuer(t)
	ctx := context.Background()

	minted, err := issuer.Mint(ctx, operatorID, 10)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if err := issuer.Invalidate(ctx, minted.Token); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, err := issuer.Validate(ctx, minted.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("error = %v, want ErrTokenNotFound after invalidate", err)
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	issuer, _, clock := newTestIssuer(t)
	ctx := context.Background()

	stale, err := issuer.Mint(ctx, operatorID, 10)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	clock.Advance(10 * time.Minute)
	fresh, err := issuer.Mint(ctx, operatorID, 20)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	clock.Advance(6 * time.Minute)

	removed, err := issuer.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := issuer.Validate(ctx, stale.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("stale token should be swept: %v", err)
	}
	if _, err := issuer.Validate(ctx, fresh.Token); err != nil {
		t.Fatalf("fresh token should survive sweep: %v", err)
	}
}
