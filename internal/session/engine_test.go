package session

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

func newTestEngine(t *testing.T) (*Engine, *MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	cfg := Config{
		CodeLength:  6,
		CodeTTL:     10 * time.Minute,
		SessionTTL:  time.Hour,
		MaxAttempts: 3,
	}
	return NewEngine(nil, store, cfg, WithClock(clock.Now)), store, clock
}

func TestIssueCodeCreatesChallenge(t *testing.T) {
	engine, store, clock := newTestEngine(t)
	ctx := context.Background()

	code, err := engine.IssueCode(ctx, "51987654321")
	if err != nil {
		t.Fatalf("IssueCode() error = %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code length = %d, want 6", len(code))
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("code %q contains non-digit %q", code, r)
		}
	}

	s, err := store.Get(ctx, "51987654321")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s.Verified {
		t.Fatal("fresh challenge must not be verified")
	}
	if got, want := s.ExpiresAt, clock.Now().Add(10*time.Minute); !got.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", got, want)
	}
}

func TestIssueCodeReplacesSessionWhole(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	phone := "51987654321"

	code, err := engine.IssueCode(ctx, phone)
	if err != nil {
		t.Fatalf("IssueCode() error = %v", err)
	}
	if _, err := engine.SubmitCode(ctx, phone, code, []int64{7}); err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}

	if _, err := engine.IssueCode(ctx, phone); err != nil {
		t.Fatalf("second IssueCode() error = %v", err)
	}
	s, err := store.Get(ctx, phone)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s.Verified || s.TenantID != 0 || s.Attempts != 0 {
		t.Fatalf("reissued session carried old state: %+v", s)
	}
}

func TestSubmitCodeSingleTenantSelectsImmediately(t *testing.T) {
	engine, _, clock := newTestEngine(t)
	ctx := context.Background()
	phone := "51987654321"

	code, err := engine.IssueCode(ctx, phone)
	if err != nil {
		t.Fatalf("IssueCode() error = %v", err)
	}
	s, err := engine.SubmitCode(ctx, phone, code, []int64{7})
	if err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	if !s.Verified {
		t.Fatal("session must be verified after correct code")
	}
	if s.TenantID != 7 {
		t.Fatalf("TenantID = %d, want 7", s.TenantID)
	}
	if len(s.PendingTenants) != 0 {
		t.Fatalf("PendingTenants = %v, want none", s.PendingTenants)
	}
	if !s.Authenticated() {
		t.Fatal("Authenticated() = false after single-tenant verification")
	}
	if got, want := s.ExpiresAt, clock.Now().Add(time.Hour); !got.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want session TTL %v", got, want)
	}
}

func TestSubmitCodeMultiTenantPendsSelection(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	phone := "51987654321"

	code, err := engine.IssueCode(ctx, phone)
	if err != nil {
		t.Fatalf("IssueCode() error = %v", err)
	}
	s, err := engine.SubmitCode(ctx, phone, code, []int64{10, 20})
	if err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	if !s.Verified || s.TenantID != 0 {
		t.Fatalf("session = %+v, want verified without tenant", s)
	}
	if len(s.PendingTenants) != 2 || s.PendingTenants[0] != 10 || s.PendingTenants[1] != 20 {
		t.Fatalf("PendingTenants = %v, want [10 20]", s.PendingTenants)
	}
	if s.Authenticated() {
		t.Fatal("Authenticated() = true while tenant selection pending")
	}
	if s.StateAt(time.Date(2026, 3, 14, 9, 0, 1, 0, time.UTC)) != StateTenantSelectionPending {
		t.Fatalf("StateAt() = %q, want pending selection", s.StateAt(time.Now()))
	}
}

func TestSelectTenantByPosition(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	phone := "51987654321"

	code, _ := engine.IssueCode(ctx, phone)
	if _, err := engine.SubmitCode(ctx, phone, code, []int64{10, 20}); err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}

	s, err := engine.SelectTenant(ctx, phone, "2")
	if err != nil {
		t.Fatalf("SelectTenant() error = %v", err)
	}
	if s.TenantID != 20 {
		t.Fatalf("TenantID = %d, want 20 for position 2", s.TenantID)
	}
	if !s.Authenticated() {
		t.Fatal("Authenticated() = false after selection")
	}
}

func TestSelectTenantByTenantID(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	phone := "51987654321"

	code, _ := engine.IssueCode(ctx, phone)
	if _, err := engine.SubmitCode(ctx, phone, code, []int64{10, 20}); err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}

	s, err := engine.SelectTenant(ctx, phone, "10")
	if err != nil {
		t.Fatalf("SelectTenant() error = %v", err)
	}
	if s.TenantID != 10 {
		t.Fatalf("TenantID = %d, want literal id 10", s.TenantID)
	}
}

func TestSelectTenantRejectsUnknownChoice(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	phone := "51987654321"

	code, _ := engine.IssueCode(ctx, phone)
	if _, err := engine.SubmitCode(ctx, phone, code, []int64{10, 20}); err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}

	if _, err := engine.SelectTenant(ctx, phone, "5"); !errors.Is(err, ErrInvalidTenantChoice) {
		t.Fatalf("error = %v, want ErrInvalidTenantChoice", err)
	}
	if _, err := engine.SelectTenant(ctx, phone, "listo"); !errors.Is(err, ErrInvalidTenantChoice) {
		t.Fatalf("error = %v, want ErrInvalidTenantChoice for non-numeric", err)
	}

	s, err := store.Get(ctx, phone)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s.TenantID != 0 || len(s.PendingTenants) != 2 {
		t.Fatalf("session mutated by invalid choice: %+v", s)
	}
}

func TestSelectTenantWithoutPendingChoice(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	phone := "51987654321"

	code, _ := engine.IssueCode(ctx, phone)
	if _, err := engine.SubmitCode(ctx, phone, code, []int64{7}); err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	if _, err := engine.SelectTenant(ctx, phone, "1"); !errors.Is(err, ErrNoTenantChoice) {
		t.Fatalf("error = %v, want ErrNoTenantChoice", err)
	}
}

func seedChallenge(t *testing.T, store Store, clock *fakeClock, phone, code string) {
	t.Helper()
	err := store.Put(context.Background(), Session{
		Phone:     phone,
		Code:      code,
		ExpiresAt: clock.Now().Add(10 * time.Minute),
		UpdatedAt: clock.Now(),
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func TestSubmitCodeMismatchKeepsSession(t *testing.T) {
	engine, store, clock := newTestEngine(t)
	ctx := context.Background()
	phone := "51987654321"
	seedChallenge(t, store, clock, phone, "482913")

	clock.Advance(time.Minute)
	s, err := engine.SubmitCode(ctx, phone, "111111", []int64{7})
	if !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("error = %v, want ErrCodeMismatch", err)
	}
	if s.Attempts != 1 {
		t.Fatalf("Attempts = %d, want 1", s.Attempts)
	}

	clock.Advance(time.Minute)
	s, err = engine.SubmitCode(ctx, phone, "482913", []int64{7})
	if err != nil {
		t.Fatalf("correct code after one miss: error = %v", err)
	}
	if !s.Verified {
		t.Fatal("session must verify while attempts remain")
	}
	// Verification restarts the clock: the session now lives a full TTL
	// from the moment the code landed, not from when it was issued.
	if got, want := s.ExpiresAt, clock.Now().Add(time.Hour); !got.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", got, want)
	}
}

func TestSubmitCodeLockoutAfterMaxAttempts(t *testing.T) {
	engine, store, clock := newTestEngine(t)
	ctx := context.Background()
	phone := "51987654321"
	seedChallenge(t, store, clock, phone, "482913")

	for i := 0; i < 2; i++ {
		if _, err := engine.SubmitCode(ctx, phone, "111111", []int64{7}); !errors.Is(err, ErrCodeMismatch) {
			t.Fatalf("attempt %d: error = %v, want ErrCodeMismatch", i+1, err)
		}
	}
	if _, err := engine.SubmitCode(ctx, phone, "111111", []int64{7}); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("third miss: error = %v, want ErrTooManyAttempts", err)
	}

	// The discarded challenge is gone; even the right code cannot revive it.
	if _, err := engine.SubmitCode(ctx, phone, "482913", []int64{7}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("post-lockout submit: error = %v, want ErrSessionNotFound", err)
	}
}

func TestSubmitCodeAtAttemptLimitLocksOutCorrectCode(t *testing.T) {
	engine, store, clock := newTestEngine(t)
	ctx := context.Background()
	phone := "51987654321"

	// A stored session can already sit at the limit, e.g. when a prior
	// eviction was lost. The correct code must not slip through.
	err := store.Put(ctx, Session{
		Phone:     phone,
		Code:      "482913",
		Attempts:  3,
		ExpiresAt: clock.Now().Add(10 * time.Minute),
		UpdatedAt: clock.Now(),
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}

	if _, err := engine.SubmitCode(ctx, phone, "482913", []int64{7}); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("error = %v, want ErrTooManyAttempts", err)
	}
	if _, err := store.Get(ctx, phone); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("locked session not evicted: %v", err)
	}
}

func TestSubmitCodeExpiredChallenge(t *testing.T) {
	engine, store, clock := newTestEngine(t)
	ctx := context.Background()
	phone := "51987654321"

	code, _ := engine.IssueCode(ctx, phone)
	clock.Advance(11 * time.Minute)

	s, err := engine.SubmitCode(ctx, phone, code, []int64{7})
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("error = %v, want ErrSessionExpired", err)
	}
	if s.Verified {
		t.Fatal("stale challenge reported as verified")
	}
	if _, err := store.Get(ctx, phone); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expired session not evicted: %v", err)
	}
}

func TestCurrentDistinguishesVerifiedExpiry(t *testing.T) {
	engine, _, clock := newTestEngine(t)
	ctx := context.Background()
	phone := "51987654321"

	code, _ := engine.IssueCode(ctx, phone)
	if _, err := engine.SubmitCode(ctx, phone, code, []int64{7}); err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	clock.Advance(2 * time.Hour)

	s, err := engine.Current(ctx, phone)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("error = %v, want ErrSessionExpired", err)
	}
	if !s.Verified {
		t.Fatal("stale session lost verified flag; caller cannot phrase expiry")
	}

	// Lazy eviction: the next read sees nothing.
	if _, err := engine.Current(ctx, phone); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second read: error = %v, want ErrSessionNotFound", err)
	}
}

func TestLogout(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	phone := "51987654321"

	code, _ := engine.IssueCode(ctx, phone)
	if _, err := engine.SubmitCode(ctx, phone, code, []int64{7}); err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	if err := engine.Logout(ctx, phone); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := engine.Current(ctx, phone); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("session survived logout: %v", err)
	}
	if err := engine.Logout(ctx, phone); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("repeat logout: error = %v, want ErrSessionNotFound", err)
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	engine, store, clock := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.IssueCode(ctx, "51911111111"); err != nil {
		t.Fatalf("IssueCode() error = %v", err)
	}
	clock.Advance(9 * time.Minute)
	if _, err := engine.IssueCode(ctx, "51922222222"); err != nil {
		t.Fatalf("IssueCode() error = %v", err)
	}
	clock.Advance(2 * time.Minute)

	removed, err := engine.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := store.Get(ctx, "51911111111"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("first session should be swept: %v", err)
	}
	if _, err := store.Get(ctx, "51922222222"); err != nil {
		t.Fatalf("second session should survive: %v", err)
	}
}
