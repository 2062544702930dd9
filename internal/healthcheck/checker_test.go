package healthcheck

import (
	"context"
	"errors"
	"testing"
	"time"
)

type staticChecker struct {
	result CheckResult
}

func (c *staticChecker) Check(ctx context.Context) CheckResult {
	return c.result
}

type deadlineChecker struct {
	sawDeadline bool
}

func (c *deadlineChecker) Check(ctx context.Context) CheckResult {
	_, c.sawDeadline = ctx.Deadline()
	return CheckResult{Component: "deadline", Status: StatusOK}
}

type fakePool struct {
	err error
}

func (p *fakePool) Ping(ctx context.Context) error {
	return p.err
}

func TestWorst(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		statuses []string
		want     string
	}{
		{name: "empty", statuses: nil, want: StatusOK},
		{name: "all ok", statuses: []string{StatusOK, StatusOK}, want: StatusOK},
		{name: "warn wins over ok", statuses: []string{StatusOK, StatusWarn}, want: StatusWarn},
		{name: "error wins over warn", statuses: []string{StatusWarn, StatusError, StatusOK}, want: StatusError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results := make([]CheckResult, 0, len(tc.statuses))
			for _, s := range tc.statuses {
				results = append(results, CheckResult{Status: s})
			}
			if got := Worst(results); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestRunBoundsEachProbe(t *testing.T) {
	t.Parallel()

	dc := &deadlineChecker{}
	results := Run(context.Background(), 50*time.Millisecond, []Checker{dc})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !dc.sawDeadline {
		t.Fatal("expected probe context to carry a deadline")
	}
}

func TestRunKeepsCheckerOrder(t *testing.T) {
	t.Parallel()

	checkers := []Checker{
		&staticChecker{result: CheckResult{Component: "postgres", Status: StatusOK}},
		&staticChecker{result: CheckResult{Component: "intake", Status: StatusWarn}},
	}
	results := Run(context.Background(), 0, checkers)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Component != "postgres" || results[1].Component != "intake" {
		t.Fatalf("unexpected order: %s, %s", results[0].Component, results[1].Component)
	}
}

func TestPostgresChecker(t *testing.T) {
	t.Parallel()

	ok := NewPostgresChecker(&fakePool{}).Check(context.Background())
	if ok.Status != StatusOK {
		t.Fatalf("expected ok, got %s", ok.Status)
	}
	if ok.Component != "postgres" {
		t.Fatalf("unexpected component: %s", ok.Component)
	}

	down := NewPostgresChecker(&fakePool{err: errors.New("connection refused")}).Check(context.Background())
	if down.Status != StatusError {
		t.Fatalf("expected error, got %s", down.Status)
	}
	if down.Detail != "connection refused" {
		t.Fatalf("unexpected detail: %s", down.Detail)
	}
}

func TestIntakeCheckerWarnsOnBacklog(t *testing.T) {
	t.Parallel()

	pending := 0
	checker := NewIntakeChecker(func() int { return pending }, 10)

	res := checker.Check(context.Background())
	if res.Status != StatusOK {
		t.Fatalf("expected ok, got %s", res.Status)
	}

	pending = 10
	res = checker.Check(context.Background())
	if res.Status != StatusWarn {
		t.Fatalf("expected warn at threshold, got %s", res.Status)
	}
	if res.Detail != "10 messages queued" {
		t.Fatalf("unexpected detail: %s", res.Detail)
	}
}
