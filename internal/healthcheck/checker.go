// Package healthcheck probes the runtime dependencies the bridge needs
// to accept and process traffic.
package healthcheck

import (
	"context"
	"time"
)

const (
	// StatusOK indicates the component is serving.
	StatusOK = "ok"
	// StatusWarn indicates the component is degraded but usable.
	StatusWarn = "warn"
	// StatusError indicates the component is down.
	StatusError = "error"
)

const defaultProbeTimeout = 5 * time.Second

// CheckResult is the outcome of probing one component.
type CheckResult struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
}

// Checker probes a single component.
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// Run executes every checker in order, bounding each probe so one stuck
// dependency cannot hang the health endpoint.
func Run(ctx context.Context, timeout time.Duration, checkers []Checker) []CheckResult {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	results := make([]CheckResult, 0, len(checkers))
	for _, checker := range checkers {
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		results = append(results, checker.Check(probeCtx))
		cancel()
	}
	return results
}

// Worst collapses results into a single status.
func Worst(results []CheckResult) string {
	worst := StatusOK
	for _, r := range results {
		switch r.Status {
		case StatusError:
			return StatusError
		case StatusWarn:
			worst = StatusWarn
		}
	}
	return worst
}
