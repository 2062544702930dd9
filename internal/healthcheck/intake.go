package healthcheck

import (
	"context"
	"fmt"
)

const defaultBacklogWarn = 100

// IntakeChecker watches the inbound dispatch backlog. A deep backlog
// means processing is not keeping up with webhook arrivals.
type IntakeChecker struct {
	pending func() int
	warnAt  int
}

// NewIntakeChecker builds a checker over a backlog counter. warnAt <= 0
// selects the default threshold.
func NewIntakeChecker(pending func() int, warnAt int) *IntakeChecker {
	if warnAt <= 0 {
		warnAt = defaultBacklogWarn
	}
	return &IntakeChecker{pending: pending, warnAt: warnAt}
}

func (c *IntakeChecker) Check(ctx context.Context) CheckResult {
	n := c.pending()
	res := CheckResult{
		Component: "intake",
		Status:    StatusOK,
		Detail:    fmt.Sprintf("%d messages queued", n),
	}
	if n >= c.warnAt {
		res.Status = StatusWarn
	}
	return res
}
