package healthcheck

import "context"

// Pinger is the slice of pgxpool.Pool the postgres probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PostgresChecker reports whether the database answers a ping.
type PostgresChecker struct {
	pool Pinger
}

func NewPostgresChecker(pool Pinger) *PostgresChecker {
	return &PostgresChecker{pool: pool}
}

func (c *PostgresChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Component: "postgres", Status: StatusOK}
	if err := c.pool.Ping(ctx); err != nil {
		res.Status = StatusError
		res.Detail = err.Error()
	}
	return res
}
