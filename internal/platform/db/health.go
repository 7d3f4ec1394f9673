package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthStatus describes the health of the database connection pool.
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	Latency      time.Duration `json:"latency_ms"`
	TotalConns   int32         `json:"total_conns"`
	IdleConns    int32         `json:"idle_conns"`
	AcquireCount int64         `json:"acquire_count"`
	Error        string        `json:"error,omitempty"`
}

// CheckHealth pings the database and collects pool statistics.
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := pool.Ping(ctx)
	latency := time.Since(start)

	stats := pool.Stat()
	status := HealthStatus{
		Healthy:      err == nil,
		Latency:      latency / time.Millisecond,
		TotalConns:   stats.TotalConns(),
		IdleConns:    stats.IdleConns(),
		AcquireCount: stats.AcquireCount(),
	}
	if err != nil {
		status.Error = err.Error()
	}

	return status
}
