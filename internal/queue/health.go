package queue

import (
	"context"
	"fmt"
)

// Degradation thresholds for queue depth.
const (
	maxHealthyPending    = 1000
	maxHealthyDeadLetter = 50
)

// Health statuses.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// Health is the result of a queue health probe.
type Health struct {
	Status  string   `json:"status"`
	Reasons []string `json:"reasons,omitempty"`
	Stats   Stats    `json:"stats"`
}

// Classify grades queue stats against depth thresholds.
func Classify(stats Stats) Health {
	health := Health{Status: HealthHealthy, Stats: stats}
	if stats.Pending > maxHealthyPending {
		health.Status = HealthDegraded
		health.Reasons = append(health.Reasons,
			fmt.Sprintf("pending backlog %d exceeds %d", stats.Pending, maxHealthyPending))
	}
	if stats.DeadLetter > maxHealthyDeadLetter {
		health.Status = HealthDegraded
		health.Reasons = append(health.Reasons,
			fmt.Sprintf("dead letter count %d exceeds %d", stats.DeadLetter, maxHealthyDeadLetter))
	}
	return health
}

// CheckHealth probes the store and grades the live stats. An unreachable
// store reports unhealthy rather than an error.
func (s *Store) CheckHealth(ctx context.Context) Health {
	if err := s.Ping(ctx); err != nil {
		return Health{
			Status:  HealthUnhealthy,
			Reasons: []string{fmt.Sprintf("redis unreachable: %v", err)},
		}
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return Health{
			Status:  HealthUnhealthy,
			Reasons: []string{fmt.Sprintf("reading stats: %v", err)},
		}
	}
	return Classify(stats)
}
