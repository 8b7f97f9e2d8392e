package dispatch

import "context"

// StatsRepository exposes queue depth counters for the monitoring surface.
type StatsRepository interface {
	Stats(ctx context.Context) (Stats, error)
}
