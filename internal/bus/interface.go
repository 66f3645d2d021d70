package bus

import (
	"context"

	"github.com/Ashfaaq98/enrich-console/internal/logger"
)

// DefaultVerdictStream is the stream verdict changes are published to.
const DefaultVerdictStream = "ioc_verdicts"

// Bus defines the interface for verdict fan-out implementations
type Bus interface {
	// PublishVerdict publishes an indicator's new worst verdict
	PublishVerdict(ctx context.Context, msg VerdictMessage) error

	// PublishSession publishes a session lifecycle event
	PublishSession(ctx context.Context, msg SessionMessage) error

	// GetStats returns basic statistics about the bus
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// HealthCheck performs a health check on the bus connection
	HealthCheck(ctx context.Context) error

	// Close closes the bus connection
	Close() error
}

// NewBus creates a new bus instance based on the Redis URL
// If redisURL is empty or unreachable, returns a NullBus
func NewBus(redisURL, stream string, log *logger.Logger) Bus {
	log = logger.OrDiscard(log)

	if redisURL == "" {
		return NewNullBus(log)
	}

	redisBus, err := NewRedisBus(redisURL, stream, log)
	if err == nil {
		return redisBus
	}

	log.WithComponent("bus").WithError(err).Warn("redis unavailable, verdict publishing disabled")
	return NewNullBus(log)
}
