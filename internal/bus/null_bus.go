package bus

import (
	"context"

	"github.com/Ashfaaq98/enrich-console/internal/logger"
)

// NullBus is a no-op implementation of the bus interface for when Redis is disabled
type NullBus struct {
	log *logger.Logger
}

// NewNullBus creates a new null bus instance
func NewNullBus(log *logger.Logger) *NullBus {
	return &NullBus{log: logger.OrDiscard(log)}
}

// Close is a no-op for null bus
func (nb *NullBus) Close() error {
	return nil
}

// PublishVerdict logs the verdict but doesn't actually publish it
func (nb *NullBus) PublishVerdict(ctx context.Context, msg VerdictMessage) error {
	nb.log.WithFields(logger.Fields{
		"ioc_value": msg.IOCValue,
		"verdict":   msg.Verdict,
	}).Debug("would publish verdict (redis disabled)")
	return nil
}

// PublishSession logs the session event but doesn't actually publish it
func (nb *NullBus) PublishSession(ctx context.Context, msg SessionMessage) error {
	nb.log.WithFields(logger.Fields{
		"session_id": msg.SessionID,
		"state":      msg.State,
	}).Debug("would publish session event (redis disabled)")
	return nil
}

// GetStats returns empty stats for null bus
func (nb *NullBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"type":   "null",
		"status": "disabled",
	}, nil
}

// HealthCheck always returns nil for null bus
func (nb *NullBus) HealthCheck(ctx context.Context) error {
	return nil
}
