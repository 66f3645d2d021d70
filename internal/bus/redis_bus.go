package bus

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Ashfaaq98/enrich-console/internal/logger"
)

// streamMaxLen caps each stream; trimming is approximate.
const streamMaxLen = 10000

// RedisBus publishes console activity to Redis Streams
type RedisBus struct {
	client        *redis.Client
	verdictStream string
	sessionStream string
	log           *logger.Logger
}

// VerdictMessage is published whenever an indicator's worst verdict class changes
type VerdictMessage struct {
	SessionID string `json:"session_id"`
	JobID     string `json:"job_id,omitempty"`
	IOCValue  string `json:"ioc_value"`
	IOCType   string `json:"ioc_type"`
	Verdict   string `json:"verdict"`
	Provider  string `json:"provider"`
	Summary   string `json:"summary"`
	Timestamp int64  `json:"timestamp"`
}

// SessionMessage is published when a session starts or completes
type SessionMessage struct {
	SessionID string `json:"session_id"`
	JobID     string `json:"job_id,omitempty"`
	State     string `json:"state"` // "started" or "complete"
	Done      int    `json:"done"`
	Total     int    `json:"total"`
	Timestamp int64  `json:"timestamp"`
}

// NewRedisBus creates a new Redis bus instance
func NewRedisBus(redisURL, stream string, log *logger.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if stream == "" {
		stream = DefaultVerdictStream
	}

	return &RedisBus{
		client:        client,
		verdictStream: stream,
		sessionStream: stream + ":sessions",
		log:           logger.OrDiscard(log),
	}, nil
}

// Close closes the Redis connection
func (rb *RedisBus) Close() error {
	return rb.client.Close()
}

// PublishVerdict publishes a verdict change to the verdict stream
func (rb *RedisBus) PublishVerdict(ctx context.Context, msg VerdictMessage) error {
	result := rb.client.XAdd(ctx, &redis.XAddArgs{
		Stream: rb.verdictStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: verdictFields(msg),
	})
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to publish verdict: %w", err)
	}

	rb.log.WithFields(logger.Fields{
		"stream":    rb.verdictStream,
		"ioc_value": msg.IOCValue,
		"verdict":   msg.Verdict,
	}).Debug("published verdict")
	return nil
}

// PublishSession publishes a session lifecycle event
func (rb *RedisBus) PublishSession(ctx context.Context, msg SessionMessage) error {
	result := rb.client.XAdd(ctx, &redis.XAddArgs{
		Stream: rb.sessionStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: sessionFields(msg),
	})
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to publish session event: %w", err)
	}
	return nil
}

func verdictFields(msg VerdictMessage) map[string]interface{} {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	return map[string]interface{}{
		"session_id": msg.SessionID,
		"job_id":     msg.JobID,
		"ioc_value":  msg.IOCValue,
		"ioc_type":   msg.IOCType,
		"verdict":    msg.Verdict,
		"provider":   msg.Provider,
		"summary":    msg.Summary,
		"timestamp":  strconv.FormatInt(msg.Timestamp, 10),
	}
}

func sessionFields(msg SessionMessage) map[string]interface{} {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	return map[string]interface{}{
		"session_id": msg.SessionID,
		"job_id":     msg.JobID,
		"state":      msg.State,
		"done":       strconv.Itoa(msg.Done),
		"total":      strconv.Itoa(msg.Total),
		"timestamp":  strconv.FormatInt(msg.Timestamp, 10),
	}
}

// GetStreamInfo returns information about a stream
func (rb *RedisBus) GetStreamInfo(ctx context.Context, stream string) (*redis.XInfoStream, error) {
	result := rb.client.XInfoStream(ctx, stream)
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to get stream info for %s: %w", stream, err)
	}
	return result.Val(), nil
}

// HealthCheck performs a health check on the Redis connection
func (rb *RedisBus) HealthCheck(ctx context.Context) error {
	return rb.client.Ping(ctx).Err()
}

// GetStats returns basic statistics about the Redis streams
func (rb *RedisBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"type": "redis"}

	for key, stream := range map[string]string{
		"verdict_stream": rb.verdictStream,
		"session_stream": rb.sessionStream,
	} {
		if info, err := rb.GetStreamInfo(ctx, stream); err == nil {
			stats[key] = map[string]interface{}{
				"name":          stream,
				"length":        info.Length,
				"last_entry_id": info.LastEntry.ID,
			}
		}
	}

	return stats, nil
}

// Streams returns the verdict and session stream names.
func (rb *RedisBus) Streams() []string {
	return []string{rb.verdictStream, rb.sessionStream}
}

// Purge deletes the console's streams and returns how many existed.
func (rb *RedisBus) Purge(ctx context.Context) (int64, error) {
	n, err := rb.client.Del(ctx, rb.Streams()...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete streams: %w", err)
	}
	rb.log.WithFields(logger.Fields{"streams": rb.Streams(), "deleted": n}).Info("purged streams")
	return n, nil
}
