package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/garyjia/forms-workflow/internal/application/port"
	"github.com/garyjia/forms-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/forms-workflow/internal/domain/workflow"
)

const defaultStream = "workflow:process-started"

// RedisOptions configures the Redis stream transport
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Timeout  time.Duration
}

// RedisNotifier appends process-started messages to a Redis stream
type RedisNotifier struct {
	client  *redis.Client
	stream  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisNotifier creates a notifier. It does not connect until first use.
func NewRedisNotifier(opts RedisOptions, logger *zap.Logger) *RedisNotifier {
	if opts.Stream == "" {
		opts.Stream = defaultStream
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.Timeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
		MaxRetries:   -1,
	})
	return &RedisNotifier{
		client:  client,
		stream:  opts.Stream,
		timeout: opts.Timeout,
		logger:  logger,
	}
}

// NotifyStarted appends msg to the stream once
func (n *RedisNotifier) NotifyStarted(ctx context.Context, msg entity.ProcessStarted) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	id, err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]interface{}{
			"submissionId": msg.SubmissionID,
			"formSlug":     msg.FormSlug,
			"submittedBy":  msg.SubmittedBy,
		},
	}).Result()
	if err != nil {
		n.logger.Warn("Failed to notify orchestrator",
			zap.String("submission_id", msg.SubmissionID),
			zap.String("stream", n.stream),
			zap.Error(fmt.Errorf("%w: %v", domainwf.ErrNotifierFailure, err)))
		return
	}
	n.logger.Debug("Orchestrator notified",
		zap.String("submission_id", msg.SubmissionID),
		zap.String("entry_id", id))
}

// HealthCheck pings Redis
func (n *RedisNotifier) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	return n.client.Ping(ctx).Err() == nil
}

// Gateway returns the stream address as redis://addr/stream
func (n *RedisNotifier) Gateway() string {
	return fmt.Sprintf("redis://%s/%s", n.client.Options().Addr, n.stream)
}

// Close releases the Redis connection pool
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

var _ port.ProcessNotifier = (*RedisNotifier)(nil)
