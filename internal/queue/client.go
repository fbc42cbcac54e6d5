package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/pullsense/pullsense/consts"
	"github.com/pullsense/pullsense/pkg/errors"
	"github.com/pullsense/pullsense/pkg/logger"
)

const (
	// DefaultMaxRetry bounds broker redeliveries per job.
	DefaultMaxRetry = 3

	// DefaultJobTimeout is the ceiling for one analysis run.
	DefaultJobTimeout = 5 * time.Minute
)

// Enqueuer dispatches analysis jobs. Satisfied by Client; handlers
// depend on this interface so tests can stub dispatch.
type Enqueuer interface {
	EnqueueAnalysis(ctx context.Context, prID uint) (string, error)
}

// Client enqueues analysis tasks on the Redis broker.
type Client struct {
	inner    *asynq.Client
	maxRetry int
	timeout  time.Duration
}

// ClientOptions tune per-task broker behavior. Zero values fall back to
// the package defaults.
type ClientOptions struct {
	MaxRetry int
	Timeout  time.Duration
}

// NewClient connects to the broker at redisURL.
func NewClient(redisURL string, opts ClientOptions) (*Client, error) {
	conn, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "invalid broker URL", err)
	}
	return newClient(asynq.NewClient(conn), opts), nil
}

// NewClientFromRedisOpt wraps an existing broker connection, used by tests.
func NewClientFromRedisOpt(conn asynq.RedisConnOpt, opts ClientOptions) *Client {
	return newClient(asynq.NewClient(conn), opts)
}

func newClient(inner *asynq.Client, opts ClientOptions) *Client {
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = DefaultMaxRetry
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultJobTimeout
	}
	return &Client{inner: inner, maxRetry: opts.MaxRetry, timeout: opts.Timeout}
}

// EnqueueAnalysis dispatches an analysis job for the PR row and returns
// the broker task id.
func (c *Client) EnqueueAnalysis(ctx context.Context, prID uint) (string, error) {
	task, err := NewAnalysisTask(prID)
	if err != nil {
		return "", err
	}

	info, err := c.inner.EnqueueContext(ctx, task,
		asynq.Queue(consts.AnalysisQueue),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(c.timeout),
	)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeEnqueue, "failed to enqueue analysis task", err)
	}

	logger.Info("analysis task enqueued",
		zap.Uint(logger.FieldPRID, prID),
		zap.String("task_id", info.ID))
	return info.ID, nil
}

// Close releases the broker connection.
func (c *Client) Close() error {
	return c.inner.Close()
}
