package queue

import (
	"context"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/pullsense/pullsense/consts"
	"github.com/pullsense/pullsense/pkg/errors"
	"github.com/pullsense/pullsense/pkg/logger"
)

// DefaultConcurrency is the worker pool size when not configured.
const DefaultConcurrency = 4

// Worker runs the analysis queue consumer.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

// NewWorker builds a consumer for the analysis queue.
func NewWorker(redisURL string, concurrency int, processor *Processor) (*Worker, error) {
	conn, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "invalid broker URL", err)
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	srv := asynq.NewServer(conn, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{consts.AnalysisQueue: 1},
		Logger:      newAsynqLogger(),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePRAnalyze, processor.ProcessTask)

	return &Worker{srv: srv, mux: mux}, nil
}

// Run consumes tasks until ctx is canceled, then drains in-flight jobs.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.srv.Start(w.mux); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to start worker", err)
	}

	<-ctx.Done()
	logger.Info("worker shutting down")
	w.srv.Shutdown()
	return nil
}

// asynqLogger adapts the structured logger to asynq's logging interface.
type asynqLogger struct {
	log *zap.SugaredLogger
}

func newAsynqLogger() *asynqLogger {
	return &asynqLogger{log: logger.Get().WithOptions(zap.AddCallerSkip(2)).Sugar().Named("asynq")}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug(args...) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info(args...) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn(args...) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error(args...) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.log.Fatal(args...) }
