package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
	"github.com/hibiken/asynq"
)

const (
	workerConcurrency = 5
	maxRetryDelay     = 10 * time.Minute
)

// Worker drains the Redis email queues and hands each task to processor.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor func(context.Context, *EmailTask) error
	running   bool
	mu        sync.Mutex
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig, processor func(context.Context, *EmailTask) error) *Worker {
	if !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: workerConcurrency,
			Queues: map[string]int{
				QueueAccountMail:  3,
				QueueActivityMail: 1,
			},
			RetryDelayFunc: emailRetryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Warn().Err(err).
					Str("type", task.Type()).
					Int("retry", retried).
					Int("max_retry", maxRetry).
					Msg("[Worker] email delivery failed")
			}),
		},
	)

	w := &Worker{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: processor,
	}
	w.mux.HandleFunc(TaskTypeEmail, w.handleEmailTask)
	return w
}

// emailRetryDelay backs off 30s, 1m, 2m, ... up to maxRetryDelay.
func emailRetryDelay(n int, err error, task *asynq.Task) time.Duration {
	if n > 10 {
		return maxRetryDelay
	}
	d := 30 * time.Second << n
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	w.running = true
	logger.Info().Int("concurrency", workerConcurrency).Msg("[Worker] email worker started")
	return nil
}

// Stop waits for in-flight deliveries before returning.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.server.Shutdown()
	w.running = false
	logger.Info().Msg("[Worker] email worker stopped")
}

func (w *Worker) handleEmailTask(ctx context.Context, t *asynq.Task) error {
	var task EmailTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("decode email task: %v: %w", err, asynq.SkipRetry)
	}
	if len(task.To) == 0 {
		return fmt.Errorf("email task %q has no recipients: %w", task.Kind, asynq.SkipRetry)
	}
	if w.processor == nil {
		return fmt.Errorf("no email processor configured: %w", asynq.SkipRetry)
	}
	return w.processor(ctx, &task)
}
