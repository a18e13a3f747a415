package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
	"github.com/hibiken/asynq"
)

const (
	TaskTypeEmail = "email:send"

	// Account mail (credentials, resets) is weighted ahead of activity mail.
	QueueAccountMail  = "mail:account"
	QueueActivityMail = "mail:activity"

	emailTaskTimeout = 30 * time.Second
	emailMaxRetry    = 5
)

// queueFor routes an email kind to its asynq queue.
func queueFor(kind string) string {
	switch kind {
	case "welcome", "password_reset":
		return QueueAccountMail
	default:
		return QueueActivityMail
	}
}

// EmailTask is one outbound message waiting for delivery.
type EmailTask struct {
	Kind    string   `json:"kind"` // welcome, password_reset, project_submitted, ...
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// TaskQueue defines the interface for background email delivery
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *EmailTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// NewTaskQueue picks the Redis queue when enabled and reachable, otherwise
// the in-process fallback driven by processor.
func NewTaskQueue(cfg *config.RedisConfig, processor func(context.Context, *EmailTask) error) TaskQueue {
	if cfg.Enabled {
		queue, err := NewAsyncQueue(cfg)
		if err == nil {
			logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Addr)
			return queue
		}
		logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
	} else {
		logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
	}
	q := NewSyncQueue()
	q.SetProcessor(processor)
	return q
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := redisOpt(cfg)

	client := asynq.NewClient(redisOpt)

	// Verify the connection before committing to async mode.
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// Enqueue adds an email task to the async queue
func (q *AsyncQueue) Enqueue(task *EmailTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeEmail, payload)
	info, err := q.client.Enqueue(t,
		asynq.Queue(queueFor(task.Kind)),
		asynq.MaxRetry(emailMaxRetry),
		asynq.Timeout(emailTaskTimeout),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Str("kind", task.Kind).Msg("[AsyncQueue] email enqueued")
	return nil
}

// IsAsync returns true for async queue
func (q *AsyncQueue) IsAsync() bool {
	return true
}

// Close closes the async queue client
func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue delivers tasks in-process when Redis is not configured. At most
// syncQueueWorkers deliveries run at once; Close waits for those in flight.
type SyncQueue struct {
	processor func(context.Context, *EmailTask) error
	slots     chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	closed    bool
}

const (
	syncQueueWorkers = 4
	syncDrainTimeout = 15 * time.Second
)

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{slots: make(chan struct{}, syncQueueWorkers)}
}

func (q *SyncQueue) SetProcessor(processor func(context.Context, *EmailTask) error) {
	q.processor = processor
}

// Enqueue hands the task to a background delivery without blocking the request.
func (q *SyncQueue) Enqueue(task *EmailTask) error {
	if q.processor == nil {
		logger.Warnf("[SyncQueue] no processor set, %s email to %v dropped", task.Kind, task.To)
		return nil
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.New("task queue closed")
	}
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()
		q.slots <- struct{}{}
		defer func() { <-q.slots }()

		ctx, cancel := context.WithTimeout(context.Background(), emailTaskTimeout)
		defer cancel()
		if err := q.processor(ctx, task); err != nil {
			logger.Warnf("[SyncQueue] %s email failed: %v", task.Kind, err)
		}
	}()
	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close rejects new tasks and waits up to syncDrainTimeout for pending ones.
func (q *SyncQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(syncDrainTimeout):
		return errors.New("timed out waiting for pending emails")
	}
}
