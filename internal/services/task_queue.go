package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/studymate/backend/pkg/logger"

	"github.com/hibiken/asynq"
	"github.com/studymate/backend/internal/config"
)

const (
	TaskTypeUsage = "usage:record"
)

// TaskQueue defines the interface for usage event processing. Recording goes
// through the queue so bucket updates are applied off the request path and,
// in sync mode, one at a time.
type TaskQueue interface {
	// Enqueue adds a usage event to the queue
	Enqueue(event *UsageEvent) error
	// IsAsync returns true if the queue processes events asynchronously via Redis
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// Global task queue instance
var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Infof("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
				globalTaskQueue = NewSyncQueue()
			} else {
				logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalTaskQueue = queue
			}
		} else {
			logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
			globalTaskQueue = NewSyncQueue()
		}
	})
	return globalTaskQueue
}

// GetTaskQueue returns the global task queue instance
func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	// Test connection by pinging Redis
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	_, err := inspector.Queues()
	if err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

// Enqueue adds a usage event to the async queue
func (q *AsyncQueue) Enqueue(event *UsageEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeUsage, payload)
	info, err := q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("id", info.ID).Str("queue", info.Queue).Msg("usage event enqueued")
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

// SyncQueue implements TaskQueue without Redis: events are handed to the
// processor on a single background goroutine, which also serializes bucket
// updates within the process.
type SyncQueue struct {
	processor func(context.Context, *UsageEvent) error
	events    chan *UsageEvent
	done      chan struct{}
	closeOnce sync.Once
}

// NewSyncQueue creates a new in-process queue
func NewSyncQueue() *SyncQueue {
	q := &SyncQueue{
		events: make(chan *UsageEvent, 256),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// SetProcessor sets the function that applies usage events
func (q *SyncQueue) SetProcessor(processor func(context.Context, *UsageEvent) error) {
	q.processor = processor
}

func (q *SyncQueue) run() {
	for event := range q.events {
		if q.processor == nil {
			logger.Infof("[SyncQueue] Warning: no processor set, event dropped")
			continue
		}
		if err := q.processor(context.Background(), event); err != nil {
			logger.Infof("[SyncQueue] Usage event processing failed: %v", err)
		}
	}
	close(q.done)
}

// Enqueue hands the event to the background goroutine. A full buffer drops
// the event rather than blocking the request path.
func (q *SyncQueue) Enqueue(event *UsageEvent) error {
	select {
	case q.events <- event:
	default:
		logger.Infof("[SyncQueue] Buffer full, usage event dropped")
	}
	return nil
}

// IsAsync returns false for sync queue
func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close drains pending events and stops the background goroutine
func (q *SyncQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.events)
		<-q.done
	})
	return nil
}
