package queue

import (
	"fmt"
	"time"

	"ordermail/internal/domain/notification"

	"github.com/hibiken/asynq"
)

// QueueName is the asynq queue deliveries are enqueued on.
const QueueName = "notifications"

var _ notification.Enqueuer = (*Enqueuer)(nil)

// NewClient creates a new asynq client connected to Redis.
func NewClient(redisAddr, password string, db int) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
}

// NewServer creates a new asynq server connected to Redis.
func NewServer(redisAddr, password string, db int, concurrency int) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: password,
			DB:       db,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueName: 10,
				"default": 1,
			},
			RetryDelayFunc: RetryDelay,
		},
	)
}

// RetryDelay backs off exponentially from 30s: 30s, 60s, 120s, ...
// Only infrastructure failures reach it; delivery failures skip retry.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < 1 {
		n = 1
	}
	return time.Duration(30*(1<<uint(n-1))) * time.Second
}

// Enqueuer adapts an asynq client to notification.Enqueuer.
type Enqueuer struct {
	client   *asynq.Client
	maxRetry int
}

// NewEnqueuer creates an enqueuer that allows maxRetry redeliveries per task.
func NewEnqueuer(client *asynq.Client, maxRetry int) *Enqueuer {
	return &Enqueuer{client: client, maxRetry: maxRetry}
}

// EnqueueDelivery enqueues the deliver task for logID.
func (e *Enqueuer) EnqueueDelivery(logID string) error {
	task, err := notification.NewDeliverTask(logID)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}

	_, err = e.client.Enqueue(task,
		asynq.MaxRetry(e.maxRetry),
		asynq.Queue(QueueName),
	)
	if err != nil {
		return fmt.Errorf("enqueuing task: %w", err)
	}
	return nil
}
