package notification

import (
	"context"
	"time"
)

// LogStore persists delivery logs. Implementations live in infra/store/.
type LogStore interface {
	// Create inserts a new log and fills in its ID and timestamps.
	Create(ctx context.Context, log *DeliveryLog) error

	// GetByID returns nil, nil if no record is found.
	GetByID(ctx context.Context, id string) (*DeliveryLog, error)

	// GetByIdempotencyKey returns nil, nil if no record is found.
	GetByIdempotencyKey(ctx context.Context, key string) (*DeliveryLog, error)

	// Update writes a state change to an existing log.
	Update(ctx context.Context, id string, update LogUpdate) error

	// List returns one page of logs and the total match count.
	List(ctx context.Context, filter ListFilter) ([]*DeliveryLog, int, error)

	// ListStale returns logs stuck in queued/processing since before olderThan.
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*DeliveryLog, error)
}
