package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/exstem-ingest/internal/config"
	"github.com/stemsi/exstem-ingest/internal/model"
)

// PersistedMarkerTTL is how long a persisted batch stays visible to status
// queries.
const PersistedMarkerTTL = 24 * time.Hour

// CommitQueue is the Redis list between the import service and the
// CommitWorker.
type CommitQueue struct {
	rdb *redis.Client
}

// NewCommitQueue creates a new CommitQueue.
func NewCommitQueue(rdb *redis.Client) *CommitQueue {
	return &CommitQueue{rdb: rdb}
}

// Enqueue appends a committed payload.
func (q *CommitQueue) Enqueue(ctx context.Context, p *model.CommitPayload) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return q.rdb.RPush(ctx, config.WorkerKey.PersistImportCommitsQueue, raw).Err()
}

// DeadLetter parks a payload that kept failing to persist. Items stay in the
// list until an operator replays or discards them.
func (q *CommitQueue) DeadLetter(ctx context.Context, p *model.CommitPayload) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return q.rdb.RPush(ctx, config.WorkerKey.PersistImportCommitsDeadLetter, raw).Err()
}

// Pop waits up to timeout for the next payload. A timeout yields (nil, nil).
func (q *CommitQueue) Pop(ctx context.Context, timeout time.Duration) (*model.CommitPayload, error) {
	item, err := q.rdb.BLPop(ctx, timeout, config.WorkerKey.PersistImportCommitsQueue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(item) < 2 {
		return nil, nil
	}
	var p model.CommitPayload
	if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return &p, nil
}

// MarkPersisted flags the batches as written.
func (q *CommitQueue) MarkPersisted(ctx context.Context, ids []uuid.UUID) error {
	pipe := q.rdb.Pipeline()
	for _, id := range ids {
		pipe.Set(ctx, config.CacheKey.ImportBatchKey(id.String()), 1, PersistedMarkerTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Persisted reports whether the batch was marked as written.
func (q *CommitQueue) Persisted(ctx context.Context, batchID uuid.UUID) (bool, error) {
	n, err := q.rdb.Exists(ctx, config.CacheKey.ImportBatchKey(batchID.String())).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
