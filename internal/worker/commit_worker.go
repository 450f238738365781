package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ingest/internal/model"
)

const (
	CommitBatchSize    = 20
	CommitBatchTimeout = 2 * time.Second
	CommitPollTimeout  = 1 * time.Second
)

// CommitMaxAttempts is how many failed writes a payload gets before it is
// moved to the dead-letter list.
const CommitMaxAttempts = 5

// ErrBadPayload marks queue items that cannot be decoded. They are dropped.
var ErrBadPayload = errors.New("invalid commit payload")

// Queue is the source of committed payloads.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (*model.CommitPayload, error)
	Enqueue(ctx context.Context, p *model.CommitPayload) error
	DeadLetter(ctx context.Context, p *model.CommitPayload) error
	MarkPersisted(ctx context.Context, ids []uuid.UUID) error
}

// Store writes payloads to the database.
type Store interface {
	SaveBatch(ctx context.Context, payloads []*model.CommitPayload) error
	SaveCommit(ctx context.Context, p *model.CommitPayload) error
}

// CommitWorker drains the commit queue into PostgreSQL in batches.
type CommitWorker struct {
	queue Queue
	store Store
	log   zerolog.Logger
}

func NewCommitWorker(queue Queue, store Store, log zerolog.Logger) *CommitWorker {
	return &CommitWorker{
		queue: queue,
		store: store,
		log:   log.With().Str("component", "commit_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *CommitWorker) Start(ctx context.Context) {
	w.log.Info().Msg("CommitWorker started")

	batch := make([]*model.CommitPayload, 0, CommitBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= CommitBatchSize || time.Since(lastFlush) >= CommitBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			p, err := w.queue.Pop(ctx, CommitPollTimeout)
			if err != nil {
				if errors.Is(err, ErrBadPayload) {
					w.log.Error().Err(err).Msg("Dropping undecodable payload")
				} else if ctx.Err() == nil {
					w.log.Error().Err(err).Msg("Queue pop error")
				}
				continue
			}
			if p == nil {
				continue
			}
			batch = append(batch, p)
		}
	}
}

// ----------------------------------------------------------------
// Batch write with per-commit fallback
// ----------------------------------------------------------------

func (w *CommitWorker) flushSafe(ctx context.Context, batch []*model.CommitPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.store.SaveBatch(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("bulk commit write failed, using fallback")

		written := make([]uuid.UUID, 0, len(batch))
		for _, p := range batch {
			if err := w.store.SaveCommit(ctx, p); err != nil {
				w.retry(ctx, p, err)
				continue
			}
			written = append(written, p.BatchID)
		}
		w.markPersisted(ctx, written)
		return
	}

	ids := make([]uuid.UUID, len(batch))
	for i, p := range batch {
		ids[i] = p.BatchID
	}
	w.markPersisted(ctx, ids)
	w.log.Debug().Int("size", len(batch)).Msg("Commit batch persisted")
}

// retry requeues a payload whose write failed, or dead-letters it once it has
// used up its attempts.
func (w *CommitWorker) retry(ctx context.Context, p *model.CommitPayload, cause error) {
	p.Attempts++
	log := w.log.With().Str("batch_id", p.BatchID.String()).Int("attempts", p.Attempts).Logger()

	if p.Attempts >= CommitMaxAttempts {
		log.Error().Err(cause).Msg("SaveCommit failed too often, moving to dead letter")
		if err := w.queue.DeadLetter(ctx, p); err != nil {
			log.Error().Err(err).Msg("Dead letter failed, payload lost")
		}
		return
	}

	log.Error().Err(cause).Msg("SaveCommit failed, requeueing")
	if err := w.queue.Enqueue(ctx, p); err != nil {
		log.Error().Err(err).Msg("Requeue failed, payload lost")
	}
}

func (w *CommitWorker) markPersisted(ctx context.Context, ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	if err := w.queue.MarkPersisted(ctx, ids); err != nil {
		w.log.Warn().Err(err).Msg("Failed to mark batches persisted")
	}
}
