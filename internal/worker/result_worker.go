package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/handgame-backend/internal/config"
	"github.com/stemsi/handgame-backend/internal/model"
	"github.com/stemsi/handgame-backend/internal/repository"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWorker consumes persist_results_queue and stores finished session
// summaries in PostgreSQL.
type ResultWorker struct {
	repo repository.GameResultRepository
	rdb  *redis.Client
	log  zerolog.Logger

	requeue func(ctx context.Context, raw []byte)
}

func NewResultWorker(repo repository.GameResultRepository, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	w := &ResultWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
	w.requeue = func(ctx context.Context, raw []byte) {
		if err := w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw).Err(); err != nil {
			w.log.Error().Err(err).Msg("Requeue failed, result lost")
		}
	}
	return w
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is cancelled, then flushes and drains. Call in a goroutine.
func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*model.GameResult, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			w.drain(context.Background())
			w.log.Info().Msg("ResultWorker stopped")
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			result, err := decodeResult([]byte(item[1]))
			if err != nil {
				w.log.Error().Err(err).Msg("Dropping invalid result payload")
				continue
			}
			batch = append(batch, result)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert with single-row fallback
// ----------------------------------------------------------------

// flushSafe persists batch. If the batch insert fails, rows are retried one
// by one and the ones that still fail go back on the queue.
func (w *ResultWorker) flushSafe(ctx context.Context, batch []*model.GameResult) {
	if len(batch) == 0 {
		return
	}

	err := w.repo.InsertBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Results persisted")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Batch insert failed, using fallback")

	for _, r := range batch {
		if err := w.repo.Insert(ctx, r); err != nil {
			w.log.Error().Err(err).
				Str("session_id", r.SessionID.String()).
				Msg("Insert failed, requeueing")
			raw, _ := json.Marshal(r)
			w.requeue(ctx, raw)
		}
	}
}

// drain persists whatever is still queued before shutdown.
func (w *ResultWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistResultsQueue).Result()
		if err != nil {
			break
		}

		result, err := decodeResult([]byte(raw))
		if err != nil {
			w.log.Error().Err(err).Msg("Drain decode error")
			continue
		}

		if err := w.repo.Insert(ctx, result); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.requeue(ctx, []byte(raw))
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining results")
	}
}

// decodeResult parses and checks a queued result, assigning an id when the
// producer did not.
func decodeResult(raw []byte) (*model.GameResult, error) {
	var r model.GameResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	if r.SessionID == uuid.Nil {
		return nil, errors.New("result has no session_id")
	}
	if r.TotalQuestion < 1 || len(r.Outcomes) != r.TotalQuestion {
		return nil, fmt.Errorf("result for %s has %d outcomes for %d questions", r.SessionID, len(r.Outcomes), r.TotalQuestion)
	}
	// Results queued before riddles were recorded carry none.
	if len(r.Riddles) != 0 && len(r.Riddles) != r.TotalQuestion {
		return nil, fmt.Errorf("result for %s has %d riddles for %d questions", r.SessionID, len(r.Riddles), r.TotalQuestion)
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	return &r, nil
}
