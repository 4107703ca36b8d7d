package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/handgame-backend/internal/model"
)

type GameResultRepository interface {
	Insert(ctx context.Context, result *model.GameResult) error
	InsertBatch(ctx context.Context, results []*model.GameResult) error
	List(ctx context.Context, q model.ListResultsQuery) ([]*model.GameResult, int, error)
}

type gameResultRepository struct {
	db *pgxpool.Pool
}

func NewGameResultRepository(db *pgxpool.Pool) GameResultRepository {
	return &gameResultRepository{db: db}
}

// A session is persisted at most once; requeued payloads are ignored.
const insertGameResultQuery = `
	INSERT INTO game_results
		(id, session_id, difficulty, corrected_answer_count, total_question, skip_count, outcomes, riddles, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (session_id) DO NOTHING
`

func insertArgs(r *model.GameResult) []any {
	riddles := r.Riddles
	if riddles == nil {
		riddles = []model.Riddle{}
	}
	return []any{
		r.ID, r.SessionID, string(r.Difficulty),
		r.CorrectedAnswerCount, r.TotalQuestion, r.SkipCount,
		r.Outcomes, riddles, r.FinishedAt,
	}
}

func (r *gameResultRepository) Insert(ctx context.Context, result *model.GameResult) error {
	_, err := r.db.Exec(ctx, insertGameResultQuery, insertArgs(result)...)
	return err
}

// InsertBatch writes all results in one transaction.
func (r *gameResultRepository) InsertBatch(ctx context.Context, results []*model.GameResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, res := range results {
		batch.Queue(insertGameResultQuery, insertArgs(res)...)
	}

	br := tx.SendBatch(ctx, batch)
	for range results {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *gameResultRepository) List(ctx context.Context, q model.ListResultsQuery) ([]*model.GameResult, int, error) {
	q.Normalize()

	var total int
	countQuery := `SELECT COUNT(*) FROM game_results WHERE ($1 = '' OR difficulty = $1)`
	if err := r.db.QueryRow(ctx, countQuery, q.Difficulty).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, session_id, difficulty, corrected_answer_count, total_question, skip_count, outcomes, riddles, finished_at
		FROM game_results
		WHERE ($1 = '' OR difficulty = $1)
		ORDER BY finished_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, q.Difficulty, q.PerPage, (q.Page-1)*q.PerPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results := make([]*model.GameResult, 0, q.PerPage)
	for rows.Next() {
		g := &model.GameResult{}
		var difficulty string
		if err := rows.Scan(
			&g.ID, &g.SessionID, &difficulty,
			&g.CorrectedAnswerCount, &g.TotalQuestion, &g.SkipCount,
			&g.Outcomes, &g.Riddles, &g.FinishedAt,
		); err != nil {
			return nil, 0, err
		}
		g.Difficulty = model.Difficulty(difficulty)
		results = append(results, g)
	}
	return results, total, rows.Err()
}
