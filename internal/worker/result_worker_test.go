package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/handgame-backend/internal/model"
)

type fakeResultRepo struct {
	mu         sync.Mutex
	batchErr   error
	failSingle map[uuid.UUID]bool
	inserted   []*model.GameResult
}

func (f *fakeResultRepo) Insert(_ context.Context, r *model.GameResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSingle[r.SessionID] {
		return errors.New("insert failed")
	}
	f.inserted = append(f.inserted, r)
	return nil
}

func (f *fakeResultRepo) InsertBatch(_ context.Context, rs []*model.GameResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchErr != nil {
		return f.batchErr
	}
	f.inserted = append(f.inserted, rs...)
	return nil
}

func (f *fakeResultRepo) List(context.Context, model.ListResultsQuery) ([]*model.GameResult, int, error) {
	return nil, 0, nil
}

func newTestWorker(repo *fakeResultRepo) (*ResultWorker, *[][]byte) {
	var requeued [][]byte
	w := &ResultWorker{repo: repo, log: zerolog.Nop()}
	w.requeue = func(_ context.Context, raw []byte) { requeued = append(requeued, raw) }
	return w, &requeued
}

func result(outcomes ...bool) *model.GameResult {
	return &model.GameResult{
		ID:         uuid.New(),
		SessionID:  uuid.New(),
		Difficulty: model.DifficultyEasy,
		FinishedAt: time.Now(),
		Summary: model.Summary{
			TotalQuestion: len(outcomes),
			Outcomes:      outcomes,
		},
	}
}

func TestResultWorker_FlushUsesBatch(t *testing.T) {
	repo := &fakeResultRepo{}
	w, requeued := newTestWorker(repo)

	w.flushSafe(context.Background(), []*model.GameResult{result(true), result(false, true)})

	assert.Len(t, repo.inserted, 2)
	assert.Empty(t, *requeued)
}

func TestResultWorker_FallbackRequeuesOnlyFailedRows(t *testing.T) {
	good, bad := result(true), result(false)
	repo := &fakeResultRepo{
		batchErr:   errors.New("batch failed"),
		failSingle: map[uuid.UUID]bool{bad.SessionID: true},
	}
	w, requeued := newTestWorker(repo)

	w.flushSafe(context.Background(), []*model.GameResult{good, bad})

	require.Len(t, repo.inserted, 1)
	assert.Equal(t, good.SessionID, repo.inserted[0].SessionID)

	require.Len(t, *requeued, 1)
	var back model.GameResult
	require.NoError(t, json.Unmarshal((*requeued)[0], &back))
	assert.Equal(t, bad.SessionID, back.SessionID)
}

func TestDecodeResult(t *testing.T) {
	sessionID := uuid.New()
	raw, err := json.Marshal(model.GameResult{
		SessionID:  sessionID,
		Difficulty: model.DifficultyHard,
		Summary: model.Summary{
			CorrectedAnswerCount: 2,
			TotalQuestion:        3,
			SkipCount:            1,
			Outcomes:             []bool{true, false, true},
			Riddles: []model.Riddle{
				{ID: 1, PromptText: "바나나", TotalSteps: 2},
				{ID: 4, PromptText: "안녕하세요", TotalSteps: 3},
				{ID: 6, PromptText: "금연", TotalSteps: 3},
			},
		},
	})
	require.NoError(t, err)

	got, err := decodeResult(raw)
	require.NoError(t, err)
	assert.Equal(t, sessionID, got.SessionID)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.False(t, got.FinishedAt.IsZero())
	assert.Equal(t, []bool{true, false, true}, got.Outcomes)
	require.Len(t, got.Riddles, 3)
	assert.Equal(t, "안녕하세요", got.Riddles[1].PromptText)
}

func TestDecodeResult_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{`},
		{name: "no session", raw: `{"total_question":1,"outcomes":[true]}`},
		{name: "outcome mismatch", raw: `{"session_id":"` + uuid.NewString() + `","total_question":3,"outcomes":[true]}`},
		{name: "riddle mismatch", raw: `{"session_id":"` + uuid.NewString() + `","total_question":2,"outcomes":[true,false],"riddles":[{"riddle_id":1,"prompt_text":"바나나","total_steps":2}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeResult([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}
