package model

import (
	"time"

	"github.com/google/uuid"
)

// GameResult is a persisted session summary.
type GameResult struct {
	ID         uuid.UUID  `json:"id"`
	SessionID  uuid.UUID  `json:"session_id"`
	Difficulty Difficulty `json:"difficulty"`
	FinishedAt time.Time  `json:"finished_at"`
	Summary
}

// ListResultsQuery filters the recent results listing.
type ListResultsQuery struct {
	Difficulty string `form:"difficulty" binding:"omitempty,difficulty"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PerPage    int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// Normalize fills paging defaults.
func (q *ListResultsQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 20
	}
}
