package model

import (
	"time"

	"github.com/google/uuid"
)

// Phase enumerates the states of a session controller.
type Phase string

const (
	PhaseAwaitingQuestions Phase = "AWAITING_QUESTIONS"
	PhaseReady             Phase = "READY"
	PhaseCapturing         Phase = "CAPTURING"
	PhaseJudging           Phase = "JUDGING"
	PhaseConfirming        Phase = "CONFIRMING"
	PhaseFinished          Phase = "FINISHED"
	PhaseQuit              Phase = "QUIT"
)

// Terminal reports whether no further transition can leave the phase.
func (p Phase) Terminal() bool {
	return p == PhaseFinished || p == PhaseQuit
}

// SessionState is the mutable progress of one playthrough.
//
// Outcomes holds one entry per completed question, appended in question
// order; entries are never rewritten.
type SessionState struct {
	CurrentQuestionIndex int    `json:"current_question_index"`
	CurrentStepIndex     int    `json:"current_step_index"`
	CorrectedAnswerCount int    `json:"corrected_answer_count"`
	SkipCount            int    `json:"skip_count"`
	Outcomes             []bool `json:"outcomes"`
}

// NewSessionState returns the state a session starts from.
func NewSessionState() SessionState {
	return SessionState{
		CurrentStepIndex: 1,
		Outcomes:         []bool{},
	}
}

// Clone returns a copy that shares no memory with s.
func (s SessionState) Clone() SessionState {
	out := s
	out.Outcomes = append(make([]bool, 0, len(s.Outcomes)), s.Outcomes...)
	return out
}

// CaptureArtifact is one photograph taken against a riddle step.
type CaptureArtifact struct {
	Payload     []byte    `json:"-"`
	ContentType string    `json:"content_type"`
	RiddleID    int       `json:"riddle_id"`
	Step        int       `json:"step"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Verdict is the judgement for one capture attempt. A nil IsCorrect means
// no verdict has been produced yet.
type Verdict struct {
	RiddleID  int    `json:"riddle_id"`
	Step      int    `json:"step"`
	Attempt   uint64 `json:"attempt,omitempty"`
	IsCorrect *bool  `json:"is_correct"`
}

// Summary is the completion report of a finished session. Riddles[i] is the
// question Outcomes[i] was recorded for.
type Summary struct {
	CorrectedAnswerCount int      `json:"corrected_answer_count"`
	TotalQuestion        int      `json:"total_question"`
	SkipCount            int      `json:"skip_count"`
	Outcomes             []bool   `json:"outcomes"`
	Riddles              []Riddle `json:"riddles"`
}

// Clone returns a copy that shares no memory with s.
func (s Summary) Clone() Summary {
	out := s
	out.Outcomes = append(make([]bool, 0, len(s.Outcomes)), s.Outcomes...)
	out.Riddles = append(make([]Riddle, 0, len(s.Riddles)), s.Riddles...)
	return out
}

// Snapshot is a read-only view of a session for the presentation layer.
type Snapshot struct {
	SessionID     uuid.UUID   `json:"session_id"`
	Phase         Phase       `json:"phase"`
	Difficulty    Difficulty  `json:"difficulty"`
	TotalQuestion int         `json:"total_question"`
	Riddle        *Riddle     `json:"riddle,omitempty"`
	Prompt        *StepPrompt `json:"prompt,omitempty"`
	// CountdownDeadline is set while the capture countdown is armed.
	CountdownDeadline *time.Time `json:"countdown_deadline,omitempty"`
	// CountdownRemainingMS is the countdown left when the snapshot was taken,
	// for clients whose clock disagrees with the server's.
	CountdownRemainingMS int64     `json:"countdown_remaining_ms,omitempty"`
	Summary              *Summary  `json:"summary,omitempty"`
	UpdatedAt            time.Time `json:"updated_at"`
	SessionState
}

// StartSessionRequest is the payload for starting or restarting a session.
type StartSessionRequest struct {
	Difficulty string `json:"difficulty" binding:"required,difficulty"`
}
