package websocket

import (
	"time"

	"github.com/stemsi/handgame-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionFrame   Action = "frame"
	ActionCapture Action = "capture"
	ActionSkip    Action = "skip"
	ActionConfirm Action = "confirm"
	ActionPrompt  Action = "prompt"
	ActionStart   Action = "start"
	ActionQuit    Action = "quit"
	ActionPing    Action = "ping"
)

// Request is every client message. Only the fields of its action are set.
type Request struct {
	Action Action `json:"action"`
	// Image is a data URL of a webcam frame (ActionFrame).
	Image string `json:"image,omitempty"`
	// Difficulty restarts the session with a new list (ActionStart).
	Difficulty string `json:"difficulty,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState        Event = "state"
	EventPrompt       Event = "prompt"
	EventCountdown    Event = "countdown"
	EventNotice       Event = "notice"
	EventCelebrate    Event = "celebrate"
	EventCelebrateEnd Event = "celebrate_end"
	EventConfirm      Event = "confirm"
	EventFinished     Event = "finished"
	EventQuit         Event = "quit"
	EventError        Event = "error"
	EventPong         Event = "pong"
)

type StateResponse struct {
	Event   Event          `json:"event"`
	Session model.Snapshot `json:"session"`
}

type PromptResponse struct {
	Event  Event            `json:"event"`
	Prompt model.StepPrompt `json:"prompt"`
}

type CountdownResponse struct {
	Event      Event     `json:"event"`
	DurationMS int64     `json:"duration_ms"`
	Deadline   time.Time `json:"deadline"`
}

type NoticeResponse struct {
	Event  Event        `json:"event"`
	Notice model.Notice `json:"notice"`
}

type CelebrateResponse struct {
	Event      Event `json:"event"`
	DurationMS int64 `json:"duration_ms,omitempty"`
}

type ConfirmResponse struct {
	Event  Event        `json:"event"`
	Riddle model.Riddle `json:"riddle"`
}

type FinishedResponse struct {
	Event   Event         `json:"event"`
	Summary model.Summary `json:"summary"`
}

type QuitResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
