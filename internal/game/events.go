package game

import (
	"time"

	"github.com/stemsi/handgame-backend/internal/model"
)

// EventType names what happened in a session.
type EventType string

const (
	EventState        EventType = "state"
	EventPrompt       EventType = "prompt"
	EventCountdown    EventType = "countdown"
	EventNotice       EventType = "notice"
	EventCelebrate    EventType = "celebrate"
	EventCelebrateEnd EventType = "celebrate_end"
	EventConfirm      EventType = "confirm"
	EventFinished     EventType = "finished"
	EventQuit         EventType = "quit"
)

// Event is emitted by a Controller. Only the field matching Type is set.
type Event struct {
	Type      EventType
	Snapshot  *model.Snapshot
	Prompt    *model.StepPrompt
	Notice    *model.Notice
	Riddle    *model.Riddle
	Summary   *model.Summary
	Countdown *CountdownInfo
	Duration  time.Duration
}

// CountdownInfo describes an armed capture countdown.
type CountdownInfo struct {
	Duration time.Duration
	Deadline time.Time
}

// Listener receives session events. Emit may be called from several
// goroutines and must not block.
type Listener interface {
	Emit(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) Emit(e Event) { f(e) }

type discardListener struct{}

func (discardListener) Emit(Event) {}
