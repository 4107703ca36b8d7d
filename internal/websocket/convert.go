package websocket

import "github.com/stemsi/handgame-backend/internal/game"

// FromGameEvent maps a controller event onto its wire payload. ok is false
// for events that carry nothing to send.
func FromGameEvent(e game.Event) (payload any, ok bool) {
	switch e.Type {
	case game.EventState:
		if e.Snapshot == nil {
			return nil, false
		}
		return StateResponse{Event: EventState, Session: *e.Snapshot}, true
	case game.EventPrompt:
		if e.Prompt == nil {
			return nil, false
		}
		return PromptResponse{Event: EventPrompt, Prompt: *e.Prompt}, true
	case game.EventCountdown:
		if e.Countdown == nil {
			return nil, false
		}
		return CountdownResponse{
			Event:      EventCountdown,
			DurationMS: e.Countdown.Duration.Milliseconds(),
			Deadline:   e.Countdown.Deadline,
		}, true
	case game.EventNotice:
		if e.Notice == nil {
			return nil, false
		}
		return NoticeResponse{Event: EventNotice, Notice: *e.Notice}, true
	case game.EventCelebrate:
		return CelebrateResponse{Event: EventCelebrate, DurationMS: e.Duration.Milliseconds()}, true
	case game.EventCelebrateEnd:
		return CelebrateResponse{Event: EventCelebrateEnd}, true
	case game.EventConfirm:
		if e.Riddle == nil {
			return nil, false
		}
		return ConfirmResponse{Event: EventConfirm, Riddle: *e.Riddle}, true
	case game.EventFinished:
		if e.Summary == nil {
			return nil, false
		}
		return FinishedResponse{Event: EventFinished, Summary: *e.Summary}, true
	case game.EventQuit:
		return QuitResponse{Event: EventQuit}, true
	}
	return nil, false
}
