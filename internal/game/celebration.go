package game

import "time"

// celebrate emits a transient celebration that ends on its own after window.
// It never touches session state.
func celebrate(l Listener, window time.Duration) {
	l.Emit(Event{Type: EventCelebrate, Duration: window})
	time.AfterFunc(window, func() {
		l.Emit(Event{Type: EventCelebrateEnd})
	})
}
