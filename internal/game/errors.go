package game

import "errors"

// Failure taxonomy of a session. Collaborator errors are wrapped with one of
// these so callers can match them with errors.Is.
var (
	// ErrTransport is any failed fetch or submit call to an upstream service.
	ErrTransport = errors.New("upstream call failed")
	// ErrStaleVerdict marks a verdict for a position the session has left.
	ErrStaleVerdict = errors.New("stale verdict")
	// ErrCaptureUnavailable means no snapshot could be taken from the capture source.
	ErrCaptureUnavailable = errors.New("capture source unavailable")
)

// Command rejections.
var (
	ErrBusy          = errors.New("another request is in flight")
	ErrInvalidPhase  = errors.New("action not allowed in current phase")
	ErrSessionClosed = errors.New("session closed")
)
