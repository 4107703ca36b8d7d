package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stemsi/handgame-backend/internal/model"
)

// CaptureSource yields the current camera frame.
type CaptureSource interface {
	Snapshot(ctx context.Context) (payload []byte, contentType string, err error)
}

// CaptureTrigger turns a countdown completion into a capture artifact.
type CaptureTrigger struct {
	source CaptureSource
}

// NewCaptureTrigger creates a CaptureTrigger reading from source.
func NewCaptureTrigger(source CaptureSource) *CaptureTrigger {
	return &CaptureTrigger{source: source}
}

// Acquire takes one snapshot tagged with the riddle step it was taken against.
// Every failure is reported as ErrCaptureUnavailable.
func (t *CaptureTrigger) Acquire(ctx context.Context, riddleID, step int) (model.CaptureArtifact, error) {
	if t.source == nil {
		return model.CaptureArtifact{}, ErrCaptureUnavailable
	}

	payload, contentType, err := t.source.Snapshot(ctx)
	if err != nil {
		return model.CaptureArtifact{}, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}
	if len(payload) == 0 {
		return model.CaptureArtifact{}, fmt.Errorf("%w: empty frame", ErrCaptureUnavailable)
	}

	return model.CaptureArtifact{
		Payload:     payload,
		ContentType: contentType,
		RiddleID:    riddleID,
		Step:        step,
		CapturedAt:  time.Now(),
	}, nil
}

// FrameBuffer is a CaptureSource fed by the client: it keeps only the most
// recent webcam frame.
type FrameBuffer struct {
	mu          sync.RWMutex
	frame       []byte
	contentType string
	receivedAt  time.Time
	maxAge      time.Duration
}

// NewFrameBuffer creates an empty buffer. Frames older than maxAge are
// treated as missing; zero disables the check.
func NewFrameBuffer(maxAge time.Duration) *FrameBuffer {
	return &FrameBuffer{maxAge: maxAge}
}

// Put replaces the buffered frame.
func (b *FrameBuffer) Put(frame []byte, contentType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = frame
	b.contentType = contentType
	b.receivedAt = time.Now()
}

// Reset discards the buffered frame.
func (b *FrameBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = nil
	b.contentType = ""
}

// Snapshot implements CaptureSource.
func (b *FrameBuffer) Snapshot(ctx context.Context) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.frame) == 0 {
		return nil, "", fmt.Errorf("no frame received")
	}
	if b.maxAge > 0 && time.Since(b.receivedAt) > b.maxAge {
		return nil, "", fmt.Errorf("last frame is older than %s", b.maxAge)
	}

	out := make([]byte, len(b.frame))
	copy(out, b.frame)
	return out, b.contentType, nil
}
