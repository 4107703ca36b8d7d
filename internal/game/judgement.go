package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stemsi/handgame-backend/internal/metrics"
	"github.com/stemsi/handgame-backend/internal/model"
)

// Judge decides whether a capture shows the expected sign.
type Judge interface {
	SubmitCapture(ctx context.Context, artifact model.CaptureArtifact) (bool, error)
}

// JudgementGateway submits artifacts and produces typed verdict messages.
type JudgementGateway struct {
	judge   Judge
	metrics *metrics.Metrics
}

// NewJudgementGateway wraps judge.
func NewJudgementGateway(judge Judge, m *metrics.Metrics) *JudgementGateway {
	return &JudgementGateway{judge: judge, metrics: m}
}

// Submit sends the artifact once and returns the verdict for the given attempt.
func (g *JudgementGateway) Submit(ctx context.Context, artifact model.CaptureArtifact, attempt uint64) (model.Verdict, error) {
	start := time.Now()
	ok, err := g.judge.SubmitCapture(ctx, artifact)
	g.metrics.ObserveJudgement(time.Since(start))
	if err != nil {
		g.metrics.UpstreamFailure("submit_capture")
		if errors.Is(err, ErrTransport) {
			return model.Verdict{}, err
		}
		return model.Verdict{}, fmt.Errorf("%w: submit capture: %v", ErrTransport, err)
	}

	return model.Verdict{
		RiddleID:  artifact.RiddleID,
		Step:      artifact.Step,
		Attempt:   attempt,
		IsCorrect: &ok,
	}, nil
}
