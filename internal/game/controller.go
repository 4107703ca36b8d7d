// Package game implements the riddle session controller: question and step
// progression, the capture countdown, judgement handling and scoring.
//
// A Controller owns its session state on a single goroutine (Start). Player
// commands and collaborator results are queued onto that goroutine, so state
// transitions never run concurrently and are applied in arrival order.
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/handgame-backend/internal/metrics"
	"github.com/stemsi/handgame-backend/internal/model"
)

// RiddleSource supplies question lists and step prompts.
type RiddleSource interface {
	FetchQuestionList(ctx context.Context, difficulty model.Difficulty, total int) ([]model.Riddle, error)
	FetchStepPrompt(ctx context.Context, riddleID, step int) (model.StepPrompt, error)
}

// Options tunes a Controller.
type Options struct {
	// TotalQuestion is the number of riddles requested per session. The
	// fetched list is authoritative when it is shorter.
	TotalQuestion     int
	CountdownDuration time.Duration
	CelebrationWindow time.Duration
	// RequestTimeout bounds every collaborator call.
	RequestTimeout time.Duration
}

// DefaultOptions mirrors the game's original pacing.
func DefaultOptions() Options {
	return Options{
		TotalQuestion:     3,
		CountdownDuration: 3 * time.Second,
		CelebrationWindow: 5 * time.Second,
		RequestTimeout:    10 * time.Second,
	}
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Riddles  RiddleSource
	Capture  CaptureSource
	Judge    Judge
	Listener Listener
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
}

// position identifies where in a session a request was issued.
type position struct {
	epoch    uint64
	question int
	step     int
}

// Controller is the progression state machine of one session.
type Controller struct {
	id        uuid.UUID
	opts      Options
	riddles   RiddleSource
	trigger   *CaptureTrigger
	gateway   *JudgementGateway
	countdown *Countdown
	listener  Listener
	metrics   *metrics.Metrics
	log       zerolog.Logger

	inbox     chan func()
	done      chan struct{}
	closeOnce sync.Once
	runCtx    context.Context
	cancelRun context.CancelFunc

	// Everything below is owned by the Start goroutine.
	phase          model.Phase
	difficulty     model.Difficulty
	questions      []model.Riddle
	state          model.SessionState
	prompt         *model.StepPrompt
	summary        *model.Summary
	artifact       *model.CaptureArtifact
	epoch          uint64
	attempt        uint64
	arming         uint64 // latest countdown; queued completions of older ones are ignored
	listPending    bool
	promptPending  *position
	capturePending bool
	updatedAt      time.Time
}

// NewController creates a controller. Call Start before issuing commands.
func NewController(id uuid.UUID, opts Options, deps Deps) *Controller {
	defaults := DefaultOptions()
	if opts.TotalQuestion <= 0 {
		opts.TotalQuestion = defaults.TotalQuestion
	}
	if opts.CountdownDuration <= 0 {
		opts.CountdownDuration = defaults.CountdownDuration
	}
	if opts.CelebrationWindow <= 0 {
		opts.CelebrationWindow = defaults.CelebrationWindow
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaults.RequestTimeout
	}

	listener := deps.Listener
	if listener == nil {
		listener = discardListener{}
	}

	return &Controller{
		id:        id,
		opts:      opts,
		riddles:   deps.Riddles,
		trigger:   NewCaptureTrigger(deps.Capture),
		gateway:   NewJudgementGateway(deps.Judge, deps.Metrics),
		countdown: NewCountdown(),
		listener:  listener,
		metrics:   deps.Metrics,
		log: deps.Log.With().
			Str("component", "session_controller").
			Str("session_id", id.String()).
			Logger(),
		inbox:     make(chan func(), 32),
		done:      make(chan struct{}),
		phase:     model.PhaseAwaitingQuestions,
		state:     model.NewSessionState(),
		updatedAt: time.Now(),
	}
}

// ID returns the session id.
func (c *Controller) ID() uuid.UUID { return c.id }

// Done is closed once the controller loop has stopped.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Start runs the controller loop until ctx is cancelled. Call in a goroutine.
func (c *Controller) Start(ctx context.Context) {
	c.runCtx, c.cancelRun = context.WithCancel(ctx)
	defer c.stop()

	c.log.Debug().Msg("Controller started")
	for {
		select {
		case <-c.runCtx.Done():
			c.log.Debug().Msg("Controller stopped")
			return
		case fn := <-c.inbox:
			fn()
		}
	}
}

func (c *Controller) stop() {
	c.closeOnce.Do(func() {
		c.countdown.Disarm()
		c.cancelRun()
		close(c.done)
	})
}

// ────────────────────────────────────────────────────────────────────────────
// Commands
// ────────────────────────────────────────────────────────────────────────────

// StartSession discards any progress and requests a new question list. It is
// also how a difficulty change is applied.
func (c *Controller) StartSession(difficulty model.Difficulty) error {
	return c.do(func() error {
		if c.phase == model.PhaseQuit {
			return ErrSessionClosed
		}
		if c.listPending && c.difficulty == difficulty {
			return ErrBusy
		}
		c.reset(difficulty)
		c.metrics.SessionStarted()
		c.log.Info().Str("difficulty", string(difficulty)).Msg("Session started")
		c.emitState()
		c.fetchQuestions()
		return nil
	})
}

// RequestPrompt re-requests the hint for the current step, e.g. after a
// failed fetch.
func (c *Controller) RequestPrompt() error {
	return c.do(func() error {
		switch c.phase {
		case model.PhaseReady, model.PhaseCapturing, model.PhaseJudging:
		default:
			return ErrInvalidPhase
		}
		if c.promptPending != nil && *c.promptPending == c.position() {
			return ErrBusy
		}
		c.fetchPrompt()
		return nil
	})
}

// ArmCapture starts the capture countdown. It is rejected while a countdown,
// capture or judgement is already in progress.
func (c *Controller) ArmCapture() error {
	return c.do(func() error {
		switch c.phase {
		case model.PhaseReady:
		case model.PhaseCapturing:
			if c.countdown.Running() || c.capturePending {
				return ErrBusy
			}
		case model.PhaseJudging:
			return ErrBusy
		default:
			return ErrInvalidPhase
		}

		c.phase = model.PhaseCapturing
		c.artifact = nil
		pos := c.position()
		c.arming++
		arming := c.arming
		c.countdown.Arm(c.opts.CountdownDuration, func() {
			c.post(func() { c.onCountdownComplete(pos, arming) })
		})

		deadline, _ := c.countdown.Deadline()
		c.listener.Emit(Event{
			Type:      EventCountdown,
			Countdown: &CountdownInfo{Duration: c.opts.CountdownDuration, Deadline: deadline},
		})
		c.emitState()
		return nil
	})
}

// DeliverVerdict feeds an externally produced verdict into the session. A
// verdict that does not match the pending attempt returns ErrStaleVerdict
// and changes nothing.
func (c *Controller) DeliverVerdict(v model.Verdict) error {
	return c.do(func() error { return c.onVerdict(v) })
}

// ConfirmSolved closes the success confirmation and records the question as solved.
func (c *Controller) ConfirmSolved() error {
	return c.do(func() error {
		if c.phase != model.PhaseConfirming {
			return ErrInvalidPhase
		}
		c.confirmQuestionSolved(true)
		return nil
	})
}

// Skip abandons the current question; it counts as an incorrect outcome.
func (c *Controller) Skip() error {
	return c.do(func() error {
		switch c.phase {
		case model.PhaseReady, model.PhaseCapturing, model.PhaseJudging:
		default:
			return ErrInvalidPhase
		}
		c.state.SkipCount++
		c.log.Info().
			Int("question", c.state.CurrentQuestionIndex).
			Int("skip_count", c.state.SkipCount).
			Msg("Question skipped")
		c.confirmQuestionSolved(false)
		return nil
	})
}

// Quit discards the session. No summary is produced.
func (c *Controller) Quit() error {
	return c.do(func() error {
		if c.phase == model.PhaseQuit {
			return nil
		}
		c.countdown.Disarm()
		c.epoch++
		c.phase = model.PhaseQuit
		c.questions = nil
		c.state = model.NewSessionState()
		c.clearCapture()
		c.prompt = nil
		c.summary = nil
		c.listPending = false
		c.promptPending = nil
		c.touch()

		c.log.Info().Msg("Session quit")
		c.listener.Emit(Event{Type: EventQuit})
		return nil
	})
}

// Snapshot returns the current view of the session.
func (c *Controller) Snapshot() (model.Snapshot, error) {
	var snap model.Snapshot
	err := c.do(func() error {
		snap = c.snapshot()
		return nil
	})
	return snap, err
}

// ────────────────────────────────────────────────────────────────────────────
// Transitions (run on the controller goroutine)
// ────────────────────────────────────────────────────────────────────────────

func (c *Controller) reset(difficulty model.Difficulty) {
	c.countdown.Disarm()
	c.epoch++
	c.phase = model.PhaseAwaitingQuestions
	c.difficulty = difficulty
	c.questions = nil
	c.state = model.NewSessionState()
	c.clearCapture()
	c.prompt = nil
	c.summary = nil
	c.listPending = false
	c.promptPending = nil
	c.touch()
}

func (c *Controller) fetchQuestions() {
	epoch := c.epoch
	difficulty := c.difficulty
	total := c.opts.TotalQuestion
	c.listPending = true

	go func() {
		ctx, cancel := c.requestContext()
		defer cancel()
		list, err := c.riddles.FetchQuestionList(ctx, difficulty, total)
		c.post(func() { c.onQuestionsArrived(epoch, list, err) })
	}()
}

func (c *Controller) onQuestionsArrived(epoch uint64, list []model.Riddle, err error) {
	if epoch != c.epoch {
		c.log.Debug().Msg("Dropping question list for a superseded session")
		return
	}
	c.listPending = false

	if err == nil {
		list, err = normalizeQuestionList(list, c.opts.TotalQuestion)
	}
	if err != nil {
		c.metrics.UpstreamFailure("fetch_question_list")
		c.log.Warn().Err(err).Msg("Question list fetch failed")
		c.notify(model.NoticeGenericFailure)
		return
	}

	c.questions = list
	c.state = model.NewSessionState()
	c.phase = model.PhaseReady
	c.touch()

	c.log.Info().Int("total_question", len(list)).Msg("Questions arrived")
	c.emitState()
	c.fetchPrompt()
}

func (c *Controller) fetchPrompt() {
	pos := c.position()
	if c.promptPending != nil && *c.promptPending == pos {
		return
	}
	c.promptPending = &pos
	riddleID := c.currentRiddle().ID

	go func() {
		ctx, cancel := c.requestContext()
		defer cancel()
		prompt, err := c.riddles.FetchStepPrompt(ctx, riddleID, pos.step)
		c.post(func() { c.onPromptArrived(pos, prompt, err) })
	}()
}

func (c *Controller) onPromptArrived(pos position, prompt model.StepPrompt, err error) {
	if c.promptPending != nil && *c.promptPending == pos {
		c.promptPending = nil
	}
	if pos != c.position() || !c.playing() {
		c.log.Debug().Int("step", pos.step).Msg("Dropping prompt for a superseded step")
		return
	}
	if err != nil {
		c.metrics.UpstreamFailure("fetch_step_prompt")
		c.log.Warn().Err(err).Int("step", pos.step).Msg("Prompt fetch failed")
		c.notify(model.NoticeGenericFailure)
		return
	}

	c.prompt = &prompt
	c.touch()
	c.listener.Emit(Event{Type: EventPrompt, Prompt: &prompt})
	c.emitState()
}

func (c *Controller) onCountdownComplete(pos position, arming uint64) {
	if arming != c.arming || pos != c.position() || c.phase != model.PhaseCapturing {
		return
	}
	c.capturePending = true
	riddleID := c.currentRiddle().ID

	go func() {
		ctx, cancel := c.requestContext()
		defer cancel()
		artifact, err := c.trigger.Acquire(ctx, riddleID, pos.step)
		c.post(func() { c.onCaptured(pos, artifact, err) })
	}()
}

func (c *Controller) onCaptured(pos position, artifact model.CaptureArtifact, err error) {
	if pos != c.position() || c.phase != model.PhaseCapturing {
		return
	}
	c.capturePending = false

	if err != nil {
		// Stay in CAPTURING; the player re-arms to retry.
		c.metrics.UpstreamFailure("capture")
		c.log.Warn().Err(err).Msg("Capture failed")
		c.notify(model.NoticeCaptureUnavailable)
		c.emitState()
		return
	}

	c.artifact = &artifact
	c.attempt++
	attempt := c.attempt
	c.phase = model.PhaseJudging
	c.touch()
	c.emitState()

	go func() {
		ctx, cancel := c.requestContext()
		defer cancel()
		verdict, err := c.gateway.Submit(ctx, artifact, attempt)
		c.post(func() {
			if err != nil {
				c.onJudgementFailed(pos, attempt, err)
				return
			}
			_ = c.onVerdict(verdict)
		})
	}()
}

func (c *Controller) onJudgementFailed(pos position, attempt uint64, err error) {
	if pos != c.position() || c.phase != model.PhaseJudging || attempt != c.attempt {
		return
	}
	c.clearCapture()
	c.phase = model.PhaseReady
	c.touch()

	c.log.Warn().Err(err).Uint64("attempt", attempt).Msg("Judgement failed")
	c.notify(model.NoticeGenericFailure)
	c.emitState()
}

func (c *Controller) onVerdict(v model.Verdict) error {
	if v.IsCorrect == nil {
		return nil
	}
	if !c.acceptsVerdict(v) {
		c.metrics.Verdict("stale")
		c.log.Debug().
			Int("riddle_id", v.RiddleID).
			Int("step", v.Step).
			Uint64("attempt", v.Attempt).
			Msg("Dropping stale verdict")
		return ErrStaleVerdict
	}

	c.clearCapture()
	c.touch()
	riddle := c.currentRiddle()

	if !*v.IsCorrect {
		c.metrics.Verdict("incorrect")
		c.phase = model.PhaseReady
		c.notify(model.NoticeWrongAnswer)
		c.emitState()
		return nil
	}

	c.metrics.Verdict("correct")
	if c.state.CurrentStepIndex == riddle.TotalSteps {
		c.phase = model.PhaseConfirming
		c.listener.Emit(Event{Type: EventConfirm, Riddle: &riddle})
		c.emitState()
		return nil
	}

	c.state.CurrentStepIndex++
	c.prompt = nil
	c.phase = model.PhaseReady
	celebrate(c.listener, c.opts.CelebrationWindow)
	c.emitState()
	c.fetchPrompt()
	return nil
}

func (c *Controller) acceptsVerdict(v model.Verdict) bool {
	if c.phase != model.PhaseJudging {
		return false
	}
	if v.RiddleID != c.currentRiddle().ID || v.Step != c.state.CurrentStepIndex {
		return false
	}
	return v.Attempt == 0 || v.Attempt == c.attempt
}

func (c *Controller) confirmQuestionSolved(wasCorrect bool) {
	c.countdown.Disarm()
	c.clearCapture()
	c.touch()

	c.state.Outcomes = append(c.state.Outcomes, wasCorrect)
	if wasCorrect {
		c.state.CorrectedAnswerCount++
		c.metrics.QuestionCompleted("solved")
	} else {
		c.metrics.QuestionCompleted("skipped")
	}

	if c.state.CurrentQuestionIndex == len(c.questions)-1 {
		c.finish()
		return
	}

	c.state.CurrentQuestionIndex++
	c.state.CurrentStepIndex = 1
	c.prompt = nil
	c.phase = model.PhaseReady
	c.emitState()
	c.fetchPrompt()
}

func (c *Controller) finish() {
	c.phase = model.PhaseFinished
	c.prompt = nil
	c.summary = &model.Summary{
		CorrectedAnswerCount: c.state.CorrectedAnswerCount,
		TotalQuestion:        len(c.questions),
		SkipCount:            c.state.SkipCount,
		Outcomes:             c.state.Clone().Outcomes,
		Riddles:              append([]model.Riddle(nil), c.questions...),
	}

	c.log.Info().
		Int("corrected", c.summary.CorrectedAnswerCount).
		Int("total", c.summary.TotalQuestion).
		Int("skipped", c.summary.SkipCount).
		Msg("Session finished")

	summary := c.summary.Clone()
	c.listener.Emit(Event{Type: EventFinished, Summary: &summary})
	c.emitState()
}

// ────────────────────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────────────────────

// do runs fn on the controller goroutine and waits for its result.
func (c *Controller) do(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case c.inbox <- func() { errc <- fn() }:
	case <-c.done:
		return ErrSessionClosed
	}
	select {
	case err := <-errc:
		return err
	case <-c.done:
		// fn may have stopped the session itself.
		select {
		case err := <-errc:
			return err
		default:
			return ErrSessionClosed
		}
	}
}

// post queues fn without waiting. Used by collaborator goroutines.
func (c *Controller) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.done:
	}
}

func (c *Controller) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.runCtx, c.opts.RequestTimeout)
}

func (c *Controller) position() position {
	return position{
		epoch:    c.epoch,
		question: c.state.CurrentQuestionIndex,
		step:     c.state.CurrentStepIndex,
	}
}

func (c *Controller) playing() bool {
	switch c.phase {
	case model.PhaseReady, model.PhaseCapturing, model.PhaseJudging, model.PhaseConfirming:
		return true
	}
	return false
}

func (c *Controller) currentRiddle() model.Riddle {
	if c.state.CurrentQuestionIndex < len(c.questions) {
		return c.questions[c.state.CurrentQuestionIndex]
	}
	return model.Riddle{}
}

func (c *Controller) clearCapture() {
	c.artifact = nil
	c.capturePending = false
}

func (c *Controller) touch() {
	c.updatedAt = time.Now()
}

func (c *Controller) notify(code model.NoticeCode) {
	n := model.NoticeFor(code)
	c.listener.Emit(Event{Type: EventNotice, Notice: &n})
}

func (c *Controller) emitState() {
	snap := c.snapshot()
	c.listener.Emit(Event{Type: EventState, Snapshot: &snap})
}

func (c *Controller) snapshot() model.Snapshot {
	snap := model.Snapshot{
		SessionID:     c.id,
		Phase:         c.phase,
		Difficulty:    c.difficulty,
		TotalQuestion: len(c.questions),
		UpdatedAt:     c.updatedAt,
		SessionState:  c.state.Clone(),
	}
	if len(c.questions) > 0 {
		riddle := c.currentRiddle()
		snap.Riddle = &riddle
	}
	if c.prompt != nil {
		prompt := *c.prompt
		snap.Prompt = &prompt
	}
	if deadline, ok := c.countdown.Deadline(); ok {
		snap.CountdownDeadline = &deadline
		snap.CountdownRemainingMS = c.countdown.Remaining().Milliseconds()
	}
	if c.summary != nil {
		summary := c.summary.Clone()
		snap.Summary = &summary
	}
	return snap
}

// normalizeQuestionList caps the list at the requested size and rejects
// lists the controller cannot play.
func normalizeQuestionList(list []model.Riddle, requested int) ([]model.Riddle, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: empty question list", ErrTransport)
	}
	if requested > 0 && len(list) > requested {
		list = list[:requested]
	}
	for _, r := range list {
		if r.TotalSteps < 1 {
			return nil, fmt.Errorf("%w: riddle %d has no steps", ErrTransport, r.ID)
		}
	}
	return append([]model.Riddle(nil), list...), nil
}
