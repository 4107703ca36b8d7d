package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/handgame-backend/internal/game"
	"github.com/stemsi/handgame-backend/internal/metrics"
	"github.com/stemsi/handgame-backend/internal/model"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionAttached = errors.New("session already has a stream attached")
)

const (
	hubBuffer        = 256
	subscriberBuffer = 64
	storeTimeout     = 2 * time.Second
	janitorInterval  = time.Minute
)

// VideoSource looks up reference videos for words.
type VideoSource interface {
	FetchWordVideo(ctx context.Context, text string) (model.WordVideo, error)
}

// SessionOptions configures every session created by the service.
type SessionOptions struct {
	Game        game.Options
	FrameMaxAge time.Duration
	// IdleTimeout evicts live sessions that have not changed for this long.
	IdleTimeout time.Duration
}

// Session is a live game: its controller and the frame buffer its capture
// trigger reads from.
type Session struct {
	ID         uuid.UUID
	Controller *game.Controller
	Frames     *game.FrameBuffer

	cancel context.CancelFunc
	hub    *hub
}

// SessionService owns the live sessions of this process.
type SessionService struct {
	riddles game.RiddleSource
	videos  VideoSource
	judge   game.Judge
	store   SessionStore
	metrics *metrics.Metrics
	opts    SessionOptions
	base    zerolog.Logger
	log     zerolog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	riddles game.RiddleSource,
	videos VideoSource,
	judge game.Judge,
	store SessionStore,
	m *metrics.Metrics,
	opts SessionOptions,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		riddles:  riddles,
		videos:   videos,
		judge:    judge,
		store:    store,
		metrics:  m,
		opts:     opts,
		base:     log,
		log:      log.With().Str("component", "session_service").Logger(),
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create starts a new session and requests its question list.
func (s *SessionService) Create(difficulty model.Difficulty) (*Session, error) {
	id := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	frames := game.NewFrameBuffer(s.opts.FrameMaxAge)
	h := newHub(hubBuffer, func(e game.Event) {
		s.metrics.EventDropped(string(e.Type))
		s.log.Warn().
			Str("session_id", id.String()).
			Str("event", string(e.Type)).
			Msg("Event queue full, dropping event")
	})

	ctrl := game.NewController(id, s.opts.Game, game.Deps{
		Riddles:  s.riddles,
		Capture:  frames,
		Judge:    s.judge,
		Listener: h,
		Metrics:  s.metrics,
		Log:      s.base,
	})
	sess := &Session{ID: id, Controller: ctrl, Frames: frames, cancel: cancel, hub: h}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	s.metrics.SessionOpened()

	go ctrl.Start(ctx)
	go s.pump(sess)

	if err := ctrl.StartSession(difficulty); err != nil {
		s.evict(sess, "quit")
		return nil, err
	}

	s.log.Info().
		Str("session_id", id.String()).
		Str("difficulty", string(difficulty)).
		Msg("Session created")
	return sess, nil
}

// Get returns a live session.
func (s *SessionService) Get(id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Snapshot returns the live view of a session, or the last stored one once
// the session has ended.
func (s *SessionService) Snapshot(ctx context.Context, id uuid.UUID) (model.Snapshot, error) {
	if sess, err := s.Get(id); err == nil {
		snap, err := sess.Controller.Snapshot()
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, game.ErrSessionClosed) {
			return model.Snapshot{}, err
		}
	}

	if s.store == nil {
		return model.Snapshot{}, ErrSessionNotFound
	}
	snap, err := s.store.LoadSnapshot(ctx, id)
	if errors.Is(err, ErrSnapshotNotFound) {
		return model.Snapshot{}, ErrSessionNotFound
	}
	return snap, err
}

// Restart discards progress and starts over with difficulty.
func (s *SessionService) Restart(id uuid.UUID, difficulty model.Difficulty) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	return sess.Controller.StartSession(difficulty)
}

// Quit ends a session without a report.
func (s *SessionService) Quit(id uuid.UUID) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	return sess.Controller.Quit()
}

// Attach subscribes to a session's events. Only one stream may be attached
// at a time; call detach when the stream goes away. The channel is closed
// when the session ends.
func (s *SessionService) Attach(id uuid.UUID) (<-chan game.Event, func(), error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, err := sess.hub.subscribe()
	if err != nil {
		return nil, nil, err
	}
	return ch, func() { sess.hub.unsubscribe(ch) }, nil
}

// WordVideo looks up a reference video, consulting the store's cache first.
func (s *SessionService) WordVideo(ctx context.Context, text string) (model.WordVideo, error) {
	if s.store != nil {
		if v, ok := s.store.CachedVideo(ctx, text); ok {
			return v, nil
		}
	}

	v, err := s.videos.FetchWordVideo(ctx, text)
	if err != nil {
		s.metrics.UpstreamFailure("fetch_word_video")
		return model.WordVideo{}, err
	}

	if s.store != nil {
		if err := s.store.CacheVideo(ctx, v); err != nil {
			s.log.Warn().Err(err).Str("text", text).Msg("Failed to cache word video")
		}
	}
	return v, nil
}

// Count returns the number of live sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run evicts idle sessions until ctx is cancelled, then shuts every session
// down. Call in a goroutine.
func (s *SessionService) Run(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Shutdown()
			return
		case <-ticker.C:
			s.evictIdle(time.Now())
		}
	}
}

// Shutdown stops every live session.
func (s *SessionService) Shutdown() {
	s.mu.RLock()
	live := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.RUnlock()

	for _, sess := range live {
		s.evict(sess, "expired")
	}
	if len(live) > 0 {
		s.log.Info().Int("count", len(live)).Msg("Sessions shut down")
	}
}

func (s *SessionService) evictIdle(now time.Time) {
	if s.opts.IdleTimeout <= 0 {
		return
	}

	s.mu.RLock()
	live := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.RUnlock()

	for _, sess := range live {
		snap, err := sess.Controller.Snapshot()
		if err != nil || now.Sub(snap.UpdatedAt) < s.opts.IdleTimeout || sess.hub.attached() {
			continue
		}
		s.log.Info().Str("session_id", sess.ID.String()).Msg("Evicting idle session")
		s.evict(sess, "expired")
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Event pump
// ────────────────────────────────────────────────────────────────────────────

// pump handles a session's events in emission order until the session is
// evicted. Events already queued at eviction are still handled.
func (s *SessionService) pump(sess *Session) {
	defer sess.hub.closeSubscriber()

	for {
		select {
		case e := <-sess.hub.events:
			s.handle(sess, e)
		case <-sess.hub.quit:
			for {
				select {
				case e := <-sess.hub.events:
					s.handle(sess, e)
				default:
					return
				}
			}
		}
	}
}

func (s *SessionService) handle(sess *Session, e game.Event) {
	sess.hub.forward(e)

	switch e.Type {
	case game.EventState:
		if e.Snapshot == nil {
			return
		}
		s.saveSnapshot(*e.Snapshot)
		if e.Snapshot.Phase == model.PhaseFinished {
			s.enqueueResult(*e.Snapshot)
			s.evict(sess, "finished")
		}
	case game.EventQuit:
		s.saveSnapshot(model.Snapshot{
			SessionID:    sess.ID,
			Phase:        model.PhaseQuit,
			UpdatedAt:    time.Now(),
			SessionState: model.NewSessionState(),
		})
		s.evict(sess, "quit")
	}
}

func (s *SessionService) saveSnapshot(snap model.Snapshot) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		s.log.Warn().Err(err).Str("session_id", snap.SessionID.String()).Msg("Failed to save snapshot")
	}
}

func (s *SessionService) enqueueResult(snap model.Snapshot) {
	if s.store == nil || snap.Summary == nil {
		return
	}
	result := &model.GameResult{
		ID:         uuid.New(),
		SessionID:  snap.SessionID,
		Difficulty: snap.Difficulty,
		FinishedAt: snap.UpdatedAt,
		Summary:    *snap.Summary,
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.EnqueueResult(ctx, result); err != nil {
		s.log.Error().Err(err).Str("session_id", snap.SessionID.String()).Msg("Failed to queue result")
	}
}

// evict removes the session from memory and stops its controller. Safe to
// call more than once.
func (s *SessionService) evict(sess *Session, reason string) {
	s.mu.Lock()
	_, live := s.sessions[sess.ID]
	delete(s.sessions, sess.ID)
	s.mu.Unlock()
	if !live {
		return
	}

	sess.cancel()
	sess.hub.close()
	s.metrics.SessionClosed(reason)
	s.log.Info().Str("session_id", sess.ID.String()).Str("reason", reason).Msg("Session closed")
}

// ────────────────────────────────────────────────────────────────────────────
// Hub
// ────────────────────────────────────────────────────────────────────────────

// hub is the controller's Listener. Events are queued for the pump. When the
// queue is full, terminal events wait for room and any other event is
// dropped and reported to onDrop.
type hub struct {
	events    chan game.Event
	quit      chan struct{}
	closeOnce sync.Once
	onDrop    func(game.Event)

	mu  sync.Mutex
	sub chan game.Event
}

func newHub(size int, onDrop func(game.Event)) *hub {
	return &hub{
		events: make(chan game.Event, size),
		quit:   make(chan struct{}),
		onDrop: onDrop,
	}
}

func (h *hub) Emit(e game.Event) {
	select {
	case <-h.quit:
		return
	default:
	}

	if terminal(e) {
		select {
		case h.events <- e:
		case <-h.quit:
		}
		return
	}
	select {
	case h.events <- e:
	default:
		if h.onDrop != nil {
			h.onDrop(e)
		}
	}
}

// terminal reports whether e ends the session for its listeners.
func terminal(e game.Event) bool {
	switch e.Type {
	case game.EventFinished, game.EventQuit:
		return true
	case game.EventState:
		return e.Snapshot != nil && e.Snapshot.Phase.Terminal()
	}
	return false
}

func (h *hub) close() {
	h.closeOnce.Do(func() { close(h.quit) })
}

func (h *hub) closed() bool {
	select {
	case <-h.quit:
		return true
	default:
		return false
	}
}

func (h *hub) subscribe() (chan game.Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed() {
		return nil, ErrSessionNotFound
	}
	if h.sub != nil {
		return nil, ErrSessionAttached
	}
	h.sub = make(chan game.Event, subscriberBuffer)
	return h.sub, nil
}

func (h *hub) unsubscribe(ch chan game.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sub == ch {
		h.sub = nil
	}
}

func (h *hub) attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sub != nil
}

// forward hands e to the attached stream, dropping it if the stream lags.
func (h *hub) forward(e game.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sub == nil {
		return
	}
	select {
	case h.sub <- e:
	default:
	}
}

// closeSubscriber closes the attached stream's channel once the pump exits.
func (h *hub) closeSubscriber() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sub != nil {
		close(h.sub)
		h.sub = nil
	}
}
