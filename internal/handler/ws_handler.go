package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/handgame-backend/internal/game"
	"github.com/stemsi/handgame-backend/internal/model"
	"github.com/stemsi/handgame-backend/internal/response"
	"github.com/stemsi/handgame-backend/internal/service"
	ws "github.com/stemsi/handgame-backend/internal/websocket"
)

const outboxSize = 16

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a game session to the player's browser and feeds webcam
// frames and player actions back into it.
type WSHandler struct {
	sessionService *service.SessionService
	maxFrameBytes  int64
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, maxFrameBytes int64, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		maxFrameBytes:  maxFrameBytes,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream
func (h *WSHandler) SessionStream(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	sess, err := h.sessionService.Get(id)
	if err != nil {
		fail(c, err)
		return
	}
	events, detach, err := h.sessionService.Attach(id)
	if err != nil {
		fail(c, err)
		return
	}
	defer detach()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(ws.MessageLimit(h.maxFrameBytes))

	wsLog := h.log.With().Str("session_id", id.String()).Logger()
	wsLog.Info().Msg("Player connected")

	s := &stream{
		h:      h,
		sess:   sess,
		conn:   conn,
		log:    wsLog,
		outbox: make(chan any, outboxSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.writeLoop(events)

	if snap, err := sess.Controller.Snapshot(); err == nil {
		s.send(ws.StateResponse{Event: ws.EventState, Session: snap})
	}
	s.readLoop()
	close(s.stop)
	<-s.done
}

// stream is one attached connection. Only writeLoop writes to conn.
type stream struct {
	h      *WSHandler
	sess   *service.Session
	conn   *websocket.Conn
	log    zerolog.Logger
	outbox chan any
	// stop is closed when the reader exits; done when the writer has.
	stop chan struct{}
	done chan struct{}
}

func (s *stream) writeLoop(events <-chan game.Event) {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case e, ok := <-events:
			if !ok {
				_ = ws.WriteClose(s.conn, "session ended")
				_ = s.conn.Close()
				return
			}
			payload, ok := ws.FromGameEvent(e)
			if !ok {
				continue
			}
			if err := ws.WriteTyped(s.conn, payload); err != nil {
				s.log.Debug().Err(err).Msg("Write failed")
				_ = s.conn.Close()
				return
			}
		case reply := <-s.outbox:
			if err := ws.WriteTyped(s.conn, reply); err != nil {
				s.log.Debug().Err(err).Msg("Write failed")
				_ = s.conn.Close()
				return
			}
		}
	}
}

// send queues a direct reply, giving up once the writer has exited.
func (s *stream) send(v any) {
	select {
	case s.outbox <- v:
	case <-s.done:
	}
}

func (s *stream) sendError(err error) {
	_, code := classify(err)
	s.sendCode(code)
}

func (s *stream) sendCode(code response.ErrCode) {
	s.send(ws.NewError(string(code), response.GetMessage(code)))
}

func (s *stream) readLoop() {
	for {
		var msg ws.Request
		if err := ws.ReadJSON(s.conn, &msg); err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				s.log.Warn().Err(err).Msg("Client message over limit")
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure):
				s.log.Warn().Err(err).Msg("Unexpected close")
			default:
				s.log.Debug().Msg("Connection closed")
			}
			return
		}

		if err := s.dispatch(&msg); err != nil {
			s.sendError(err)
		}
	}
}

// dispatch applies one client action. Returned errors are reported to the
// client; the connection stays open.
func (s *stream) dispatch(msg *ws.Request) error {
	ctrl := s.sess.Controller

	switch msg.Action {
	case ws.ActionFrame:
		frame, contentType, err := ws.DecodeFrame(msg.Image, s.h.maxFrameBytes)
		if err != nil {
			return err
		}
		s.sess.Frames.Put(frame, contentType)
		return nil
	case ws.ActionCapture:
		return ctrl.ArmCapture()
	case ws.ActionSkip:
		return ctrl.Skip()
	case ws.ActionConfirm:
		return ctrl.ConfirmSolved()
	case ws.ActionPrompt:
		return ctrl.RequestPrompt()
	case ws.ActionStart:
		return s.restart(msg.Difficulty)
	case ws.ActionQuit:
		return ctrl.Quit()
	case ws.ActionPing:
		s.send(ws.PongResponse{Event: ws.EventPong})
		return nil
	default:
		s.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		s.sendCode(response.ErrInvalidAction)
		return nil
	}
}

// restart starts the session over. An empty difficulty keeps the current one.
func (s *stream) restart(raw string) error {
	difficulty := model.Difficulty(raw)
	if raw == "" {
		snap, err := s.sess.Controller.Snapshot()
		if err != nil {
			return err
		}
		difficulty = snap.Difficulty
	}
	if !difficulty.Valid() {
		s.sendCode(response.ErrValidation)
		return nil
	}
	return s.sess.Controller.StartSession(difficulty)
}
