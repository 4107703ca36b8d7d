package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/handgame-backend/internal/model"
	"github.com/stemsi/handgame-backend/internal/response"
	"github.com/stemsi/handgame-backend/internal/service"
	"github.com/stemsi/handgame-backend/internal/validator"
)

type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Create godoc
// POST /api/v1/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessionService.Create(model.Difficulty(req.Difficulty))
	if err != nil {
		fail(c, err)
		return
	}

	snap, err := sess.Controller.Snapshot()
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, gin.H{"session_id": sess.ID, "session": snap})
}

// Get godoc
// GET /api/v1/sessions/:session_id
func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	snap, err := h.sessionService.Snapshot(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": snap})
}

// Restart godoc
// POST /api/v1/sessions/:session_id/restart
func (h *SessionHandler) Restart(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.Restart(id, model.Difficulty(req.Difficulty)); err != nil {
		fail(c, err)
		return
	}

	snap, err := h.sessionService.Snapshot(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": snap})
}

// Quit godoc
// DELETE /api/v1/sessions/:session_id
func (h *SessionHandler) Quit(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	if err := h.sessionService.Quit(id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "session quit"})
}

// sessionID parses the :session_id param, writing the error response itself.
func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
