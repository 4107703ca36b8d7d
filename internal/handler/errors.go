package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/handgame-backend/internal/game"
	"github.com/stemsi/handgame-backend/internal/response"
	"github.com/stemsi/handgame-backend/internal/service"
	ws "github.com/stemsi/handgame-backend/internal/websocket"
)

// classify maps a domain error to its HTTP status and API code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, service.ErrSessionAttached):
		return http.StatusConflict, response.ErrSessionAttached
	case errors.Is(err, game.ErrSessionClosed):
		return http.StatusGone, response.ErrSessionClosed
	case errors.Is(err, game.ErrBusy):
		return http.StatusConflict, response.ErrBusy
	case errors.Is(err, game.ErrInvalidPhase):
		return http.StatusConflict, response.ErrInvalidPhase
	case errors.Is(err, game.ErrStaleVerdict):
		return http.StatusConflict, response.ErrStaleVerdict
	case errors.Is(err, game.ErrCaptureUnavailable):
		return http.StatusUnprocessableEntity, response.ErrCaptureUnavailable
	case errors.Is(err, game.ErrTransport):
		return http.StatusBadGateway, response.ErrUpstream
	case errors.Is(err, ws.ErrFrameTooLarge):
		return http.StatusRequestEntityTooLarge, response.ErrFrameTooLarge
	case errors.Is(err, ws.ErrMalformedFrame):
		return http.StatusBadRequest, response.ErrInvalidPayload
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// fail writes the error response for err.
func fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.Fail(c, status, code)
}
