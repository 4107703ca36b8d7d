package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/handgame-backend/internal/response"
	"github.com/stemsi/handgame-backend/internal/service"
)

type WordHandler struct {
	sessionService *service.SessionService
}

func NewWordHandler(sessionService *service.SessionService) *WordHandler {
	return &WordHandler{sessionService: sessionService}
}

// Video godoc
// GET /api/v1/words/video?text=
func (h *WordHandler) Video(c *gin.Context) {
	text := strings.TrimSpace(c.Query("text"))
	if text == "" {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"text": "text is a required field",
		})
		return
	}

	video, err := h.sessionService.WordVideo(c.Request.Context(), text)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"video": video})
}
