package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/handgame-backend/internal/model"
	"github.com/stemsi/handgame-backend/internal/repository"
	"github.com/stemsi/handgame-backend/internal/response"
	"github.com/stemsi/handgame-backend/internal/validator"
)

type ResultHandler struct {
	resultRepo repository.GameResultRepository
	log        zerolog.Logger
}

func NewResultHandler(resultRepo repository.GameResultRepository, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		resultRepo: resultRepo,
		log:        log.With().Str("component", "result_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/results?difficulty=&page=&per_page=
func (h *ResultHandler) List(c *gin.Context) {
	var q model.ListResultsQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	q.Normalize()

	results, total, err := h.resultRepo.List(c.Request.Context(), q)
	if err != nil {
		h.log.Error().Err(err).Msg("List results failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if results == nil {
		results = []*model.GameResult{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results},
		response.NewPagination(q.Page, q.PerPage, total))
}
