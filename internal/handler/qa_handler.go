package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mtrtrdev/localQA/internal/pkg/errcode"
	"github.com/mtrtrdev/localQA/internal/pkg/response"
	"github.com/mtrtrdev/localQA/internal/service"
)

type QAHandler struct {
	qa *service.QAService
}

func NewQAHandler(qa *service.QAService) *QAHandler {
	return &QAHandler{qa: qa}
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

func (h *QAHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	answer, err := h.qa.Ask(c.Request.Context(), c.Param("name"), req.Question, req.TopK)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, answer)
}

func (h *QAHandler) Stats(c *gin.Context) {
	report, err := h.qa.Stats(c.Request.Context(), c.Param("name"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, report)
}
