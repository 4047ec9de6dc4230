package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mtrtrdev/localQA/internal/database"
	"github.com/mtrtrdev/localQA/internal/pkg/errcode"
	"github.com/mtrtrdev/localQA/internal/pkg/response"
	"github.com/mtrtrdev/localQA/internal/service"
)

type DatabaseHandler struct {
	databases *database.Manager
	qa        *service.QAService
}

func NewDatabaseHandler(databases *database.Manager, qa *service.QAService) *DatabaseHandler {
	return &DatabaseHandler{databases: databases, qa: qa}
}

type createDatabaseRequest struct {
	Name string `json:"name"`
}

func (h *DatabaseHandler) Create(c *gin.Context) {
	var req createDatabaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.databases.Create(c.Request.Context(), req.Name); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"name": req.Name})
}

func (h *DatabaseHandler) List(c *gin.Context) {
	infos, err := h.databases.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"databases": infos})
}

// Delete and Clear go through the service so archived document texts
// are removed together with the index.
func (h *DatabaseHandler) Delete(c *gin.Context) {
	if err := h.qa.DeleteDatabase(c.Request.Context(), c.Param("name")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *DatabaseHandler) Clear(c *gin.Context) {
	if err := h.qa.ClearDatabase(c.Request.Context(), c.Param("name")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}
