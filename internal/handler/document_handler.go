package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mtrtrdev/localQA/internal/filestore"
	"github.com/mtrtrdev/localQA/internal/model"
	"github.com/mtrtrdev/localQA/internal/pkg/errcode"
	"github.com/mtrtrdev/localQA/internal/pkg/response"
	"github.com/mtrtrdev/localQA/internal/service"
)

type DocumentHandler struct {
	qa      *service.QAService
	archive filestore.Store
}

func NewDocumentHandler(qa *service.QAService, archive filestore.Store) *DocumentHandler {
	return &DocumentHandler{qa: qa, archive: archive}
}

type ingestRequest struct {
	SourceID string `json:"source_id"`
	Filename string `json:"filename"`
	FileType string `json:"file_type"`
	Text     string `json:"text"`
}

func (h *DocumentHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.qa.Ingest(c.Request.Context(), c.Param("name"), model.Document{
		SourceID: req.SourceID,
		Filename: req.Filename,
		FileType: model.FileType(req.FileType),
		Text:     req.Text,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

// GetText serves the archived raw text of a document, redirecting when
// the archive backend has its own public endpoint.
func (h *DocumentHandler) GetText(c *gin.Context) {
	if h.archive == nil {
		response.Error(c, errcode.ErrNotFound, "document archive not configured")
		return
	}
	key := filestore.Key(c.Param("name"), c.Param("source_id"))
	rc, err := h.archive.Open(c.Request.Context(), key)
	if err != nil {
		if h.archive.Type() == "s3" {
			c.Redirect(http.StatusFound, h.archive.URL(key, requestBaseURL(c)))
			return
		}
		response.Error(c, errcode.ErrNotFound, "document not found")
		return
	}
	defer rc.Close()
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}

func requestBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
