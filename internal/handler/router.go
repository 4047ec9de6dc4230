package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mtrtrdev/localQA/internal/middleware"
)

type RouterDeps struct {
	Databases *DatabaseHandler
	Documents *DocumentHandler
	QA        *QAHandler

	// AskRateWindow throttles the generation-backed ask endpoint;
	// zero disables throttling.
	AskRateWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/databases", deps.Databases.Create)
	api.GET("/databases", deps.Databases.List)
	api.DELETE("/databases/:name", deps.Databases.Delete)
	api.POST("/databases/:name/clear", deps.Databases.Clear)
	api.GET("/databases/:name/stats", deps.QA.Stats)

	api.POST("/databases/:name/documents", deps.Documents.Ingest)
	api.GET("/databases/:name/documents/:source_id", deps.Documents.GetText)

	askGroup := api.Group("")
	askGroup.Use(middleware.RateLimit(deps.AskRateWindow))
	askGroup.POST("/databases/:name/ask", deps.QA.Ask)
}
