package router

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"web2json/internal/handlers"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.Log))

	api := r.Group("/api")

	parser := api.Group("/parser")
	parser.POST("/generate", h.CreateTask)
	parser.POST("/generate-preliminary-schema", h.PreliminarySchema)
	parser.GET("/status/:id", h.GetStatusTask)
	parser.POST("/cancel/:id", h.CancelTask)
	parser.GET("/download/:id", h.Download)
	parser.GET("/results/:id", h.Results)

	api.POST("/xpath/generate", h.GenerateXPath)

	api.GET("/config", h.GetConfig)
	api.POST("/config", h.UpdateConfig)

	return r
}

// requestLogger tags every request with an X-Request-ID, reusing the caller's
// id when it is a valid uuid.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		log.Debug("request finished",
			slog.String("requestID", requestID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Int64("durationMs", time.Since(start).Milliseconds()),
		)
	}
}
