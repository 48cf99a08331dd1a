package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/auth"
)

func NewRouter(app App, authProvider auth.Provider) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), MetricsMiddleware(app.Metrics()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m := app.Metrics(); m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	protected := r.Group("/", auth.AuthMiddleware(authProvider))
	protected.GET("/api/connections", GetConnections(app))
	protected.PUT("/api/connections/:provider", PutConnection(app))
	protected.DELETE("/api/connections/:provider", DeleteConnection(app))
	protected.POST("/api/connections/:provider/sync", PostSync(app))

	protected.GET("/timeline", GetTimeline(app))
	protected.POST("/timeline", PostTimelineEntry(app))
	protected.GET("/timeline/:id", GetTimelineEntry(app))
	protected.PUT("/timeline/:id", PutTimelineEntry(app))
	protected.DELETE("/timeline/:id", DeleteTimelineEntry(app))
	return r
}
