package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter mounts every route. authMiddleware guards the /api group.
func NewRouter(app App, authMiddleware gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), TracingMiddleware(), AccessLogMiddleware(app.Logger()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := r.Group("/api", authMiddleware)
	protected.GET("/pomodoro/summary", GetPomodoroSummary(app))
	protected.POST("/pomodoro/start", PostPomodoroStart(app))
	protected.POST("/pomodoro/complete", PostPomodoroComplete(app))
	protected.POST("/pomodoro/cancel", PostPomodoroCancel(app))
	protected.GET("/dashboard", GetDashboard(app))
	protected.GET("/microapps", GetMicroapps(app))

	return r
}
