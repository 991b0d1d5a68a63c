package api

import (
	"github.com/gin-gonic/gin"
)

func GetDashboard(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		dashboard, err := app.Dashboard().Dashboard(c.Request.Context(), user, c.Query("app"))
		if err != nil {
			HandleError(c, app.Logger(), err, "Failed to build dashboard")
			return
		}
		HandleSuccess(c, app.Logger(), dashboard, nil)
	}
}

func GetMicroapps(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		apps := app.Dashboard().Microapps()
		HandleSuccess(c, app.Logger(), apps, map[string]any{"count": len(apps)})
	}
}
