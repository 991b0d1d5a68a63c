package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Luis200410/Improve/internal/service"
)

func GetPomodoroSummary(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		summary, err := app.Pomodoro().Summary(c.Request.Context(), user)
		if err != nil {
			HandleError(c, app.Logger(), err, "Failed to load pomodoro summary")
			return
		}
		HandleSuccess(c, app.Logger(), summary, nil)
	}
}

func PostPomodoroStart(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		var req service.StartRequest
		if err := bindJSON(c, &req); err != nil {
			HandleError(c, app.Logger(), err, "Invalid start request")
			return
		}

		snapshot, err := app.Pomodoro().Start(c.Request.Context(), user, &req)
		if err != nil {
			HandleError(c, app.Logger(), err, "Failed to start session")
			return
		}
		HandleCreated(c, app.Logger(), snapshot, nil)
	}
}

func PostPomodoroComplete(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		var req service.CompleteRequest
		if err := bindJSON(c, &req); err != nil {
			HandleError(c, app.Logger(), err, "Invalid complete request")
			return
		}
		if err := service.ValidateCompleteRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, "Complete validation failed")
			return
		}

		result, err := app.Pomodoro().Complete(c.Request.Context(), user, &req)
		if err != nil {
			HandleError(c, app.Logger(), err, "Failed to complete session")
			return
		}
		HandleSuccess(c, app.Logger(), result, nil)
	}
}

func PostPomodoroCancel(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		var req service.CancelRequest
		if err := bindJSON(c, &req); err != nil {
			HandleError(c, app.Logger(), err, "Invalid cancel request")
			return
		}
		if err := service.ValidateCancelRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, "Cancel validation failed")
			return
		}

		if err := app.Pomodoro().Cancel(c.Request.Context(), user, &req); err != nil {
			HandleError(c, app.Logger(), err, "Failed to cancel session")
			return
		}
		HandleSuccess(c, app.Logger(), gin.H{"status": "cancelled", "session_id": req.SessionID}, nil)
	}
}
