package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Luis200410/Improve/internal"
	"github.com/Luis200410/Improve/internal/auth"
	"github.com/Luis200410/Improve/internal/response"
)

// StatusFor maps an error to its HTTP status. Domain errors are client
// errors; anything else is a server fault.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, internal.ErrValidation),
		errors.Is(err, internal.ErrNotFound),
		errors.Is(err, internal.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, internal.ErrUnauthorized):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func HandleError(c *gin.Context, logger internal.Logger, err error, msg string) {
	requestID := c.GetString("request_id")
	status := StatusFor(err)

	if status == http.StatusInternalServerError {
		logger.Errorf("[request_id=%s] %s: %v", requestID, msg, err)
		c.JSON(status, response.InternalError(msg))
		return
	}

	logger.Warnf("[request_id=%s] %s: %v", requestID, msg, err)
	detail := err.Error()
	var domainErr *internal.DomainError
	if errors.As(err, &domainErr) {
		detail = domainErr.Message
	}
	if status == http.StatusBadRequest {
		c.JSON(status, response.BadRequest(internal.ErrorKind(err), detail))
		return
	}
	c.JSON(status, response.Failure(status, internal.ErrorKind(err), detail))
}

func HandleSuccess(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	respond(c, logger, http.StatusOK, data, meta)
}

func HandleCreated(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	respond(c, logger, http.StatusCreated, data, meta)
}

func respond(c *gin.Context, logger internal.Logger, status int, data interface{}, meta map[string]any) {
	requestID := c.GetString("request_id")
	logger.Debugf("[request_id=%s] %s %s -> %d", requestID, c.Request.Method, c.FullPath(), status)
	c.JSON(status, response.Success(data, meta))
}

// bindJSON decodes the request body into dst. An empty body leaves dst at its
// zero value.
func bindJSON(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		return internal.NewValidationError("invalid JSON body: %v", err)
	}
	return nil
}

func currentUser(c *gin.Context) *internal.User {
	user, ok := auth.CurrentUser(c)
	if !ok {
		panic("api: handler mounted without auth middleware")
	}
	return user
}
