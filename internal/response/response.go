package response

import (
	"net/http"

	"github.com/Luis200410/Improve/internal"
)

type APIResponse struct {
	Data  interface{}        `json:"data,omitempty"`
	Meta  map[string]any     `json:"meta,omitempty"`
	Error *internal.AppError `json:"error,omitempty"`
}

func Success(data interface{}, meta map[string]any) APIResponse {
	return APIResponse{Data: data, Meta: meta, Error: nil}
}

func BadRequest(kind, msg string) APIResponse {
	return Failure(http.StatusBadRequest, kind, msg)
}

func Unauthorized(msg string) APIResponse {
	return Failure(http.StatusUnauthorized, internal.ErrorKind(internal.ErrUnauthorized), msg)
}

func InternalError(msg string) APIResponse {
	return Failure(http.StatusInternalServerError, "internal", msg)
}

func Failure(status int, kind, msg string) APIResponse {
	appErr := internal.NewAppError(status, msg)
	appErr.Kind = kind
	return APIResponse{Error: appErr}
}
