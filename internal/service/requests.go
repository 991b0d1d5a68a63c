package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Luis200410/Improve/internal"
)

var validate = newValidator()

// newValidator reports fields by their JSON name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// StartRequest carries optional timer settings. It is never rejected: missing
// values fall back to the defaults and values below one are raised to one.
type StartRequest struct {
	FocusMinutes          *int `json:"focus_minutes"`
	ShortBreakMinutes     *int `json:"short_break_minutes"`
	LongBreakMinutes      *int `json:"long_break_minutes"`
	CyclesBeforeLongBreak *int `json:"cycles_before_long_break"`
}

type CompleteRequest struct {
	SessionID        string `json:"session_id" validate:"required"`
	CompletedMinutes *int   `json:"completed_minutes"`
}

type CancelRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

func ValidateCompleteRequest(req *CompleteRequest) error {
	req.SessionID = strings.TrimSpace(req.SessionID)
	return validationError(validate.Struct(req))
}

func ValidateCancelRequest(req *CancelRequest) error {
	req.SessionID = strings.TrimSpace(req.SessionID)
	return validationError(validate.Struct(req))
}

// validationError turns validator failures into a ValidationError naming the
// first offending field.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		f := fields[0]
		if f.Tag() == "required" {
			return internal.NewValidationError("%s is required", f.Field())
		}
		return internal.NewValidationError("%s is invalid", f.Field())
	}
	return internal.NewValidationError("%v", err)
}
