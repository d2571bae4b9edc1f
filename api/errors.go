package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jacentio/syllabus/tree"
)

var errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")

// response is the envelope of every JSON reply.
type response struct {
	Success       bool        `json:"success"`
	Message       string      `json:"message"`
	Data          interface{} `json:"data,omitempty"`
	ModifiedCount *int        `json:"modifiedCount,omitempty"`
}

func success(ctx echo.Context, message string, data interface{}) error {
	return ctx.JSON(http.StatusOK, response{Success: true, Message: message, Data: data})
}

func successModified(ctx echo.Context, message string, data interface{}, modified int) error {
	return ctx.JSON(http.StatusOK, response{Success: true, Message: message, Data: data, ModifiedCount: &modified})
}

// requestError is a request rejected before any engine call.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func (e *requestError) Is(target error) bool { return target == tree.ErrInvalidInput }

func badRequest(format string, args ...interface{}) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// statusOf maps an error to its HTTP status and the message shown to callers.
func statusOf(err error) (int, string) {
	var herr *echo.HTTPError
	if errors.As(err, &herr) {
		if inner, ok := herr.Internal.(*echo.HTTPError); ok {
			herr = inner
		}
		if msg, ok := herr.Message.(string); ok {
			return herr.Code, msg
		}
		return herr.Code, http.StatusText(herr.Code)
	}

	switch {
	case errors.Is(err, tree.ErrInvalidInput), errors.Is(err, tree.ErrConflictScope):
		return http.StatusBadRequest, errors.Cause(err).Error()
	case errors.Is(err, tree.ErrNotFound):
		return http.StatusNotFound, errors.Cause(err).Error()
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

// newHTTPErrorHandler renders every failure as a {success:false} envelope
// and logs server errors.
func newHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message := statusOf(err)
		if code >= http.StatusInternalServerError {
			log.Error().Err(err).
				Str("method", ctx.Request().Method).
				Str("path", ctx.Path()).
				Msg("request failed")
			if ctx.Echo().Debug {
				message = err.Error()
			}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, response{Success: false, Message: message})
		}
		if err != nil {
			log.Error().Err(err).Msg("writing error response")
		}
	}
}
