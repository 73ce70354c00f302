// Package respond maps service results and errors onto the JSON envelopes the
// API returns: {"message", "data"} on success and {"error", "fields"} on
// rejection.
package respond

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/frontdesk/internal/platform/db"
	"github.com/ehr/frontdesk/internal/platform/validation"
)

// Body is the success envelope.
type Body struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data"`
}

// ErrorBody is the rejection envelope.
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields validation.Errors `json:"fields,omitempty"`
}

// Message writes data with a user-facing message.
func Message(c echo.Context, code int, message string, data interface{}) error {
	return c.JSON(code, Body{Message: message, Data: data})
}

// Error converts err into an *echo.HTTPError carrying an ErrorBody.
// Unrecognised errors become 500 with a generic message; the underlying error
// stays available as the internal error for logging.
func Error(err error) error {
	if ve, ok := validation.As(err); ok {
		return echo.NewHTTPError(http.StatusUnprocessableEntity,
			ErrorBody{Error: "validation failed", Fields: ve}).SetInternal(err)
	}
	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrorBody{Error: err.Error()}).SetInternal(err)
	case errors.Is(err, db.ErrStaleWrite):
		return echo.NewHTTPError(http.StatusConflict, ErrorBody{Error: err.Error()}).SetInternal(err)
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return echo.NewHTTPError(http.StatusInternalServerError,
		ErrorBody{Error: "internal server error"}).SetInternal(err)
}

// BadRequest builds a 400 with msg.
func BadRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{Error: msg})
}
