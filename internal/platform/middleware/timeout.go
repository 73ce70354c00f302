package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout attaches a deadline to the request context. Handlers and the
// store observe it through ctx; when the handler gives up because the deadline
// passed, the client receives 504 instead of a generic 500.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
				var he *echo.HTTPError
				if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
					return err
				}
				return echo.NewHTTPError(http.StatusGatewayTimeout, map[string]string{
					"error": "request processing exceeded the allowed time limit",
				}).SetInternal(err)
			}
			return err
		}
	}
}
