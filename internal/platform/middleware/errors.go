package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorResponse is the body of every error the API returns.
type ErrorResponse struct {
	Message string `json:"message"`
}

// errorStatus is the status ErrorHandler will write for err.
func errorStatus(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders handler errors as {"message": "..."}. echo.HTTPError
// keeps its code; an expired request deadline becomes 504; anything else is
// logged and reported as a generic 500.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := errorStatus(err)
		msg := http.StatusText(code)

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			if he.Internal != nil {
				logger.Debug().Err(he.Internal).Int("status", code).Msg("http error")
			}
			msg = fmt.Sprint(he.Message)
		case code == http.StatusGatewayTimeout:
			msg = "request timed out"
		default:
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, ErrorResponse{Message: msg})
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}
