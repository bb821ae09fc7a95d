package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/claimsnet/claims/internal/platform/apperr"
)

// ErrorBody is the JSON envelope of every failed request.
type ErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// StatusFor maps an error to its HTTP status code and client message.
func StatusFor(err error) (int, ErrorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, ErrorBody{Message: fmt.Sprintf("%v", he.Message)}
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		body := ErrorBody{Message: ae.Message, Field: ae.Field}
		switch ae.Kind {
		case apperr.KindValidation:
			return http.StatusBadRequest, body
		case apperr.KindNotFound:
			return http.StatusNotFound, body
		case apperr.KindConflict:
			return http.StatusConflict, body
		}
	}
	return http.StatusInternalServerError, ErrorBody{Message: "internal server error"}
}

// ErrorHandler writes the {success:false, message} envelope.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, body := StatusFor(err)
		if code >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Str("path", c.Request().URL.Path).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}
