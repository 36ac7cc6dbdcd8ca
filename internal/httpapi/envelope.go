package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// envelope is the JSend body of every response. Status follows the HTTP code.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func envelopeStatus(code int) string {
	switch {
	case code >= 500:
		return "error"
	case code >= 400:
		return "fail"
	default:
		return "success"
	}
}

// respond writes data or message under the status word that matches code.
// Server errors also carry the code in the body.
func respond(c echo.Context, code int, data any, message string) error {
	body := envelope{Status: envelopeStatus(code), Data: data}
	switch body.Status {
	case "error":
		body.Message = message
		body.Code = code
	case "fail":
		body.Message = message
	}
	return c.JSON(code, body)
}

func ok(c echo.Context, data any) error {
	return respond(c, http.StatusOK, data, "")
}

// invalid reports a request whose named field failed validation.
func invalid(c echo.Context, field, reason string) error {
	return respond(c, http.StatusBadRequest, map[string]any{
		"validation_errors": map[string]string{field: reason},
	}, "Validation failed")
}
