package gateway

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"omnigate/providers/ai"
)

// requestError carries a transport status alongside the message so the error
// handler can render a uniform JSON body.
type requestError struct {
	Status  int
	Message string
	Type    string
	Code    string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

func writeError(c echo.Context, status int, message, errType, code string) error {
	var payload errorBody
	payload.Error.Message = message
	payload.Error.Type = errType
	payload.Error.Code = code
	return c.JSON(status, payload)
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type, reqErr.Code)
		return
	}

	var classified *ai.RequestError
	if errors.As(err, &classified) {
		_ = writeError(c, statusForKind(classified.Kind), classified.Message, string(classified.Kind), classified.Code)
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		_ = writeError(c, httpErr.Code, http.StatusText(httpErr.Code), "invalid_request_error", "")
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "internal server error", "server_error", "")
}

// statusForKind maps the error taxonomy to HTTP status codes for failures
// that happen before any response bytes are committed.
func statusForKind(kind ai.ErrorKind) int {
	switch kind {
	case ai.ErrorKindValidation:
		return http.StatusBadRequest
	case ai.ErrorKindAuth:
		return http.StatusUnauthorized
	case ai.ErrorKindCircuitOpen:
		return http.StatusServiceUnavailable
	case ai.ErrorKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
