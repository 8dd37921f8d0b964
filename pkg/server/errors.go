package server

import (
	"net/http"

	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// StatusClientClosedRequest is used when the caller went away mid-ask.
const StatusClientClosedRequest = 499

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Stage string `json:"stage,omitempty"`
}

var statusByKind = map[assistant.Kind]int{
	assistant.KindInvalidRequest:      http.StatusBadRequest,
	assistant.KindBusy:                http.StatusConflict,
	assistant.KindConfiguration:       http.StatusInternalServerError,
	assistant.KindUpstreamUnavailable: http.StatusServiceUnavailable,
	assistant.KindRunFailed:           http.StatusBadGateway,
	assistant.KindRunCancelled:        http.StatusConflict,
	assistant.KindRunTimeout:          http.StatusGatewayTimeout,
	assistant.KindCancelled:           StatusClientClosedRequest,
}

// StatusFor maps an error to the HTTP status reported for it.
func StatusFor(err error) int {
	if status, ok := statusByKind[assistant.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func errorResponse(err error) ErrorResponse {
	ret := ErrorResponse{
		Error: err.Error(),
		Kind:  string(assistant.KindOf(err)),
	}
	if stage, ok := assistant.StageOf(err); ok {
		ret.Stage = string(stage)
	}
	return ret
}

func writeError(c echo.Context, err error) error {
	return c.JSON(StatusFor(err), errorResponse(err))
}

// ErrorHandler renders errors that escape handlers, including echo's own
// routing errors, in the same shape as handler errors.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		_ = c.JSON(he.Code, ErrorResponse{Error: msg, Kind: string(kindForStatus(he.Code))})
		return
	}
	_ = writeError(c, err)
}

func kindForStatus(status int) assistant.Kind {
	switch {
	case status >= 500:
		return assistant.KindUnknown
	default:
		return assistant.KindInvalidRequest
	}
}
