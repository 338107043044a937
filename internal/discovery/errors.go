package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorCode is the coarse failure taxonomy recorded on hero rows and stage logs.
type ErrorCode string

// Failure codes. DB_WRITE_ERROR covers benign duplicate-key races as well.
const (
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodePaywallOrBlock      ErrorCode = "PAYWALL_OR_BLOCK"
	CodeHTTP4xx             ErrorCode = "HTTP_4XX"
	CodeHTTP5xx             ErrorCode = "HTTP_5XX"
	CodeParseFailure        ErrorCode = "PARSE_FAILURE"
	CodeRendererUnavailable ErrorCode = "RENDERER_UNAVAILABLE"
	CodeImageExtractFailure ErrorCode = "IMAGE_EXTRACT_FAILURE"
	CodeDBWriteError        ErrorCode = "DB_WRITE_ERROR"
	CodeUnknown             ErrorCode = "UNKNOWN_ERROR"
)

// Renderer unavailability reasons returned instead of errors so the fetch
// branch chain can continue.
const (
	RenderDisabled     = "renderer_disabled"
	RenderNotInstalled = "dependency_not_installed"
	RenderNotAvailable = "dependency_not_available"
)

// ErrRendererUnavailable signals that headless rendering cannot run in this
// build or environment.
var ErrRendererUnavailable = errors.New("renderer unavailable")

// StageError wraps a pipeline failure with its taxonomy code so the
// orchestrator can record it without reparsing error strings.
type StageError struct {
	Code ErrorCode
	Err  error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError builds a StageError with the given code.
func NewStageError(code ErrorCode, err error) *StageError {
	return &StageError{Code: code, Err: err}
}

// ClassifyError maps an arbitrary error to the failure taxonomy.
func ClassifyError(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}
	if errors.Is(err, ErrRendererUnavailable) {
		return CodeRendererUnavailable
	}
	return CodeUnknown
}

// ClassifyStatus maps an HTTP status code to a fetch class.
func ClassifyStatus(code int) FetchClass {
	switch {
	case code == 401 || code == 403:
		return FetchPaywallOrBlock
	case code >= 200 && code < 300:
		return FetchSuccess
	default:
		return FetchError
	}
}

// FetchClassToCode translates a fetch class into the error taxonomy.
func FetchClassToCode(class FetchClass, statusCode int) ErrorCode {
	switch class {
	case FetchTimeout:
		return CodeTimeout
	case FetchPaywallOrBlock:
		return CodePaywallOrBlock
	case FetchError:
		if statusCode >= 500 {
			return CodeHTTP5xx
		}
		if statusCode >= 400 {
			return CodeHTTP4xx
		}
		return CodeUnknown
	default:
		return ""
	}
}
