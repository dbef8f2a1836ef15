// internal/common/errors/handler.go
package errors

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// WriteFunc renders a failure body. The gateway passes its envelope writer.
type WriteFunc func(w http.ResponseWriter, status int, message, details string) error

// ErrorHandler answers gateway-originated failures through a WriteFunc.
type ErrorHandler struct {
	logger Logger
	write  WriteFunc
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger, write WriteFunc) *ErrorHandler {
	return &ErrorHandler{logger: logger, write: write}
}

// Respond normalizes err, logs it and writes the failure body.
func (h *ErrorHandler) Respond(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := AsStandardError(err)
	status := GetHTTPStatus(stdErr.Code)

	if retryAfter, ok := stdErr.Metadata["retryAfter"].(time.Duration); ok && retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}

	h.logError(r, stdErr, status)
	if err := h.write(w, status, stdErr.Message, stdErr.Details); err != nil {
		h.logger.Warn("failed to write error response", map[string]interface{}{"error": err.Error()})
	}
}

func (h *ErrorHandler) logError(r *http.Request, stdErr *StandardError, status int) {
	fields := map[string]interface{}{
		"method":        r.Method,
		"path":          r.URL.Path,
		"status":        status,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields)
		return
	}
	h.logger.Warn("request rejected", fields)
}
