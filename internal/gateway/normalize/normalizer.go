// Package normalize maps an upstream outcome onto the envelope the
// dashboard receives and the HTTP status to answer with.
package normalize

import (
	"encoding/json"
	"net/http"
	"strings"

	gwerrors "staffing-gateway/internal/common/errors"
	"staffing-gateway/internal/gateway/envelope"
	"staffing-gateway/internal/gateway/upstream"
)

const MalformedSuccessMessage = "Invalid response from external API"

// Result is a normalized outcome ready for the envelope writer.
type Result struct {
	Status   int
	Envelope envelope.Envelope
	Code     gwerrors.ErrorCode
}

// Normalize classifies o. transportMessage is the resource-specific text
// reported when the call never completed.
func Normalize(o upstream.Outcome, transportMessage string) Result {
	switch v := o.(type) {
	case upstream.Ok:
		status := v.Status
		if status == http.StatusResetContent {
			// The dashboard has no form to reset; answer like any other
			// bodiless success.
			status = http.StatusNoContent
		}
		return Result{Status: status, Envelope: envelope.Success(v.Body)}

	case upstream.UpstreamFailure:
		msg, details := messages(v)
		return Result{
			Status:   v.Status,
			Envelope: envelope.Failure(msg, details),
			Code:     gwerrors.CodeForUpstreamStatus(v.Status),
		}

	case upstream.MalformedSuccess:
		return Result{
			Status:   http.StatusBadGateway,
			Envelope: envelope.Failure(MalformedSuccessMessage, v.Cause),
			Code:     gwerrors.ErrCodeMalformedUpstreamSuccess,
		}

	case upstream.TransportFailure:
		return Result{
			Status:   http.StatusInternalServerError,
			Envelope: envelope.Failure(transportMessage, v.Cause),
			Code:     gwerrors.ErrCodeTransportFailure,
		}
	}

	return Result{
		Status:   http.StatusInternalServerError,
		Envelope: envelope.Failure(transportMessage, "unrecognized upstream outcome"),
		Code:     gwerrors.ErrCodeInternal,
	}
}

// messages picks the primary and secondary error text from an upstream
// failure body. Upstream endpoints disagree on field names, so several are
// tried in order.
func messages(f upstream.UpstreamFailure) (string, string) {
	obj, isObj := f.Parsed.(map[string]interface{})
	if !isObj {
		if s, ok := f.Parsed.(string); ok && strings.TrimSpace(s) != "" {
			return s, ""
		}
		return fallback(f), ""
	}

	var msg, usedKey string
	for _, key := range []string{"error", "message", "detail"} {
		if s := stringField(obj, key); s != "" {
			msg, usedKey = s, key
			break
		}
	}

	details := stringField(obj, "details")
	if details == "" && usedKey == "error" {
		details = stringField(obj, "message")
	}
	if details == "" {
		for _, key := range []string{"detail", "error", "details"} {
			if v, ok := obj[key]; ok && v != nil {
				if _, isString := v.(string); !isString {
					details = compact(v)
					break
				}
			}
		}
	}

	if msg == "" {
		msg = fallback(f)
	}
	if details == msg {
		details = ""
	}
	return msg, details
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

// fallback is used when the body carries no recognizable message.
func fallback(f upstream.UpstreamFailure) string {
	raw := strings.TrimSpace(string(f.Raw))
	if raw != "" && !json.Valid(f.Raw) {
		return raw
	}
	if text := http.StatusText(f.Status); text != "" {
		return text
	}
	return "Request failed"
}

func compact(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
