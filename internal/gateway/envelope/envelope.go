// Package envelope builds the single response shape the dashboard receives
// for every gateway request:
//
//	success: { "success": true,  "data": <payload> }
//	failure: { "success": false, "error": "...", "details": "..." }
//
// Every response carries Cache-Control: no-store, including failures, so a
// retry after an upstream fix never replays a cached error.
package envelope

import (
	"encoding/json"
	"net/http"
)

const (
	HeaderCacheControl = "Cache-Control"
	NoStore            = "no-store, no-cache, must-revalidate"

	defaultFailureMessage = "Request failed"
)

// Envelope is the canonical gateway response body.
type Envelope struct {
	Success bool
	Data    json.RawMessage
	Error   string
	Details string
}

type successBody struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type failureBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Success wraps an upstream payload. A nil payload is rendered as null.
func Success(data json.RawMessage) Envelope {
	return Envelope{Success: true, Data: data}
}

// Failure builds an error envelope.
func Failure(message, details string) Envelope {
	return Envelope{Success: false, Error: message, Details: details}
}

// MarshalJSON emits exactly {success, data} or {success, error[, details]}.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Success {
		return json.Marshal(successBody{Success: true, Data: e.Data})
	}
	msg := e.Error
	if msg == "" {
		msg = defaultFailureMessage
	}
	return json.Marshal(failureBody{Success: false, Error: msg, Details: e.Details})
}

// SetNoStore marks a response as non-cacheable.
func SetNoStore(h http.Header) {
	h.Set(HeaderCacheControl, NoStore)
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// Write serializes env with the given status. 204 and 304 responses are
// written without a body since HTTP does not allow one.
func Write(w http.ResponseWriter, status int, env Envelope) error {
	SetNoStore(w.Header())

	if !bodyAllowed(status) {
		w.WriteHeader(status)
		return nil
	}

	body, err := json.Marshal(env)
	if err != nil {
		// Upstream data is validated JSON before it gets here, so this only
		// trips on programmer error. Still answer with a well-formed failure.
		body, _ = json.Marshal(Failure("Failed to encode response", err.Error()))
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// WriteFailure writes a failure envelope. It has the shape the common error
// handler expects from its writer.
func WriteFailure(w http.ResponseWriter, status int, message, details string) error {
	return Write(w, status, Failure(message, details))
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusResetContent, status == http.StatusNotModified:
		return false
	}
	return true
}
