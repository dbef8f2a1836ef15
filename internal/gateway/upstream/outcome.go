package upstream

import "encoding/json"

// Outcome is the result of one outbound call. It is always one of Ok,
// UpstreamFailure, MalformedSuccess or TransportFailure.
type Outcome interface {
	outcome()
}

// Ok is a 2xx response whose body is valid JSON, or a body-less 204.
type Ok struct {
	Status int
	Body   json.RawMessage
}

// UpstreamFailure is a completed call with a non-2xx status. Parsed holds
// the decoded JSON body, or {"error": <raw text>} when the body is not JSON.
type UpstreamFailure struct {
	Status int
	Raw    []byte
	Parsed interface{}
}

// MalformedSuccess is a 2xx response whose body is not valid JSON.
type MalformedSuccess struct {
	Status int
	Raw    []byte
	Cause  string
}

// TransportFailure means no usable response was received.
type TransportFailure struct {
	Cause   string
	Timeout bool
	// Canceled is set when the dashboard client went away before the
	// upstream answered. It says nothing about upstream health.
	Canceled bool
}

func (Ok) outcome()               {}
func (UpstreamFailure) outcome()  {}
func (MalformedSuccess) outcome() {}
func (TransportFailure) outcome() {}
