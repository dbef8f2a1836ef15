// Package upstream performs the single outbound call behind each dashboard
// request and classifies what came back.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"staffing-gateway/internal/common/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultTimeout          = 15 * time.Second
	defaultMaxResponseBytes = 10 << 20
)

// Doer is satisfied by *http.Client and the common http wrapper.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request is one outbound call. Path is already substituted and escaped;
// Query is already encoded.
type Request struct {
	Resource string
	Method   string
	Path     string
	Query    string
	Body     []byte
}

type Options struct {
	BaseURL          string
	Timeout          time.Duration
	MaxResponseBytes int64
	Client           Doer
	Tracer           trace.Tracer
}

type Invoker struct {
	baseURL          string
	timeout          time.Duration
	maxResponseBytes int64
	client           Doer
	tracer           trace.Tracer
}

func NewInvoker(opts Options) *Invoker {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = defaultMaxResponseBytes
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("upstream")
	}
	return &Invoker{
		baseURL:          strings.TrimRight(opts.BaseURL, "/"),
		timeout:          opts.Timeout,
		maxResponseBytes: opts.MaxResponseBytes,
		client:           opts.Client,
		tracer:           opts.Tracer,
	}
}

// URL joins the base URL, path and query of req.
func (i *Invoker) URL(req Request) string {
	u := i.baseURL + req.Path
	if req.Query != "" {
		u += "?" + req.Query
	}
	return u
}

// Invoke performs exactly one call. It never retries and never returns nil.
func (i *Invoker) Invoke(ctx context.Context, req Request) Outcome {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	ctx, span := i.tracer.Start(ctx, "upstream "+req.Method+" "+req.Resource,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gateway.resource", req.Resource),
			attribute.String("http.method", req.Method),
			attribute.String("http.route", req.Path),
		),
	)
	defer span.End()

	start := time.Now()
	out := i.do(ctx, parent, req)
	metrics.UpstreamDuration.WithLabelValues(req.Resource, req.Method).Observe(time.Since(start).Seconds())

	switch o := out.(type) {
	case Ok:
		span.SetAttributes(attribute.Int("http.status_code", o.Status))
	case UpstreamFailure:
		span.SetAttributes(attribute.Int("http.status_code", o.Status))
		if o.Status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(o.Status))
		}
	case MalformedSuccess:
		span.SetAttributes(attribute.Int("http.status_code", o.Status))
		span.SetStatus(codes.Error, o.Cause)
	case TransportFailure:
		metrics.TransportFailures.WithLabelValues(req.Resource).Inc()
		span.SetStatus(codes.Error, o.Cause)
	}
	return out
}

func (i *Invoker) do(ctx, parent context.Context, req Request) Outcome {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, i.URL(req), body)
	if err != nil {
		return TransportFailure{Cause: fmt.Sprintf("build upstream request: %v", err)}
	}
	// Nothing from the inbound request is copied: no cookies, no
	// authorization, no client headers.
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Cache-Control", "no-store")

	resp, err := i.client.Do(httpReq)
	if err != nil {
		return i.transportFailure(ctx, parent, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, i.maxResponseBytes+1))
	if err != nil {
		return i.transportFailure(ctx, parent, fmt.Errorf("read upstream response: %w", err))
	}
	if int64(len(raw)) > i.maxResponseBytes {
		return TransportFailure{Cause: fmt.Sprintf("upstream response exceeds %d bytes", i.maxResponseBytes)}
	}

	return classify(resp.StatusCode, raw)
}

func classify(status int, raw []byte) Outcome {
	if status >= 200 && status < 300 {
		if status == http.StatusNoContent || status == http.StatusResetContent {
			return Ok{Status: status}
		}
		if !json.Valid(raw) {
			return MalformedSuccess{Status: status, Raw: raw, Cause: malformedCause(raw)}
		}
		return Ok{Status: status, Body: json.RawMessage(raw)}
	}

	var parsed interface{}
	if len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &parsed) == nil {
		return UpstreamFailure{Status: status, Raw: raw, Parsed: parsed}
	}
	return UpstreamFailure{
		Status: status,
		Raw:    raw,
		Parsed: map[string]interface{}{"error": string(raw)},
	}
}

func malformedCause(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "empty response body"
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Sprintf("invalid JSON in response body: %v", err)
	}
	return "invalid JSON in response body"
}

func (i *Invoker) transportFailure(ctx, parent context.Context, err error) TransportFailure {
	switch {
	case parent.Err() != nil:
		return TransportFailure{
			Cause:    fmt.Sprintf("request canceled by client: %v", parent.Err()),
			Canceled: true,
		}
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err):
		return TransportFailure{
			Cause:   fmt.Sprintf("upstream request timed out after %s", i.timeout),
			Timeout: true,
		}
	}
	return TransportFailure{Cause: err.Error()}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
