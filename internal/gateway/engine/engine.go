// Package engine instantiates the gateway pipeline for every resource in
// the route table: route resolution, query translation, the upstream call,
// normalization and the envelope.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gwerrors "staffing-gateway/internal/common/errors"
	"staffing-gateway/internal/common/logger"
	"staffing-gateway/internal/common/metrics"
	"staffing-gateway/internal/common/observability"
	"staffing-gateway/internal/gateway/envelope"
	"staffing-gateway/internal/gateway/normalize"
	"staffing-gateway/internal/gateway/query"
	"staffing-gateway/internal/gateway/resilience"
	"staffing-gateway/internal/gateway/routes"
	"staffing-gateway/internal/gateway/upstream"

	"github.com/go-chi/chi/v5"
)

const defaultMaxBodyBytes = 2 << 20

// Invoker performs the outbound call. *upstream.Invoker satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, req upstream.Request) upstream.Outcome
}

type Options struct {
	Table         *routes.Table
	Invoker       Invoker
	Breakers      *resilience.Breakers
	Limiter       resilience.Limiter
	Logger        logger.Logger
	Observability *observability.Observability
	PathPrefix    string
	MaxBodyBytes  int64
}

type Engine struct {
	table        *routes.Table
	invoker      Invoker
	breakers     *resilience.Breakers
	limiter      resilience.Limiter
	log          logger.Logger
	obs          *observability.Observability
	errors       *gwerrors.ErrorHandler
	prefix       string
	maxBodyBytes int64
}

func New(opts Options) (*Engine, error) {
	if opts.Table == nil {
		return nil, gwerrors.NewConfigurationError("route table is required")
	}
	if opts.Invoker == nil {
		return nil, gwerrors.NewConfigurationError("upstream invoker is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Engine{
		table:        opts.Table,
		invoker:      opts.Invoker,
		breakers:     opts.Breakers,
		limiter:      opts.Limiter,
		log:          opts.Logger,
		obs:          opts.Observability,
		errors:       gwerrors.NewErrorHandler(opts.Logger, envelope.WriteFailure),
		prefix:       strings.TrimRight(opts.PathPrefix, "/"),
		maxBodyBytes: opts.MaxBodyBytes,
	}, nil
}

// Register mounts one handler per declared (resource, verb) on r plus the
// 404 and 405 envelopes. Verbs a resource does not declare are never
// mounted, so they are answered with 405 here and never reach upstream.
func (e *Engine) Register(r chi.Router) {
	for _, d := range e.table.Descriptors() {
		pattern := e.prefix + d.Path
		for _, method := range d.Methods() {
			r.Method(method, pattern, e.instrument(d, method, e.handle(d, method)))
		}
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		e.errors.Respond(w, r, gwerrors.NewRouteNotFoundError(r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		e.errors.Respond(w, r, gwerrors.NewMethodNotAllowedError(r.Method, r.URL.Path))
	})
}

// Router returns a standalone router with the request id and panic
// middleware installed.
func (e *Engine) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recoverer(e.log))
	e.Register(r)
	return r
}

func (e *Engine) handle(d routes.Descriptor, method string) http.HandlerFunc {
	verb, _ := d.Verb(method)
	transportMessage := d.TransportMessage(method)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := e.log.With(map[string]interface{}{
			"request_id": RequestIDFromContext(ctx),
			"resource":   d.Name,
			"method":     method,
		})

		if e.limiter != nil {
			if decision := e.limiter.Allow(ctx, resilience.Key(d.Name, clientAddr(r))); !decision.Allowed {
				metrics.RateLimited.WithLabelValues(d.Name).Inc()
				e.errors.Respond(w, r, gwerrors.NewRateLimitedError(d.Name, decision.RetryAfter))
				return
			}
		}

		var body []byte
		if verb.Body {
			var err error
			body, err = e.readBody(w, r)
			if err != nil {
				e.errors.Respond(w, r, err)
				return
			}
		}

		params := pathParams(r, d.Slots())
		path, err := e.table.Resolve(d.Name, method, params)
		if err != nil {
			log.Warn("Route resolution failed", map[string]interface{}{"error": err.Error()})
			e.errors.Respond(w, r, gwerrors.NewRouteNotFoundError(r.URL.Path))
			return
		}

		var rawQuery string
		if !d.Bulk {
			inbound := query.Parse(r.URL.RawQuery)
			rawQuery = query.Encode(query.Translate(inbound, verb.Query))
			if dropped := query.Dropped(inbound, verb.Query); len(dropped) > 0 {
				log.Debug("Dropped query parameters outside whitelist", map[string]interface{}{"dropped": dropped})
			}
		}

		req := upstream.Request{
			Resource: d.Name,
			Method:   method,
			Path:     path,
			Query:    rawQuery,
			Body:     body,
		}
		out, err := e.breakers.Execute(d.Name, func() upstream.Outcome {
			return e.invoker.Invoke(ctx, req)
		})
		if err != nil {
			e.errors.Respond(w, r, err)
			return
		}

		res := normalize.Normalize(out, transportMessage)
		logOutcome(log, out, res)

		if err := envelope.Write(w, res.Status, res.Envelope); err != nil {
			log.Debug("Failed to write response", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (e *Engine) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, e.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, gwerrors.NewRequestBodyTooLargeError(tooLarge.Limit)
		}
		return nil, gwerrors.NewRequestReadFailedError(err)
	}
	return body, nil
}

// pathParams reads slot values from the chi route. chi matches against the
// escaped path when the URL carries one, so those values are unescaped
// here; the route table escapes each of them again for the outbound path.
func pathParams(r *http.Request, slots []string) map[string]string {
	params := make(map[string]string, len(slots))
	escaped := r.URL.RawPath != ""
	for _, slot := range slots {
		v := chi.URLParam(r, slot)
		if escaped {
			if unescaped, err := url.PathUnescape(v); err == nil {
				v = unescaped
			}
		}
		params[slot] = v
	}
	return params
}

func logOutcome(log logger.Logger, out upstream.Outcome, res normalize.Result) {
	switch v := out.(type) {
	case upstream.UpstreamFailure:
		log.Warn("Upstream returned an error", map[string]interface{}{
			"status":    v.Status,
			"errorCode": string(res.Code),
			"error":     res.Envelope.Error,
		})
	case upstream.MalformedSuccess:
		log.Error("Upstream returned a malformed success response", map[string]interface{}{
			"status":    v.Status,
			"errorCode": string(res.Code),
			"cause":     v.Cause,
		})
	case upstream.TransportFailure:
		log.Error("Upstream call failed", map[string]interface{}{
			"errorCode": string(res.Code),
			"cause":     v.Cause,
			"timeout":   v.Timeout,
		})
	}
}

// instrument records the request metrics and the access log line for one
// mounted route.
func (e *Engine) instrument(d routes.Descriptor, method string, next http.Handler) http.Handler {
	inFlight := metrics.InFlight.WithLabelValues(d.Name)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		inFlight.Inc()
		defer inFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.Status()
		duration := time.Since(start)
		metrics.GatewayRequests.WithLabelValues(d.Name, method, strconv.Itoa(status)).Inc()
		e.obs.RecordRequest(r.Context(), d.Name, method, status, duration)

		e.log.Info("Request completed", map[string]interface{}{
			"request_id":  RequestIDFromContext(r.Context()),
			"resource":    d.Name,
			"method":      method,
			"path":        r.URL.Path,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
		})
	})
}

// Describe renders a one-line summary of a mounted route.
func (e *Engine) Describe(d routes.Descriptor) string {
	return fmt.Sprintf("%s %s -> %s", strings.Join(d.Methods(), ","), e.prefix+d.Path, d.UpstreamPath)
}
