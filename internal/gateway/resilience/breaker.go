package resilience

import (
	"errors"
	"net/http"
	"time"

	gwerrors "staffing-gateway/internal/common/errors"
	"staffing-gateway/internal/common/logger"
	"staffing-gateway/internal/common/metrics"
	"staffing-gateway/internal/gateway/upstream"

	"github.com/sony/gobreaker"
)

// errUpstreamUnhealthy marks an outcome the breaker counts as a failure.
// It never leaves this package.
var errUpstreamUnhealthy = errors.New("upstream unhealthy")

type BreakerOptions struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
	Logger           logger.Logger
}

// Breakers holds one circuit breaker per resource. The set is fixed at
// construction; unknown resources pass straight through.
type Breakers struct {
	byResource map[string]*gobreaker.CircuitBreaker
}

func NewBreakers(resources []string, opts BreakerOptions) *Breakers {
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.HalfOpenRequests == 0 {
		opts.HalfOpenRequests = 1
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	b := &Breakers{byResource: make(map[string]*gobreaker.CircuitBreaker, len(resources))}
	for _, name := range resources {
		threshold := opts.FailureThreshold
		b.byResource[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: opts.HalfOpenRequests,
			Timeout:     opts.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.CircuitState.WithLabelValues(name).Set(float64(to))
				log.Warn("Circuit breaker state changed", map[string]interface{}{
					"resource": name,
					"from":     from.String(),
					"to":       to.String(),
				})
			},
		})
		metrics.CircuitState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	}
	return b
}

// Execute runs call through the resource's breaker. Transport failures,
// malformed successes and upstream 5xx responses count against the circuit.
// Client cancellations do not; the outcome itself is
// returned unchanged. When the circuit is open call is not made and a
// CIRCUIT_OPEN error is returned instead.
func (b *Breakers) Execute(resource string, call func() upstream.Outcome) (upstream.Outcome, error) {
	cb, ok := b.lookup(resource)
	if !ok {
		return call(), nil
	}

	var out upstream.Outcome
	_, err := cb.Execute(func() (interface{}, error) {
		out = call()
		if unhealthy(out) {
			return nil, errUpstreamUnhealthy
		}
		return nil, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, gwerrors.NewCircuitOpenError(resource)
	case err != nil && !errors.Is(err, errUpstreamUnhealthy):
		return nil, err
	}
	return out, nil
}

// State reports the breaker state for resource, closed when unknown.
func (b *Breakers) State(resource string) gobreaker.State {
	if cb, ok := b.lookup(resource); ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}

func (b *Breakers) lookup(resource string) (*gobreaker.CircuitBreaker, bool) {
	if b == nil {
		return nil, false
	}
	cb, ok := b.byResource[resource]
	return cb, ok
}

func unhealthy(o upstream.Outcome) bool {
	switch v := o.(type) {
	case upstream.TransportFailure:
		return !v.Canceled
	case upstream.UpstreamFailure:
		return v.Status >= http.StatusInternalServerError
	case upstream.MalformedSuccess:
		return true
	}
	return false
}
