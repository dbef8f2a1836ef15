package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilObservabilityIsSafe(t *testing.T) {
	var o *Observability
	assert.NotPanics(t, func() {
		o.RecordRequest(context.Background(), "leads", "GET", 200, time.Millisecond)
		_, span := o.Tracer().Start(context.Background(), "noop")
		span.End()
		o.Shutdown()
	})
}

func TestNew_RecordsWithoutJaeger(t *testing.T) {
	o := New(Options{ServiceName: "gateway-test"})
	defer o.Shutdown()

	assert.NotNil(t, o.Tracer())
	assert.NotPanics(t, func() {
		o.RecordRequest(context.Background(), "events", "POST", 201, 12*time.Millisecond)
	})

	_, span := o.Tracer().Start(context.Background(), "upstream")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	families, err := o.Gatherer().Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "otel_gateway_requests_total")
}

func TestNew_InstancesDoNotShareRegistry(t *testing.T) {
	a := New(Options{ServiceName: "a"})
	defer a.Shutdown()
	b := New(Options{ServiceName: "b"})
	defer b.Shutdown()

	assert.NotSame(t, a.Gatherer(), b.Gatherer())
	_, err := b.Gatherer().Gather()
	assert.NoError(t, err)
}
