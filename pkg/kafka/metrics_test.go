package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, o.(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestProducer_Publish_RecordsOutcomes(t *testing.T) {
	// a distinct aggregate keeps the label set private to this test
	event, err := NewEvent("metrics_probe", "updated", "usr-1", map[string]string{"name": "Alice"})
	require.NoError(t, err)
	eventType := event.EventType

	success := counterValue(t, eventsPublished.WithLabelValues(eventType, outcomeSuccess))
	failure := counterValue(t, eventsPublished.WithLabelValues(eventType, outcomeError))
	sized := histogramCount(t, payloadBytes.WithLabelValues(eventType))
	timed := histogramCount(t, publishDuration.WithLabelValues(eventType))

	ok := NewProducerWithWriter(&fakeWriter{}, nil, nil)
	bad := NewProducerWithWriter(&fakeWriter{err: errors.New("leader not available")}, nil, nil)

	require.NoError(t, ok.Publish(context.Background(), event.Topic(), event))
	require.NoError(t, ok.Publish(context.Background(), event.Topic(), event))
	require.Error(t, bad.Publish(context.Background(), event.Topic(), event))

	assert.InDelta(t, success+2, counterValue(t, eventsPublished.WithLabelValues(eventType, outcomeSuccess)), 0.001)
	assert.InDelta(t, failure+1, counterValue(t, eventsPublished.WithLabelValues(eventType, outcomeError)), 0.001)
	assert.Equal(t, sized+2, histogramCount(t, payloadBytes.WithLabelValues(eventType)), "failed writes are not sized")
	assert.Equal(t, timed+3, histogramCount(t, publishDuration.WithLabelValues(eventType)))
}

func TestEventMetrics_Names(t *testing.T) {
	eventsPublished.WithLabelValues("user.registered", outcomeSuccess)
	publishDuration.WithLabelValues("user.registered")
	payloadBytes.WithLabelValues("user.registered")

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}

	for _, name := range []string{
		"accounts_events_published_total",
		"accounts_events_publish_duration_seconds",
		"accounts_events_payload_bytes",
	} {
		assert.True(t, names[name], "expected metric %q to be registered", name)
	}
}
