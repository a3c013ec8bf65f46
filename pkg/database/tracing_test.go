package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	return exporter
}

// slowQueryLog routes slow query warnings into a buffer for the test.
func slowQueryLog(t *testing.T, threshold time.Duration) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetSlowQueryLogging(threshold, slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })
	return &buf
}

func TestTraceQuery_Span(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "users.FindByIdentity", `
		SELECT id, name
		FROM users
		WHERE (email = NULLIF($1, '') OR phone = NULLIF($2, ''))`)
	end(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "db.users.FindByIdentity", span.Name)
	assert.Equal(t, codes.Unset, span.Status.Code)

	attrs := make(map[string]string)
	for _, a := range span.Attributes {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	assert.Equal(t, "postgresql", attrs["db.system"])
	assert.Equal(t, "users.FindByIdentity", attrs["db.operation"])
	assert.Equal(t, "users", attrs["db.sql.table"])
	assert.Equal(t, "SELECT id, name FROM users WHERE (email = NULLIF($1, '') OR phone = NULLIF($2, ''))", attrs["db.statement"])
}

func TestTraceQuery_ErrorStatus(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "users.SetOTP", "UPDATE users SET otp = $1 WHERE id = $2")
	end(errors.New("connection reset by peer"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "connection reset by peer", spans[0].Status.Description)
	assert.NotEmpty(t, spans[0].Events, "the error is recorded as a span event")
}

func TestTraceQuery_ChildOfRequestSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx, parent := otel.Tracer("test").Start(context.Background(), "GET /api/v1/users")
	_, end := TraceQuery(ctx, "users.List", "SELECT * FROM users")
	end(nil)
	parent.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	child := spans[0]
	assert.Equal(t, "db.users.List", child.Name)
	assert.Equal(t, parent.SpanContext().SpanID(), child.Parent.SpanID())
}

func TestSlowQueryLogging(t *testing.T) {
	tests := []struct {
		name      string
		threshold time.Duration
		err       error
		wantLog   bool
	}{
		{name: "over threshold", threshold: time.Nanosecond, wantLog: true},
		{name: "over threshold with error", threshold: time.Nanosecond, err: errors.New("deadlock detected"), wantLog: true},
		{name: "under threshold", threshold: time.Hour},
		{name: "disabled", threshold: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestTracer(t)
			buf := slowQueryLog(t, tt.threshold)

			_, end := TraceQuery(context.Background(), "users.CountByRole", "SELECT role, count(*)\n\tFROM users GROUP BY role")
			end(tt.err)

			if !tt.wantLog {
				assert.Empty(t, buf.String())
				return
			}

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, "slow query detected", entry["msg"])
			assert.Equal(t, "users.CountByRole", entry["operation"])
			assert.Equal(t, "SELECT role, count(*) FROM users GROUP BY role", entry["statement"])
			if tt.err != nil {
				assert.Equal(t, tt.err.Error(), entry["error"])
			} else {
				assert.NotContains(t, entry, "error")
			}
		})
	}
}

func TestSlowQueryLogging_NilLoggerIsSafe(t *testing.T) {
	setupTestTracer(t)
	SetSlowQueryLogging(time.Nanosecond, nil)
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), "users.Delete", "DELETE FROM users WHERE id = $1")
	assert.NotPanics(t, func() { end(nil) })
}

func TestSetSlowQueryLogging_Concurrent(t *testing.T) {
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			SetSlowQueryLogging(time.Duration(i)*time.Millisecond, logger)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			getSlowQueryConfig()
		}
	}()
	wg.Wait()
}

func TestTraceQuery_RecordsDuration(t *testing.T) {
	setupTestTracer(t)

	count := func(outcome string) uint64 {
		var m dto.Metric
		require.NoError(t, queryDuration.WithLabelValues("users.UpdatePassword", outcome).(prometheus.Metric).Write(&m))
		return m.GetHistogram().GetSampleCount()
	}
	ok, failed := count("success"), count("error")

	_, end := TraceQuery(context.Background(), "users.UpdatePassword", "UPDATE users SET password = $1 WHERE id = $2")
	end(nil)
	_, end = TraceQuery(context.Background(), "users.UpdatePassword", "UPDATE users SET password = $1 WHERE id = $2")
	end(errors.New("canceling statement due to statement timeout"))

	assert.Equal(t, ok+1, count("success"))
	assert.Equal(t, failed+1, count("error"))
}

func TestTableOf(t *testing.T) {
	assert.Equal(t, "users", tableOf("users.CountByRole"))
	assert.Equal(t, "schema_migrations", tableOf("schema_migrations.Apply"))
	assert.Equal(t, "", tableOf("ping"))
}

func TestCompactSQL(t *testing.T) {
	got := compactSQL("\n\t\tUPDATE users\n\t\tSET role = $1,   updated_at = $2\n\t\tWHERE id = $3\n")
	assert.Equal(t, "UPDATE users SET role = $1, updated_at = $2 WHERE id = $3", got)
	assert.False(t, strings.ContainsAny(got, "\n\t"))
}
