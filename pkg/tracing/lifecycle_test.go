package tracing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"pgregory.net/rapid"

	"github.com/run-bigpig/traceai/pkg/config"
	"github.com/run-bigpig/traceai/pkg/semconv"
)

func TestFinishEndsSpanExactlyOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		recorder := tracetest.NewSpanRecorder()
		provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		defer func() { _ = provider.Shutdown(context.Background()) }()
		tracer := NewTracer(provider.Tracer("rapid"))

		_, lc := tracer.Start(context.Background(), "call", nil)

		calls := rapid.IntRange(1, 6).Draw(rt, "calls")
		var first *Status
		for i := 0; i < calls; i++ {
			var status *Status
			switch rapid.IntRange(0, 2).Draw(rt, "status") {
			case 0:
				status = StatusOK()
			case 1:
				status = StatusError(fmt.Sprintf("failure %d", i))
			}
			if i == 0 {
				first = status
			}
			lc.Finish(status, pairs(fmt.Sprintf("finish.%d", i), i), nil)
		}
		lc.SetAttribute("late", "value")

		spans := recorder.Ended()
		if len(spans) != 1 {
			rt.Fatalf("expected one ended span, got %d", len(spans))
		}
		got := spans[0].Status()
		switch {
		case first == nil && got.Code != codes.Unset:
			rt.Fatalf("expected unset status, got %v", got.Code)
		case first != nil && (got.Code != first.Code || got.Description != first.Description):
			rt.Fatalf("expected status %v %q, got %v %q", first.Code, first.Description, got.Code, got.Description)
		}
		values := attrs(spans[0])
		if _, ok := values["finish.0"]; !ok {
			rt.Fatalf("first finish attributes missing")
		}
		if _, ok := values["finish.1"]; ok {
			rt.Fatalf("second finish attributes recorded")
		}
		if _, ok := values["late"]; ok {
			rt.Fatalf("attribute recorded after finish")
		}
	})
}

func TestNonRecordingSpanStartsFinished(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.NeverSample()),
		sdktrace.WithSpanProcessor(recorder),
	)
	tracer := NewTracer(provider.Tracer("sampled-out"))

	_, lc := tracer.Start(context.Background(), "call", pairs("key", "value"))
	assert.True(t, lc.Finished())
	assert.False(t, lc.Span().IsRecording())

	lc.SetAttribute("other", 1)
	lc.Finish(StatusOK(), nil, nil)
	assert.Empty(t, recorder.Ended())
}

func TestNilSpanIsNoop(t *testing.T) {
	lc := NewSpanLifecycle(context.Background(), nil, nil, nil)
	assert.True(t, lc.Finished())
	assert.NotPanics(t, func() {
		lc.SetAttribute("key", "value")
		lc.RecordException(fmt.Errorf("ignored"))
		lc.Finish(StatusError("ignored"), nil, nil)
	})
}

func TestEmptyValuesAreNotRecorded(t *testing.T) {
	tracer, recorder := newRecorder(t)

	_, lc := tracer.Start(context.Background(), "call", nil)
	lc.SetAttributes(pairs(
		"empty.string", "",
		"nil", nil,
		"empty.slice", []string{},
		"empty.map", map[string]any{},
		"zero.int", 0,
		"kept", "value",
	))
	lc.Finish(StatusOK(), nil, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	values := attrs(spans[0])
	assert.Equal(t, "value", values["kept"].AsString())
	assert.Equal(t, int64(0), values["zero.int"].AsInt64())
	for _, key := range []string{"empty.string", "nil", "empty.slice", "empty.map"} {
		assert.NotContains(t, values, key)
	}
}

func TestPanickingSequenceRecordsNothing(t *testing.T) {
	tracer, recorder := newRecorder(t)

	_, lc := tracer.Start(context.Background(), "call", nil)
	lc.SetAttributes(panicking("lost", "value"))
	lc.Finish(StatusOK(), panicking("lost.too", "value"), pairs("extra", "kept"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	values := attrs(spans[0])
	assert.NotContains(t, values, "lost")
	assert.NotContains(t, values, "lost.too")
	assert.Equal(t, "kept", values["extra"].AsString())
}

func TestFinishExtraOverridesPrimary(t *testing.T) {
	tracer, recorder := newRecorder(t)

	_, lc := tracer.Start(context.Background(), "call", nil)
	lc.Finish(StatusOK(), pairs("key", "primary", "only.primary", "p"), pairs("key", "extra"))

	values := attrs(recorder.Ended()[0])
	assert.Equal(t, "extra", values["key"].AsString())
	assert.Equal(t, "p", values["only.primary"].AsString())
}

func TestMaskingIsApplied(t *testing.T) {
	cfg := config.DefaultTraceConfig()
	cfg.HideInputs = true
	cfg.PIIRedaction = true
	tracer, recorder := newRecorder(t, WithMasking(cfg))

	_, lc := tracer.Start(context.Background(), "call", pairs(semconv.InputValue, "secret prompt"))
	lc.Finish(StatusOK(), pairs(semconv.OutputValue, "mail john@example.com"), nil)

	values := attrs(recorder.Ended()[0])
	assert.Equal(t, semconv.RedactedValue, values[semconv.InputValue].AsString())
	assert.Equal(t, "mail <EMAIL_ADDRESS>", values[semconv.OutputValue].AsString())
}

func TestLazyValuesAreResolved(t *testing.T) {
	tracer, recorder := newRecorder(t)

	_, lc := tracer.Start(context.Background(), "call", nil)
	lc.SetAttributes(pairs(
		"lazy", func() (any, error) { return map[string]int{"a": 1}, nil },
		"failed", func() (any, error) { return nil, fmt.Errorf("cannot encode") },
	))
	lc.Finish(StatusOK(), nil, nil)

	values := attrs(recorder.Ended()[0])
	assert.JSONEq(t, `{"a":1}`, values["lazy"].AsString())
	assert.Equal(t, semconv.RedactedValue, values["failed"].AsString())
}
