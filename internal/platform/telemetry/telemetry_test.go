// internal/platform/telemetry/telemetry_test.go
package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"reconx/internal/platform/logx"
	"reconx/internal/testutil"
)

func TestInit_NoEndpoint(t *testing.T) {
	tp, shutdown, err := Init(context.Background(), Config{}, logx.NewNop())

	testutil.AssertNoError(t, err, "init without endpoint")
	testutil.AssertNotNil(t, tp, "provider")
	testutil.AssertNoError(t, shutdown(context.Background()), "noop shutdown")
}

func TestExecuteAndTrace(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	err := ExecuteAndTrace(context.Background(), tracer, "ledger.ok",
		[]attribute.KeyValue{attribute.String("task_id", "t1")},
		func(context.Context) error { return nil })
	testutil.AssertNoError(t, err, "successful operation")

	boom := errors.New("boom")
	err = ExecuteAndTrace(context.Background(), tracer, "ledger.fail", nil,
		func(context.Context) error { return boom })
	testutil.AssertErrorIs(t, err, boom, "error returned unchanged")

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 ended spans, got %d", len(spans))
	}
	testutil.AssertEqual(t, spans[0].Name(), "ledger.ok", "first span name")
	testutil.AssertEqual(t, spans[0].Status().Code, codes.Unset, "ok span status")
	testutil.AssertEqual(t, spans[1].Status().Code, codes.Error, "failed span status")
	testutil.AssertEqual(t, spans[1].Status().Description, "boom", "failed span description")
}

func TestExecuteAndTrace_PropagatesSpanContext(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	ctx, parent := tracer.Start(context.Background(), "parent")
	_ = ExecuteAndTrace(ctx, tracer, "child", nil, func(context.Context) error { return nil })
	parent.End()

	spans := recorder.Ended()
	testutil.AssertEqual(t, len(spans), 2, "spans")
	testutil.AssertEqual(t, spans[0].Parent().SpanID(), parent.SpanContext().SpanID(), "child linked to parent")
}
