package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	eventbus "github.com/hanpama/batchql/internal/eventbus"
	events "github.com/hanpama/batchql/internal/events"
	reqid "github.com/hanpama/batchql/internal/reqid"
)

func TestSetup_NoEndpoint(t *testing.T) {
	shutdown, err := Setup("", "batchql")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSubscriber_Spans(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	unsubscribe := newSubscriber(tp.Tracer(tracerName)).register()
	defer unsubscribe()

	ctx, rid := reqid.NewContext(context.Background())
	eventbus.Publish(ctx, events.GraphQLStart{OperationName: "Orgs", OperationType: "query"})
	eventbus.Publish(ctx, events.BatchStart{Mode: "parallel", Operations: 2})
	eventbus.Publish(ctx, events.BatchFinish{Mode: "parallel", Operations: 2, Err: errors.New("timeout"), Duration: time.Millisecond})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationName: "Orgs", OperationType: "query", Errors: []string{"a", "b"}})

	// Finish events for unknown requests are ignored.
	other, _ := reqid.NewContext(context.Background())
	eventbus.Publish(other, events.GraphQLFinish{})

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	batch, op := spans[0], spans[1]
	require.Equal(t, "graphql.batch", batch.Name())
	require.Equal(t, "graphql.operation", op.Name())
	require.Equal(t, op.SpanContext().SpanID(), batch.Parent().SpanID())
	require.Equal(t, codes.Error, batch.Status().Code)
	require.Equal(t, codes.Unset, op.Status().Code)

	require.Contains(t, op.Attributes(), attribute.String("graphql.request.id", rid))
	require.Contains(t, op.Attributes(), attribute.Int("graphql.error_count", 2))
	require.Contains(t, batch.Attributes(), attribute.Int("batch.operations", 2))
}
