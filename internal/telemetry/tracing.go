package telemetry

import (
	"context"

	"github.com/BaSui01/flowrunner/workflow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/BaSui01/flowrunner/workflow"

// TraceDispatcher wraps d so that each action call runs in its own span,
// nested under the executor's workflow.node span.
func TraceDispatcher(d workflow.Dispatcher) workflow.Dispatcher {
	tracer := otel.Tracer(instrumentationName)
	return workflow.DispatcherFunc(func(ctx context.Context, actionName string, params map[string]any, input any) (any, error) {
		ctx, span := tracer.Start(ctx, "workflow.action "+actionName,
			trace.WithAttributes(attribute.String("workflow.action", actionName)),
		)
		defer span.End()

		out, err := d.Dispatch(ctx, actionName, params, input)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return out, err
	})
}
