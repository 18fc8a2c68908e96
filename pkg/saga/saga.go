package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/mimir-go/pkg/logger"
	"github.com/mimir-go/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mimir-go/pkg/saga"

// StepError reports the step at which a saga stopped and the steps that had
// already taken effect. Completed steps are never undone.
type StepError struct {
	Saga      string
	Step      string
	Completed []string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("saga %s: step %q failed after %v: %v", e.Saga, e.Step, e.Completed, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Execution runs the steps of one saga invocation in order. It keeps no state
// between invocations; each call to Begin starts from scratch.
type Execution struct {
	name      string
	logger    logger.Logger
	tracer    trace.Tracer
	completed []string
}

// Begin starts a saga execution. Extra fields are attached to every log line.
func Begin(name string, log logger.Logger, fields ...interface{}) *Execution {
	if log == nil {
		log = logger.NewNop()
	}
	return &Execution{
		name:   name,
		logger: log.With(append([]interface{}{"saga", name}, fields...)...),
		tracer: otel.Tracer(tracerName),
	}
}

// Step runs action as the named step. On failure the execution stops being
// useful: the returned *StepError lists what already happened.
func (e *Execution) Step(ctx context.Context, step string, action func(ctx context.Context) error) error {
	ctx, span := e.tracer.Start(ctx, e.name+"."+step, trace.WithAttributes(
		attribute.String("saga.name", e.name),
		attribute.String("saga.step", step),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return e.fail(span, step, err)
	}

	start := time.Now()
	e.logger.Debug("Saga step started", "step", step)

	err := action(ctx)
	metrics.SagaStepDuration.WithLabelValues(e.name, step).Observe(time.Since(start).Seconds())
	if err != nil {
		return e.fail(span, step, err)
	}

	metrics.SagaStepsTotal.WithLabelValues(e.name, step, "success").Inc()
	e.completed = append(e.completed, step)
	e.logger.Debug("Saga step completed", "step", step, "duration", time.Since(start))
	return nil
}

// Completed lists the steps that succeeded so far, in order.
func (e *Execution) Completed() []string {
	return append([]string(nil), e.completed...)
}

func (e *Execution) fail(span trace.Span, step string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.SagaStepsTotal.WithLabelValues(e.name, step, "failure").Inc()
	e.logger.Error("Saga step failed", "step", step, "completed", e.completed, "error", err)
	return &StepError{
		Saga:      e.name,
		Step:      step,
		Completed: e.Completed(),
		Err:       err,
	}
}
