// Package adapter provides adapters for plugin-mmap integration with external systems.
package adapter

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/plugin-mmap/api"
)

// OTelObserver records OpenTelemetry metrics and one span per operation.
type OTelObserver struct {
	tracer      trace.Tracer
	operations  metric.Int64Counter
	live        metric.Int64UpDownCounter
	mappedBytes metric.Int64UpDownCounter
	duration    metric.Float64Histogram
}

// NewOTelObserver creates its instruments on meter and starts spans on tracer.
func NewOTelObserver(meter metric.Meter, tracer trace.Tracer) (*OTelObserver, error) {
	o := &OTelObserver{tracer: tracer}
	var err error
	if o.operations, err = meter.Int64Counter("mmap.operations",
		metric.WithDescription("Mapping operations by op and result.")); err != nil {
		return nil, fmt.Errorf("otel mmap.operations: %w", err)
	}
	if o.live, err = meter.Int64UpDownCounter("mmap.live_mappings",
		metric.WithDescription("Files currently mapped.")); err != nil {
		return nil, fmt.Errorf("otel mmap.live_mappings: %w", err)
	}
	if o.mappedBytes, err = meter.Int64UpDownCounter("mmap.mapped_bytes",
		metric.WithDescription("Total size of mapped files."), metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("otel mmap.mapped_bytes: %w", err)
	}
	if o.duration, err = meter.Float64Histogram("mmap.operation.duration",
		metric.WithDescription("Duration of mapping operations."), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("otel mmap.operation.duration: %w", err)
	}
	return o, nil
}

func (o *OTelObserver) Observe(ctx context.Context, ev api.Event) {
	labels := metric.WithAttributes(
		attribute.String("op", string(ev.Op)),
		attribute.String("result", ev.Result()),
	)
	o.operations.Add(ctx, 1, labels)
	o.duration.Record(ctx, ev.Duration.Seconds(), labels)

	switch {
	case ev.Op == api.OpOpen && ev.Err == nil:
		o.live.Add(ctx, 1)
		o.mappedBytes.Add(ctx, ev.Size)
	case ev.Op == api.OpClose:
		o.live.Add(ctx, -1)
		o.mappedBytes.Add(ctx, -ev.Size)
	}

	_, span := o.tracer.Start(ctx, "mmap."+string(ev.Op),
		trace.WithTimestamp(ev.Start),
		trace.WithAttributes(
			attribute.String("mmap.id", ev.ID),
			attribute.String("mmap.path", ev.Path),
			attribute.Bool("mmap.read_only", ev.ReadOnly),
			attribute.Int64("mmap.size", ev.Size),
			attribute.Int("mmap.attempts", ev.Attempts),
		))
	if ev.Err != nil {
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, ev.Err.Error())
	}
	span.End(trace.WithTimestamp(ev.Start.Add(ev.Duration)))
}
