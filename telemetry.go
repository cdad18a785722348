package keypool

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rbaliyan/config-keypool"

// Operation and result attribute values.
const (
	opEncrypt = "encrypt"
	opDecrypt = "decrypt"

	resultOK       = "ok"
	resultRejected = "rejected"
	resultError    = "error"
)

type telemetry struct {
	tracer     trace.Tracer
	operations metric.Int64Counter
	sizes      metric.Int64Histogram
	algorithm  attribute.KeyValue
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider, algorithm string) (*telemetry, error) {
	meter := mp.Meter(instrumentationName)

	operations, err := meter.Int64Counter("keypool.operations",
		metric.WithDescription("Envelope encryptions and decryptions by result."),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("keypool: failed to create operations counter: %w", err)
	}

	sizes, err := meter.Int64Histogram("keypool.payload.size",
		metric.WithDescription("Size of plaintexts sealed or opened."),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("keypool: failed to create payload size histogram: %w", err)
	}

	return &telemetry{
		tracer:     tp.Tracer(instrumentationName),
		operations: operations,
		sizes:      sizes,
		algorithm:  attribute.String("keypool.algorithm", algorithm),
	}, nil
}

func (t *telemetry) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "keypool."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(t.algorithm),
	)
}

// finish records the result of one operation and ends span. err must already
// be the error returned to the caller so spans never carry more detail.
func (t *telemetry) finish(ctx context.Context, span trace.Span, op string, size int, err error) {
	result := resultOK
	switch {
	case err == nil:
		t.sizes.Record(ctx, int64(size), metric.WithAttributes(t.algorithm, attribute.String("keypool.operation", op)))
	case IsAuthenticationFailed(err):
		result = resultRejected
	default:
		result = resultError
	}

	t.operations.Add(ctx, 1, metric.WithAttributes(
		t.algorithm,
		attribute.String("keypool.operation", op),
		attribute.String("keypool.result", result),
	))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
