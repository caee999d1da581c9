package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const gatewayMeterName = "github.com/commutekit/commutekit/internal/telemetry"

// GatewayMetrics holds metrics for calls to the trip planner gateway.
type GatewayMetrics struct {
	gateway         string
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	responseSize    metric.Int64Histogram
}

// NewGatewayMetrics creates metrics for monitoring calls to one gateway.
func NewGatewayMetrics(gateway string) (*GatewayMetrics, error) {
	meter := otel.Meter(gatewayMeterName)

	requestDuration, err := meter.Float64Histogram(
		"gateway.request.duration",
		metric.WithDescription("Duration of gateway requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"gateway.request.total",
		metric.WithDescription("Total number of gateway requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	responseSize, err := meter.Int64Histogram(
		"gateway.response.size",
		metric.WithDescription("Size of gateway response bodies in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &GatewayMetrics{
		gateway:         gateway,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		responseSize:    responseSize,
	}, nil
}

// RecordRequest records one gateway call.
func (m *GatewayMetrics) RecordRequest(operation string, duration time.Duration, size int, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("gateway.name", m.gateway),
		attribute.String("gateway.operation", operation),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Background context so cancelled requests are still counted
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if size > 0 {
		m.responseSize.Record(ctx, int64(size), metric.WithAttributes(attrs...))
	}
}
