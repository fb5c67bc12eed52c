package monitor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ppiankov/gazette/internal/monitor"

// metrics are no-ops until the process installs a meter provider
type metrics struct {
	records  metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	records, err := meter.Int64Counter("gazette.source.records",
		metric.WithDescription("Publications returned per source"),
		metric.WithUnit("{publication}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("gazette.source.failures",
		metric.WithDescription("Sources abandoned before finishing"),
		metric.WithUnit("{source}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("gazette.source.duration",
		metric.WithDescription("Time spent searching one source"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 60),
	)
	if err != nil {
		return nil, err
	}

	return &metrics{records: records, failures: failures, duration: duration}, nil
}

func (m *metrics) recordSource(ctx context.Context, sourceID string, records int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("gazette.source", sourceID))
	m.records.Add(ctx, int64(records), attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *metrics) recordAbandoned(ctx context.Context, sourceID string) {
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("gazette.source", sourceID)))
}
