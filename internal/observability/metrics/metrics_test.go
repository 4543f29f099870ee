package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("doc_type", "SalesOrder"),
		attribute.String("doc_code", "basket-7"),
		attribute.String("outcome", "success"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("doc_type"), attrs[0].Key)
	assert.Equal(t, attribute.Key("outcome"), attrs[1].Key)
}

func TestRecordTaxRequest(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "taxbridge-test"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordTaxRequest(ctx, "SalesOrder", "success")
	m.RecordTaxRequest(ctx, "SalesOrder", "success")
	m.RecordAuditWriteFailure(ctx)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	totals := map[string]int64{}
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		for _, point := range sum.DataPoints {
			totals[metric.Name] += point.Value
		}
	}
	assert.Equal(t, int64(2), totals["taxbridge_tax_requests_total"])
	assert.Equal(t, int64(1), totals["taxbridge_audit_write_failures_total"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordTaxRequest(context.Background(), "SalesInvoice", "error")
	m.RecordAuditWriteFailure(context.Background())
}
