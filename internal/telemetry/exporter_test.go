package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNew_DisabledReturnsNoOp(t *testing.T) {
	rec, err := New(context.Background(), Config{}, "test")
	require.NoError(t, err)
	assert.IsType(t, NoOp{}, rec)
	assert.NoError(t, rec.Close(context.Background()))
}

func TestNewExporter_RequiresEndpoint(t *testing.T) {
	_, err := NewExporter(context.Background(), Config{Enabled: true}, "test")
	assert.Error(t, err)
}

func TestExporter_Records(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	exp, err := newExporter(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	exp.TxFinished(ctx, "timer.stop", 1, nil)
	exp.TxFinished(ctx, "timer.stop", 3, errors.New("boom"))
	exp.TimerStopped(ctx, true, 18000)
	exp.DriftDetected(ctx, "objective_counters")
	exp.CountersRepaired(ctx, 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		sum, ok := m.Data.(metricdata.Sum[int64])
		if !ok {
			continue
		}
		for _, dp := range sum.DataPoints {
			sums[m.Name] += dp.Value
		}
	}

	assert.Equal(t, int64(2), sums["clientpulse_transactions_total"])
	assert.Equal(t, int64(1), sums["clientpulse_timers_stopped_total"])
	assert.Equal(t, int64(18000), sums["clientpulse_tracked_seconds_total"])
	assert.Equal(t, int64(1), sums["clientpulse_drift_warnings_total"])
	assert.Equal(t, int64(2), sums["clientpulse_counter_repairs_total"])
	require.NoError(t, exp.Close(ctx))
}
