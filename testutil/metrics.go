package testutil

import (
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// SumCounter adds up every data point of the int64 sum named name.
// Returns 0 when the metric was never recorded.
func SumCounter(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}
