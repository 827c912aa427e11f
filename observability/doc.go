// Package observability provides OpenTelemetry tracing and metrics for
// seqkit pipelines.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("seqdemo"))
//	defer tp.Shutdown(ctx)
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("seqdemo"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("seqkit"))
//	conn := multicast.Publish(src, multicast.WithMetrics(metrics))
//
// Without InitMeter/InitTracer the global OpenTelemetry providers are no-ops,
// so instrumented code costs almost nothing.
package observability
