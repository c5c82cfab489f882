// Package observability wires OpenTelemetry tracing and metrics into the
// container and the processes built around it.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, &cfg)
//	defer tp.Shutdown(ctx)
//	c := di.New(di.WithTracer(observability.Tracer("billing")))
//
// Injection metrics:
//
//	mp, err := observability.InitMeter(ctx, &mcfg)
//	defer mp.Shutdown(ctx)
//	m, err := observability.NewInjectionMetrics(observability.Meter("billing"))
//	c.SetMetrics(m)
package observability
