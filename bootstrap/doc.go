// Package bootstrap runs a composition root through a uniform lifecycle.
//
// NewApp validates the config, initializes logging and creates the root
// container. Run and RunTask then start telemetry, run the start hooks and
// configure callbacks, preload every caching injected function, and on exit
// close and clear the container.
//
// # Quick Start
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*WorkerConfig]) error {
//	    return taskqueue.Task(queue, a.Container, "charge", charge)
//	})
//	if err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package bootstrap
