package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/injectkit/config"
	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/logger"
	"github.com/kbukum/injectkit/observability"
)

// App is a composition root with a uniform lifecycle. C is the config type;
// any struct embedding config.ServiceConfig satisfies Config.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*WorkerConfig]) error {
//	    return a.Container.Register(di.TypeOf[*Billing]())
//	})
//	err = app.RunTask(ctx, charge)
type App[C Config] struct {
	Name      string
	Version   string
	Cfg       C
	Container *di.Container
	Logger    *logger.Logger
	Summary   *Summary

	gracefulTimeout time.Duration
	customMetrics   bool
	summaryOut      io.Writer
	onConfigure     []func(ctx context.Context, app *App[C]) error
	shutdownFuncs   []func(ctx context.Context) error

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp applies defaults to cfg, validates it, initializes the logger and
// creates the root container.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	base := cfg.GetServiceConfig()
	o := resolveOptions(opts)

	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
		summaryOut:      os.Stdout,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.summaryOut != nil {
		app.summaryOut = o.summaryOut
	}

	if o.logger != nil {
		app.Logger = o.logger
		logger.RouteComponents(app.Logger, componentLoggers...)
	} else {
		logger.Init(base.Logging)
		app.Logger = logger.GetGlobalLogger()
	}

	app.Container = o.container
	if app.Container == nil {
		settings := o.settings
		if settings == nil {
			settings = config.NewFamily(base.Name)
		}
		app.Container = di.New(
			di.WithLogger(app.Logger.WithComponent("di")),
			di.WithSettings(settings),
		)
	}
	if o.metrics != nil {
		app.Container.SetMetrics(o.metrics)
		app.customMetrics = true
	} else if base.Debug {
		app.Container.SetMetrics(observability.LogMetrics(app.Logger.WithComponent("metrics")))
	}

	app.Summary = NewSummary(base.Name, base.Version)
	return app, nil
}

// componentLoggers are the library components that follow a logger given
// with WithLogger.
var componentLoggers = []string{"config", "settings", "taskqueue", "ginscope"}

// OnConfigure registers a callback for the configure phase. Bindings and
// injected functions are usually set up here.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// Run executes the lifecycle of a long-running process: startup, block on
// a signal or ctx, then shutdown.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return a.abort(err)
	}

	a.Logger.Info("application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)

	return a.stop()
}

// RunTask executes a finite task with the full lifecycle. The task context
// is canceled on SIGINT or SIGTERM. The task error takes precedence over a
// shutdown error.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		return a.abort(err)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("received signal, canceling task", logger.Fields("signal", sig.String()))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskCtx, span := observability.StartSpan(taskCtx, observability.SpanTask, trace.WithAttributes(
		attribute.String(observability.AttrTaskName, a.Name),
		attribute.String(observability.AttrContainer, a.Container.ID()),
	))
	start := time.Now()
	taskErr := task(taskCtx)
	observability.EndSpan(span, taskErr)

	fields := logger.Fields(logger.FieldDuration, time.Since(start).Milliseconds())
	if taskErr != nil {
		fields[logger.FieldError] = taskErr.Error()
		a.Logger.Warn("task failed", fields)
	} else {
		a.Logger.Info("task finished", fields)
	}

	if stopErr := a.stop(); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

// startup runs the initialization sequence shared by Run and RunTask.
func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()

	a.Logger.Info("starting application", logger.Fields(
		"name", a.Name,
		"version", a.Version,
		logger.FieldContainerID, a.Container.ID(),
	))

	if err := a.initTelemetry(ctx); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	if err := a.configure(ctx); err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}
	if err := a.Container.PreloadInjected(); err != nil {
		return fmt.Errorf("preload failed: %w", err)
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.DisplaySummary()
	return nil
}

// initTelemetry starts OTLP export when the config enables it.
func (a *App[C]) initTelemetry(ctx context.Context) error {
	base := a.Cfg.GetServiceConfig()
	obs := base.Observability

	if obs.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, &observability.TracerConfig{
			ServiceName:    base.Name,
			ServiceVersion: base.Version,
			Environment:    base.Environment,
			Endpoint:       obs.Tracing.Endpoint,
			Insecure:       obs.Tracing.Insecure,
			SampleRate:     obs.Tracing.SampleRate,
		})
		if err != nil {
			return err
		}
		a.shutdownFuncs = append(a.shutdownFuncs, tp.Shutdown)
		a.Summary.TrackTelemetry("tracing", obs.Tracing.Endpoint)
	}

	if obs.Metrics.Enabled {
		mp, err := observability.InitMeter(ctx, &observability.MeterConfig{
			ServiceName:    base.Name,
			ServiceVersion: base.Version,
			Environment:    base.Environment,
			Endpoint:       obs.Metrics.Endpoint,
			Insecure:       obs.Metrics.Insecure,
			Interval:       obs.Metrics.Interval,
		})
		if err != nil {
			return err
		}
		a.shutdownFuncs = append(a.shutdownFuncs, mp.Shutdown)
		a.Summary.TrackTelemetry("metrics", obs.Metrics.Endpoint)

		if !a.customMetrics {
			m, err := observability.NewInjectionMetrics(mp.Meter(a.Name))
			if err != nil {
				return err
			}
			a.Container.SetMetrics(m)
		}
	}
	return nil
}

// configure runs the registered configure callbacks.
func (a *App[C]) configure(ctx context.Context) error {
	if len(a.onConfigure) == 0 {
		return nil
	}

	a.Logger.Info("running configuration callbacks", logger.Fields("count", len(a.onConfigure)))
	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// DisplaySummary writes the startup summary, listing what the container
// has bound and which functions it injects.
func (a *App[C]) DisplaySummary() {
	a.Summary.Display(a.summaryOut, a.Container)
}

// WaitForSignal blocks until SIGINT, SIGTERM or ctx cancellation.
func (a *App[C]) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("received shutdown signal", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("context canceled, shutting down")
		return nil
	}
}

// Shutdown performs graceful shutdown. Use when managing your own lifecycle.
func (a *App[C]) Shutdown(ctx context.Context) error {
	return a.stop()
}

// abort tears down whatever startup managed to bring up and returns err.
func (a *App[C]) abort(err error) error {
	a.Logger.WithError(err).Error("startup failed")
	if stopErr := a.stop(); stopErr != nil {
		a.Logger.WithError(stopErr).Warn("shutdown after failed startup reported errors")
	}
	return err
}

// stop runs the stop hooks, closes and clears the container and flushes
// telemetry, all within the graceful timeout.
func (a *App[C]) stop() error {
	a.Logger.Info("shutting down application", logger.Fields("timeout", a.gracefulTimeout.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var errs []error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("onStop hook error", logger.Fields(logger.FieldError, err.Error()))
		errs = append(errs, err)
	}

	if err := a.Container.Close(); err != nil {
		a.Logger.Error("container close error", logger.Fields(logger.FieldError, err.Error()))
		errs = append(errs, err)
	}
	a.Container.Clear()

	for i := len(a.shutdownFuncs) - 1; i >= 0; i-- {
		if err := a.shutdownFuncs[i](ctx); err != nil {
			a.Logger.Warn("telemetry shutdown error", logger.Fields(logger.FieldError, err.Error()))
		}
	}
	a.shutdownFuncs = nil

	a.Logger.Info("application shutdown complete")
	return stderrors.Join(errs...)
}
