package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/injectkit/config"
	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/errors"
	"github.com/kbukum/injectkit/logger"
)

type testConfig struct {
	config.ServiceConfig
}

func newTestConfig(name, version string) *testConfig {
	return &testConfig{
		ServiceConfig: config.ServiceConfig{
			Name:        name,
			Version:     version,
			Environment: "development",
		},
	}
}

func newTestApp(t *testing.T, opts ...Option) (*App[*testConfig], *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	opts = append([]Option{WithLogger(logger.NewNop()), WithSummaryOutput(&out)}, opts...)
	app, err := NewApp(newTestConfig("test-svc", "1.0.0"), opts...)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app, &out
}

type ledger struct {
	mu      sync.Mutex
	entries []string
}

func (l *ledger) add(s string) {
	l.mu.Lock()
	l.entries = append(l.entries, s)
	l.mu.Unlock()
}

type closer struct{ closed *bool }

func (c *closer) Close() error {
	*c.closed = true
	return nil
}

type store interface{ Get() string }

type needsStore struct {
	di.In
	Store store
}

type chargeDeps struct {
	di.In
	Ledger *ledger
}

func TestNewApp(t *testing.T) {
	app, _ := newTestApp(t)
	if app.Name != "test-svc" || app.Version != "1.0.0" {
		t.Errorf("unexpected name/version %q %q", app.Name, app.Version)
	}
	if app.Container == nil || app.Logger == nil || app.Summary == nil {
		t.Fatal("expected container, logger and summary")
	}
	if app.Cfg.Name != "test-svc" {
		t.Errorf("expected typed config, got %q", app.Cfg.Name)
	}
	if app.gracefulTimeout != 15*time.Second {
		t.Errorf("expected default timeout 15s, got %v", app.gracefulTimeout)
	}
}

func TestNewAppInitializesGlobalLogger(t *testing.T) {
	prev := logger.GetGlobalLogger()
	defer logger.SetGlobalLogger(prev)

	app, err := NewApp(newTestConfig("svc", "1.0"), WithSummaryOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	if app.Logger != logger.GetGlobalLogger() {
		t.Error("expected app logger to be the global logger")
	}
}

func TestNewAppValidation(t *testing.T) {
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Environment: "development"}}
	_, err := NewApp(cfg, WithLogger(logger.NewNop()))
	if err == nil {
		t.Fatal("expected error for missing name")
	}
	if !strings.Contains(err.Error(), "name: is required") {
		t.Errorf("expected field error, got %v", err)
	}
}

func TestNewAppWithOptions(t *testing.T) {
	c := di.New(di.WithLogger(logger.NewNop()))
	app, _ := newTestApp(t, WithGracefulTimeout(30*time.Second), WithContainer(c))

	if app.gracefulTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", app.gracefulTimeout)
	}
	if app.Container != c {
		t.Error("expected custom container")
	}
}

func TestWithLoggerRoutesComponents(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter(&logger.Config{Level: "info", Format: "json"}, "test-svc", &buf)
	defer func() {
		for _, name := range componentLoggers {
			logger.Route(name, nil)
		}
	}()

	if _, err := NewApp(newTestConfig("test-svc", "1.0.0"), WithLogger(l), WithSummaryOutput(&bytes.Buffer{})); err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	logger.WithComponent("taskqueue").Info("queued")
	if !strings.Contains(buf.String(), `"component":"taskqueue"`) {
		t.Errorf("expected taskqueue log in app logger output, got %q", buf.String())
	}
}

func TestHooks(t *testing.T) {
	app, _ := newTestApp(t)
	var order []string
	app.OnStart(
		func(ctx context.Context) error { order = append(order, "first"); return nil },
		func(ctx context.Context) error { order = append(order, "second"); return nil },
	)
	if err := runHooks(context.Background(), app.onStart); err != nil {
		t.Fatalf("hooks failed: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("expected [first second], got %v", order)
	}
}

func TestHookErrorStopsExecution(t *testing.T) {
	secondCalled := false
	hooks := []Hook{
		func(ctx context.Context) error { return fmt.Errorf("fail") },
		func(ctx context.Context) error { secondCalled = true; return nil },
	}
	err := runHooks(context.Background(), hooks)
	if err == nil || !strings.Contains(err.Error(), "hook 0 failed") {
		t.Errorf("expected hook error, got %v", err)
	}
	if secondCalled {
		t.Error("expected second hook not to be called after first fails")
	}
}

func TestRunTaskLifecycle(t *testing.T) {
	app, _ := newTestApp(t)
	var order []string

	app.OnStart(func(ctx context.Context) error { order = append(order, "start"); return nil })
	app.OnConfigure(func(ctx context.Context, a *App[*testConfig]) error {
		order = append(order, "configure")
		return nil
	})
	app.OnReady(func(ctx context.Context) error { order = append(order, "ready"); return nil })
	app.OnStop(func(ctx context.Context) error { order = append(order, "stop"); return nil })

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		order = append(order, "task")
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask failed: %v", err)
	}
	want := "start,configure,ready,task,stop"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestRunTaskInjectedFunction(t *testing.T) {
	var mu sync.Mutex
	timings := map[string]int{}
	metrics := di.MetricsFunc(func(name string, d time.Duration) {
		mu.Lock()
		timings[name]++
		mu.Unlock()
	})
	app, out := newTestApp(t, WithMetrics(metrics))

	var charge func(amount int) (*ledger, error)
	app.OnConfigure(func(ctx context.Context, a *App[*testConfig]) error {
		var err error
		charge, err = di.InjectFunc[func(int) (*ledger, error)](a.Container, func(amount int, d chargeDeps) (*ledger, error) {
			d.Ledger.add(fmt.Sprintf("charge %d", amount))
			return d.Ledger, nil
		})
		return err
	})

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		first, err := charge(5)
		if err != nil {
			return err
		}
		second, err := charge(7)
		if err != nil {
			return err
		}
		if first != second {
			return fmt.Errorf("expected cached ledger")
		}
		if len(first.entries) != 2 {
			return fmt.Errorf("expected 2 entries, got %v", first.entries)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask failed: %v", err)
	}

	if len(timings) != 1 {
		t.Errorf("expected metrics for one function, got %v", timings)
	}
	if !strings.Contains(out.String(), "Injected (1)") || !strings.Contains(out.String(), "(cached)") {
		t.Errorf("expected injected function in summary, got %q", out.String())
	}
}

func TestRunTaskError(t *testing.T) {
	app, _ := newTestApp(t)
	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		return fmt.Errorf("task error")
	})
	if err == nil || err.Error() != "task error" {
		t.Errorf("expected 'task error', got %v", err)
	}
}

func TestRunTaskCancellation(t *testing.T) {
	app, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := app.RunTask(ctx, func(taskCtx context.Context) error {
		cancel()
		<-taskCtx.Done()
		return taskCtx.Err()
	})
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunTaskPreloadFailure(t *testing.T) {
	app, _ := newTestApp(t)
	stopped := false
	app.OnStop(func(ctx context.Context) error { stopped = true; return nil })
	app.OnConfigure(func(ctx context.Context, a *App[*testConfig]) error {
		_, err := a.Container.Inject(func(d needsStore) {})
		return err
	})

	ran := false
	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err == nil {
		t.Fatal("expected preload failure")
	}
	if !errors.HasCode(err, errors.ErrCodeMissingImplementation) {
		t.Errorf("expected MISSING_IMPLEMENTATION, got %v", err)
	}
	if !strings.Contains(err.Error(), "preload failed") {
		t.Errorf("expected preload phase in error, got %v", err)
	}
	if ran {
		t.Error("expected task not to run")
	}
	if !stopped {
		t.Error("expected stop hooks to run after failed startup")
	}
}

func TestRunTaskStartupErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*App[*testConfig])
		want  string
	}{
		{"start hook", func(a *App[*testConfig]) {
			a.OnStart(func(ctx context.Context) error { return fmt.Errorf("boom") })
		}, "onStart hook failed"},
		{"configure", func(a *App[*testConfig]) {
			a.OnConfigure(func(ctx context.Context, _ *App[*testConfig]) error { return fmt.Errorf("boom") })
		}, "configuration failed"},
		{"ready hook", func(a *App[*testConfig]) {
			a.OnReady(func(ctx context.Context) error { return fmt.Errorf("boom") })
		}, "onReady hook failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app, _ := newTestApp(t)
			tc.setup(app)
			err := app.RunTask(context.Background(), func(ctx context.Context) error { return nil })
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected %q, got %v", tc.want, err)
			}
		})
	}
}

func TestRunTaskStopHookError(t *testing.T) {
	app, _ := newTestApp(t)
	app.OnStop(func(ctx context.Context) error { return fmt.Errorf("stop failed") })

	err := app.RunTask(context.Background(), func(ctx context.Context) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "stop failed") {
		t.Errorf("expected stop error, got %v", err)
	}

	err = app.RunTask(context.Background(), func(ctx context.Context) error { return fmt.Errorf("task error") })
	if err == nil || err.Error() != "task error" {
		t.Errorf("expected task error to win, got %v", err)
	}
}

func TestShutdownClosesAndClearsContainer(t *testing.T) {
	app, _ := newTestApp(t)
	closed := false
	if err := app.Container.Register(di.TypeOf[*closer](), di.WithValue(&closer{closed: &closed})); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if !closed {
		t.Error("expected closer to be closed")
	}
	if app.Container.Has(di.TypeOf[*closer]()) {
		t.Error("expected container to be cleared")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	app, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	app.OnReady(func(context.Context) error {
		cancel()
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestWaitForSignalContextCancellation(t *testing.T) {
	app, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sig := app.WaitForSignal(ctx); sig != nil {
		t.Errorf("expected nil signal, got %v", sig)
	}
}

type fixedFamily struct{}

type regionSettings struct {
	config.Settings
	Region string
}

func (fixedFamily) IsSettings(t reflect.Type) bool { return t == reflect.TypeFor[regionSettings]() }
func (fixedFamily) Load(reflect.Type) (any, error) { return regionSettings{Region: "eu"}, nil }

func TestWithSettings(t *testing.T) {
	app, _ := newTestApp(t, WithSettings(fixedFamily{}))
	s, err := di.Resolve[regionSettings](app.Container)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if s.Region != "eu" {
		t.Errorf("expected region from family, got %q", s.Region)
	}
}

func TestSummaryDisplay(t *testing.T) {
	c := di.New(di.WithLogger(logger.NewNop()))
	if err := c.Register(di.TypeOf[*ledger](), di.WithValue(&ledger{})); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := c.Provide(di.TypeOf[*closer](), func() *closer { return &closer{} }); err != nil {
		t.Fatalf("provide failed: %v", err)
	}
	child := c.SubContainer()
	if _, err := child.InjectScoped(func(d chargeDeps) {}); err != nil {
		t.Fatalf("inject failed: %v", err)
	}

	s := NewSummary("svc", "2.0")
	s.SetStartupDuration(1500 * time.Millisecond)
	s.TrackTelemetry("tracing", "collector:4318")

	var buf bytes.Buffer
	s.Display(&buf, child)
	out := buf.String()

	for _, want := range []string{
		"svc v2.0 started in 1.50s",
		"tracing -> collector:4318",
		"Bindings (2)",
		"*bootstrap.ledger [parent+1]",
		"○ *bootstrap.closer",
		"Injected (1)",
		"(scoped)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in summary:\n%s", want, out)
		}
	}
}

func TestSummaryDisplayEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewSummary("svc", "1.0").Display(&buf, di.New(di.WithLogger(logger.NewNop())))
	if !strings.Contains(buf.String(), "└── none") {
		t.Errorf("expected empty bindings marker, got %q", buf.String())
	}

	buf.Reset()
	NewSummary("svc", "1.0").Display(&buf, nil)
	if strings.Contains(buf.String(), "Bindings") {
		t.Errorf("expected no bindings section without a container, got %q", buf.String())
	}
}

func TestTreePrefixAndModeIcon(t *testing.T) {
	if treePrefix(0, 2) != "├──" || treePrefix(1, 2) != "└──" {
		t.Error("unexpected tree prefixes")
	}
	if modeIcon(di.Value) != "●" || modeIcon(di.Factory) != "◆" || modeIcon(di.Lazy) != "○" {
		t.Error("unexpected mode icons")
	}
}
