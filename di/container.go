package di

import (
	"cmp"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/injectkit/errors"
	"github.com/kbukum/injectkit/logger"
)

const instrumentationName = "github.com/kbukum/injectkit/di"

// RegistrationMode describes how a binding came to exist.
type RegistrationMode int

const (
	Value   RegistrationMode = iota // Registered with a ready-made value
	Factory                         // Built once by the resolver
	Lazy                            // Declared with Provide, not built yet
)

func (m RegistrationMode) String() string {
	switch m {
	case Value:
		return "value"
	case Factory:
		return "factory"
	case Lazy:
		return "lazy"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// RegistrationInfo describes a binding visible from a container.
type RegistrationInfo struct {
	Key  Key
	Mode RegistrationMode
	// Depth is 0 for local bindings, 1 for the parent's, and so on.
	Depth int
}

// Container is a composition root. It owns one layer of bindings and reads
// through to its parent's layers.
type Container struct {
	id        string
	parent    *Container
	providers *Table[Provider]
	recipes   *Table[*recipe]
	resolver  *resolver
	settings  SettingsFamily
	tracer    trace.Tracer
	base      *logger.Logger
	log       *logger.Logger

	mu        sync.Mutex
	metrics   Metrics
	injectors []*Injector
}

// New creates a root container.
func New(opts ...Option) *Container {
	c := &Container{
		id:        uuid.NewString(),
		providers: NewTable[Provider](nil),
		recipes:   NewTable[*recipe](nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.init()
	return c
}

func (c *Container) init() {
	if c.tracer == nil {
		c.tracer = otel.Tracer(instrumentationName)
	}
	if c.base == nil {
		c.base = logger.WithComponent("di")
	}
	fields := logger.Fields(logger.FieldContainerID, c.id)
	if c.parent != nil {
		fields[logger.FieldParentID] = c.parent.id
	}
	c.log = c.base.WithFields(fields)
	c.resolver = &resolver{providers: c.providers, recipes: c.recipes, settings: c.settings}
}

// SubContainer returns a child whose lookups fall through to c. Bindings
// made in the child never reach c.
func (c *Container) SubContainer() *Container {
	child := &Container{
		id:        uuid.NewString(),
		parent:    c,
		providers: NewTable(c.providers),
		recipes:   NewTable(c.recipes),
		settings:  c.settings,
		tracer:    c.tracer,
		base:      c.base,
	}
	child.init()
	child.log.Debug("sub-container created")
	return child
}

// ID returns the container's unique id.
func (c *Container) ID() string { return c.id }

// ParentID returns the parent's id, or "" for a root container.
func (c *Container) ParentID() string {
	if c.parent == nil {
		return ""
	}
	return c.parent.id
}

// SetMetrics replaces the metrics collector. Injected functions pick up the
// new collector on their next call.
func (c *Container) SetMetrics(m Metrics) {
	c.mu.Lock()
	c.metrics = m
	c.mu.Unlock()
}

func (c *Container) currentMetrics() Metrics {
	c.mu.Lock()
	m := c.metrics
	c.mu.Unlock()
	if m == nil && c.parent != nil {
		return c.parent.currentMetrics()
	}
	return m
}

// Register binds key in this container. With WithValue the value is stored
// as is. Otherwise the factory, or the key itself, is resolved right away
// and the outcome is stored.
func (c *Container) Register(key any, opts ...RegisterOption) error {
	k, fn, err := targetOf(key)
	if err != nil {
		return err
	}
	var reg registration
	for _, opt := range opts {
		opt(&reg)
	}
	if reg.hasValue && reg.factory != nil {
		return errors.RegistrationConflict(k.String())
	}

	if reg.hasValue {
		if err := checkAssignable(k, reg.value); err != nil {
			return err
		}
		c.providers.Set(k, NewStaticProvider(reg.value))
		c.log.Debug("dependency registered", logger.Fields(
			logger.FieldKey, k.String(),
			logger.FieldMode, Value.String(),
		))
		return nil
	}

	target, targetFn := k, fn
	if reg.factory != nil {
		if target, targetFn, err = targetOf(reg.factory); err != nil {
			return err
		}
	}

	start := time.Now()
	p, err := c.resolver.resolve(target, targetFn, reg.params, nil)
	if err != nil {
		fields := logger.ErrorFields("register", err)
		fields[logger.FieldKey] = k.String()
		c.log.Warn("registration failed", fields)
		return err
	}
	if reg.factory != nil {
		if err := checkAssignable(k, p.Instance()); err != nil {
			return err
		}
	}
	c.providers.Set(k, p)
	c.log.Debug("dependency registered", logger.Fields(
		logger.FieldKey, k.String(),
		logger.FieldMode, Factory.String(),
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))
	return nil
}

// Provide declares ctor as the constructor for key without running it.
// The first resolution of key calls ctor and caches its result in c.
func (c *Container) Provide(key any, ctor any) error {
	k, _, err := targetOf(key)
	if err != nil {
		return err
	}
	_, fn, err := targetOf(ctor)
	if err != nil {
		return err
	}
	if fn == nil {
		return errors.Unresolvable(fmt.Sprintf("%T", ctor), "constructor must be a function")
	}
	ft := fn.fn.Type()
	if err := checkResults(ft, fn.Name()); err != nil {
		return err
	}
	if !k.IsFunc() {
		rt := resultType(ft)
		if rt == nil || !rt.AssignableTo(k.typ) {
			got := "nothing"
			if rt != nil {
				got = rt.String()
			}
			return errors.TypeMismatch(fn.Name(), k.typ.String(), got)
		}
	}

	c.recipes.Set(k, &recipe{fn: fn, owner: c.resolver})
	c.log.Debug("dependency provided", logger.Fields(
		logger.FieldKey, k.String(),
		logger.FieldMode, Lazy.String(),
	))
	return nil
}

// Resolve returns the instance bound to key, resolving and storing it on
// the first request. overrides only apply when key is not bound yet.
func (c *Container) Resolve(key any, overrides ...Params) (any, error) {
	return c.ResolveContext(context.Background(), key, overrides...)
}

// ResolveContext is Resolve with a parent context for tracing.
func (c *Container) ResolveContext(ctx context.Context, key any, overrides ...Params) (any, error) {
	k, fn, err := targetOf(key)
	if err != nil {
		return nil, err
	}

	_, span := c.tracer.Start(ctx, "di.resolve", trace.WithAttributes(
		attribute.String("di.key", k.String()),
		attribute.String("di.container", c.id),
	))
	defer span.End()

	if p, ok := c.resolver.bound(k); ok {
		span.SetAttributes(attribute.Bool("di.cached", true))
		return p.Instance(), nil
	}

	p, err := c.resolver.resolve(k, fn, mergeParams(overrides), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		fields := logger.ErrorFields("resolve", err)
		fields[logger.FieldKey] = k.String()
		c.log.Warn("resolution failed", fields)
		return nil, err
	}
	// Recipes store their result in the declaring container.
	if !c.recipes.Has(k) {
		c.providers.Set(k, p)
	}
	span.SetAttributes(attribute.Bool("di.cached", false))
	return p.Instance(), nil
}

// Has reports whether key is bound in c or any ancestor. Keys declared with
// Provide count as bound.
func (c *Container) Has(key any) bool {
	k, _, err := targetOf(key)
	if err != nil {
		return false
	}
	return c.providers.Has(k) || c.recipes.Has(k)
}

// Inject wraps fn so that its parameter objects are resolved once and
// reused on every call.
func (c *Container) Inject(fn any) (*Injector, error) {
	return c.addInjector(fn, true)
}

// InjectScoped wraps fn so that its parameter objects are resolved afresh
// on every call.
func (c *Container) InjectScoped(fn any) (*Injector, error) {
	return c.addInjector(fn, false)
}

func (c *Container) addInjector(fn any, cache bool) (*Injector, error) {
	inj, err := newInjector(c, fn, cache)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.injectors = append(c.injectors, inj)
	c.mu.Unlock()
	c.log.Debug("function injected", logger.Fields(
		logger.FieldFunction, inj.name,
		"cached", cache,
	))
	return inj, nil
}

// Clear drops every binding built or registered in this container and the
// caches of every injector it created. Parents and children keep theirs.
func (c *Container) Clear() {
	c.providers.Clear()
	for _, inj := range c.ownInjectors() {
		inj.ClearCache()
	}
	c.log.Debug("container cleared")
}

// PreloadInjected resolves the dependencies of every caching injector
// created by c.
func (c *Container) PreloadInjected() error {
	start := time.Now()
	var errs []error
	count := 0
	for _, inj := range c.ownInjectors() {
		if !inj.cacheEnabled {
			continue
		}
		if err := inj.Preload(); err != nil {
			errs = append(errs, err)
			continue
		}
		count++
	}
	fields := logger.DurationFields("preload", time.Since(start))
	fields["count"] = count
	fields["failed"] = len(errs)
	c.log.Info("injected functions preloaded", fields)
	return stderrors.Join(errs...)
}

// Injectors returns the injectors created by c, in creation order.
func (c *Container) Injectors() []*Injector {
	return c.ownInjectors()
}

func (c *Container) ownInjectors() []*Injector {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.injectors)
}

// Registrations lists every binding visible from c. A key shadowed by a
// nearer layer is only reported once, at the nearest depth.
func (c *Container) Registrations() []RegistrationInfo {
	seen := make(map[Key]bool)
	var result []RegistrationInfo

	depth := 0
	for cur := c; cur != nil; cur = cur.parent {
		for _, k := range cur.providers.Keys() {
			if seen[k] {
				continue
			}
			seen[k] = true
			p, _ := cur.providers.Get(k)
			result = append(result, RegistrationInfo{Key: k, Mode: modeOf(p), Depth: depth})
		}
		for _, k := range cur.recipes.Keys() {
			if seen[k] {
				continue
			}
			seen[k] = true
			result = append(result, RegistrationInfo{Key: k, Mode: Lazy, Depth: depth})
		}
		depth++
	}

	slices.SortFunc(result, func(a, b RegistrationInfo) int {
		return cmp.Or(cmp.Compare(a.Depth, b.Depth), cmp.Compare(a.Key.String(), b.Key.String()))
	})
	return result
}

// Close closes every instance bound locally that implements io.Closer.
// Instances inherited from a parent are left to the parent.
func (c *Container) Close() error {
	var errs []error
	for _, p := range c.providers.Values() {
		if closer, ok := p.Instance().(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		c.log.Warn("close finished with errors", logger.Fields("failed", len(errs)))
	}
	return stderrors.Join(errs...)
}

func checkAssignable(k Key, v any) error {
	if k.IsFunc() {
		return nil
	}
	if v == nil {
		switch k.typ.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return nil
		}
		return errors.TypeMismatch(k.String(), k.typ.String(), "nil")
	}
	if vt := reflect.TypeOf(v); !vt.AssignableTo(k.typ) {
		return errors.TypeMismatch(k.String(), k.typ.String(), vt.String())
	}
	return nil
}
