package di

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/kbukum/injectkit/errors"
)

// Injector wraps a function whose parameter objects (structs embedding In)
// are supplied from a container. Every other parameter is plain and passed
// by the caller.
//
// A caching injector resolves its dependencies once, under a lock, and
// reuses them until ClearCache. A scoped injector resolves them on every
// call.
type Injector struct {
	container    *Container
	fn           reflect.Value
	name         string
	plain        []int
	deps         []injectedField
	cacheEnabled bool

	mu    sync.Mutex
	cache []reflect.Value
}

type injectedField struct {
	arg   int
	field []int
	name  string
	key   Key
}

func newInjector(c *Container, fn any, cache bool) (*Injector, error) {
	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, errors.InvalidKey(fmt.Sprintf("%T", fn))
	}
	ft := rv.Type()
	inj := &Injector{
		container:    c,
		fn:           rv,
		name:         funcName(rv),
		cacheEnabled: cache,
	}

	seen := make(map[string]bool)
	for i := 0; i < ft.NumIn(); i++ {
		pt := ft.In(i)
		if (ft.IsVariadic() && i == ft.NumIn()-1) || !embedsIn(pt) {
			inj.plain = append(inj.plain, i)
			continue
		}
		for j := 0; j < pt.NumField(); j++ {
			f := pt.Field(j)
			if skipField(f) {
				continue
			}
			if seen[f.Name] {
				return nil, errors.InvalidParameter(f.Name, inj.name, "injected by more than one parameter object")
			}
			seen[f.Name] = true
			inj.deps = append(inj.deps, injectedField{arg: i, field: f.Index, name: f.Name, key: Key{typ: f.Type}})
		}
	}
	return inj, nil
}

// Name returns the wrapped function's name.
func (inj *Injector) Name() string { return inj.name }

// Cached reports whether resolved dependencies are reused across calls.
func (inj *Injector) Cached() bool { return inj.cacheEnabled }

// Call invokes the wrapped function with args as its plain parameters.
// overrides replace injected fields by name for this call only.
func (inj *Injector) Call(args []any, overrides Params) ([]any, error) {
	in, err := inj.plainArgs(args)
	if err != nil {
		return nil, err
	}
	out, err := inj.invoke(in, overrides)
	if err != nil {
		return nil, err
	}
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, nil
}

// plainArgs converts caller arguments to the wrapped function's plain
// parameter types. Variadic extras are packed into a slice.
func (inj *Injector) plainArgs(args []any) ([]reflect.Value, error) {
	ft := inj.fn.Type()
	fixed := len(inj.plain)
	if ft.IsVariadic() {
		fixed--
	}
	if len(args) < fixed || (!ft.IsVariadic() && len(args) != fixed) {
		return nil, errors.InvalidParameter("args", inj.name, fmt.Sprintf("expected %d argument(s), got %d", fixed, len(args)))
	}

	in := make([]reflect.Value, len(inj.plain))
	for j := 0; j < fixed; j++ {
		idx := inj.plain[j]
		v, err := coerce(fmt.Sprintf("%s.arg%d", inj.name, idx), ft.In(idx), args[j])
		if err != nil {
			return nil, err
		}
		in[j] = v
	}
	if ft.IsVariadic() {
		last := ft.NumIn() - 1
		extra := args[fixed:]
		s := reflect.MakeSlice(ft.In(last), len(extra), len(extra))
		for j, a := range extra {
			v, err := coerce(fmt.Sprintf("%s.arg%d", inj.name, last), ft.In(last).Elem(), a)
			if err != nil {
				return nil, err
			}
			s.Index(j).Set(v)
		}
		in[fixed] = s
	}
	return in, nil
}

// invoke takes the plain arguments in declaration order, with a variadic
// tail already packed into a slice.
func (inj *Injector) invoke(plain []reflect.Value, overrides Params) ([]reflect.Value, error) {
	for _, name := range slices.Sorted(maps.Keys(overrides)) {
		if !slices.ContainsFunc(inj.deps, func(d injectedField) bool { return d.name == name }) {
			return nil, errors.UnknownParameter(name, inj.name)
		}
	}

	start := time.Now()
	injected, err := inj.dependencies()
	if err != nil {
		return nil, err
	}
	if m := inj.container.currentMetrics(); m != nil {
		m.SaveMetric(inj.name, time.Since(start))
	}

	ft := inj.fn.Type()
	in := make([]reflect.Value, ft.NumIn())
	next := 0
	for i := range in {
		if next < len(inj.plain) && inj.plain[next] == i {
			in[i] = plain[next]
			next++
			continue
		}
		in[i] = reflect.New(ft.In(i)).Elem()
	}
	for j, d := range inj.deps {
		v := injected[j]
		if ov, ok := overrides[d.name]; ok {
			if v, err = coerce(inj.name+"."+d.name, d.key.typ, ov); err != nil {
				return nil, err
			}
		}
		in[d.arg].FieldByIndex(d.field).Set(v)
	}

	if ft.IsVariadic() {
		return inj.fn.CallSlice(in), nil
	}
	return inj.fn.Call(in), nil
}

func (inj *Injector) dependencies() ([]reflect.Value, error) {
	if !inj.cacheEnabled {
		return inj.construct()
	}
	inj.mu.Lock()
	defer inj.mu.Unlock()
	if inj.cache == nil {
		values, err := inj.construct()
		if err != nil {
			return nil, err
		}
		inj.cache = values
	}
	return inj.cache, nil
}

func (inj *Injector) construct() ([]reflect.Value, error) {
	values := make([]reflect.Value, len(inj.deps))
	for i, d := range inj.deps {
		p, err := inj.container.resolver.resolve(d.key, nil, nil, nil)
		if err != nil {
			return nil, within(err, inj.name)
		}
		v, err := coerce(inj.name+"."+d.name, d.key.typ, p.Instance())
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// Preload resolves the dependencies now and replaces the cache.
func (inj *Injector) Preload() error {
	values, err := inj.construct()
	if err != nil {
		return err
	}
	if inj.cacheEnabled {
		inj.mu.Lock()
		inj.cache = values
		inj.mu.Unlock()
	}
	return nil
}

// ClearCache forgets resolved dependencies; the next call resolves again.
func (inj *Injector) ClearCache() {
	inj.mu.Lock()
	inj.cache = nil
	inj.mu.Unlock()
}

// Bind returns a function of type F that calls through inj. F must have
// the wrapped function's plain parameters and its results. When F's last
// result is error, injection failures are returned there; otherwise they
// panic.
func Bind[F any](inj *Injector) (F, error) {
	var zero F
	ft := reflect.TypeFor[F]()
	wt := inj.fn.Type()
	if err := checkSurface(inj, ft); err != nil {
		return zero, err
	}

	returnsErr := wt.NumOut() > 0 && wt.Out(wt.NumOut()-1) == errorType
	wrapped := reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
		out, err := inj.invoke(in, nil)
		if err == nil {
			return out
		}
		if !returnsErr {
			panic(err)
		}
		results := make([]reflect.Value, ft.NumOut())
		for i := range results {
			results[i] = reflect.Zero(ft.Out(i))
		}
		results[len(results)-1] = reflect.ValueOf(&err).Elem()
		return results
	})
	return wrapped.Interface().(F), nil
}

func checkSurface(inj *Injector, ft reflect.Type) error {
	wt := inj.fn.Type()
	mismatch := func() error {
		return errors.TypeMismatch("bind "+inj.name, inj.Surface().String(), ft.String())
	}
	if ft.Kind() != reflect.Func || ft.NumIn() != len(inj.plain) || ft.NumOut() != wt.NumOut() || ft.IsVariadic() != wt.IsVariadic() {
		return mismatch()
	}
	for j, idx := range inj.plain {
		if ft.In(j) != wt.In(idx) {
			return mismatch()
		}
	}
	for i := 0; i < ft.NumOut(); i++ {
		if ft.Out(i) != wt.Out(i) {
			return mismatch()
		}
	}
	return nil
}

// Surface returns the type of the function callers see: the wrapped
// function without its injected parameters.
func (inj *Injector) Surface() reflect.Type {
	wt := inj.fn.Type()
	in := make([]reflect.Type, len(inj.plain))
	for j, idx := range inj.plain {
		in[j] = wt.In(idx)
	}
	out := make([]reflect.Type, wt.NumOut())
	for i := range out {
		out[i] = wt.Out(i)
	}
	return reflect.FuncOf(in, out, wt.IsVariadic())
}

// InjectFunc wraps fn with a caching injector and binds it to F.
func InjectFunc[F any](c *Container, fn any) (F, error) {
	inj, err := c.Inject(fn)
	if err != nil {
		var zero F
		return zero, err
	}
	return Bind[F](inj)
}

// InjectScopedFunc wraps fn with a scoped injector and binds it to F.
func InjectScopedFunc[F any](c *Container, fn any) (F, error) {
	inj, err := c.InjectScoped(fn)
	if err != nil {
		var zero F
		return zero, err
	}
	return Bind[F](inj)
}
