package di

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/kbukum/injectkit/errors"
)

// recipe is a constructor bound to a key by Provide. It runs on the
// resolver of the container that declared it, so its parameters come from
// that container's layers and its result is stored there.
type recipe struct {
	fn    *Func
	owner *resolver
}

// resolver builds providers for keys, reading bindings from a provider
// table. It never stores what it builds for intermediate parameters;
// callers decide what to persist.
type resolver struct {
	providers *Table[Provider]
	recipes   *Table[*recipe]
	settings  SettingsFamily
}

// bound returns the provider visible for key unless a recipe sits in a
// nearer layer.
func (r *resolver) bound(key Key) (Provider, bool) {
	p, pd, ok := r.providers.lookup(key)
	if !ok {
		return nil, false
	}
	if rd := r.recipes.Depth(key); rd >= 0 && rd < pd {
		return nil, false
	}
	return p, true
}

// resolve returns the provider for key. fn is set when key is a function
// target. chain holds the keys currently being built above this one.
func (r *resolver) resolve(key Key, fn *Func, overrides Params, chain []Key) (Provider, error) {
	if p, ok := r.bound(key); ok {
		return p, nil
	}
	if slices.Contains(chain, key) {
		return nil, errors.CircularDependency(keyNames(append(chain[:len(chain):len(chain)], key)))
	}
	chain = append(chain[:len(chain):len(chain)], key)

	if rec, ok := r.recipes.Get(key); ok {
		return rec.owner.runRecipe(key, rec, overrides, chain)
	}
	if fn != nil {
		return r.invokeFunc(fn, overrides, chain)
	}
	if key.IsFunc() {
		return nil, errors.Unresolvable(key.String(), "function key has nothing bound to it")
	}

	t := key.typ
	if r.settings != nil && r.settings.IsSettings(t) {
		return r.loadSettings(t, overrides)
	}

	switch {
	case t.Kind() == reflect.Interface && t.NumMethod() > 0:
		return nil, errors.MissingImplementation(t.String())
	case t.Kind() == reflect.Struct:
		return r.invokeStruct(t, false, overrides, chain)
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		return r.invokeStruct(t.Elem(), true, overrides, chain)
	}
	return nil, errors.Unresolvable(t.String(), "not a function or struct")
}

// runRecipe builds key with rec on r, the declaring container's resolver,
// and stores the result in its layer.
func (r *resolver) runRecipe(key Key, rec *recipe, overrides Params, chain []Key) (Provider, error) {
	if p, ok := r.bound(key); ok {
		return p, nil
	}
	p, err := r.invokeFunc(rec.fn, overrides, chain)
	if err != nil {
		return nil, err
	}
	r.providers.Set(key, p)
	return p, nil
}

func (r *resolver) invokeStruct(st reflect.Type, ptr bool, overrides Params, chain []Key) (Provider, error) {
	target := st.String()
	if ptr {
		target = "*" + target
	}
	params, err := structParams(target, st)
	if err != nil {
		return nil, err
	}
	return r.invoke(target, params, overrides, chain, buildStruct(st, ptr, params))
}

func (r *resolver) invokeFunc(fn *Func, overrides Params, chain []Key) (Provider, error) {
	target := fn.Name()
	if err := checkResults(fn.fn.Type(), target); err != nil {
		return nil, err
	}
	params, err := fn.params()
	if err != nil {
		return nil, err
	}
	return r.invoke(target, params, overrides, chain, func(values []reflect.Value) (any, error) {
		return fn.call(params, values)
	})
}

// invoke binds every parameter from overrides, declared defaults or
// recursive resolution, in that order, then runs build exactly once.
func (r *resolver) invoke(target string, params []Param, overrides Params, chain []Key, build func([]reflect.Value) (any, error)) (Provider, error) {
	declared := make(map[string]bool, len(params))
	for _, p := range params {
		declared[p.Name] = true
	}
	for _, name := range slices.Sorted(maps.Keys(overrides)) {
		if !declared[name] {
			return nil, errors.UnknownParameter(name, target)
		}
	}

	values := make([]reflect.Value, len(params))
	var missing []string
	for i, p := range params {
		if ov, ok := overrides[p.Name]; ok {
			v, err := coerce(target+"."+p.Name, p.Type, ov)
			if err != nil {
				return nil, err
			}
			values[i] = v
			continue
		}
		if p.HasDefault() {
			values[i] = p.Default
			continue
		}
		if p.Untyped() {
			missing = append(missing, p.Name)
			continue
		}

		dep, err := r.resolve(Key{typ: p.Type}, nil, nil, chain)
		if err != nil {
			return nil, within(err, target)
		}
		v, err := coerce(target+"."+p.Name, p.Type, dep.Instance())
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	if len(missing) > 0 {
		return nil, errors.UnderResolved(target, missing)
	}

	return NewFactoryProvider(func() (any, error) {
		return build(values)
	})
}

func (r *resolver) loadSettings(t reflect.Type, overrides Params) (Provider, error) {
	if len(overrides) > 0 {
		return nil, errors.UnknownParameter(slices.Sorted(maps.Keys(overrides))[0], t.String())
	}
	return NewFactoryProvider(func() (any, error) {
		v, err := r.settings.Load(t)
		if err != nil {
			if appErr, ok := err.(*errors.AppError); ok && appErr.Code == errors.ErrCodeSettingsLoad {
				return nil, appErr
			}
			return nil, errors.SettingsLoad(t.String(), err)
		}
		if v == nil || !reflect.TypeOf(v).AssignableTo(t) {
			return nil, errors.SettingsLoad(t.String(), fmt.Errorf("loader returned %T", v))
		}
		return v, nil
	})
}

// within prefixes resolver errors with the target being built. Errors
// raised by constructors themselves pass through untouched.
func within(err error, target string) error {
	if appErr, ok := err.(*errors.AppError); ok && errors.IsResolutionCode(appErr.Code) {
		return appErr.Within(target)
	}
	return err
}

func keyNames(keys []Key) []string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return names
}
