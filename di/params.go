package di

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/kbukum/injectkit/errors"
)

// In marks a struct as a parameter object. When a function takes a struct
// embedding In, each exported field of that struct becomes a named,
// individually resolved parameter.
//
//	type handlerDeps struct {
//	    di.In
//	    Repo  *Repo
//	    Clock Clock
//	}
type In struct{}

const (
	tagInject  = "inject"
	tagDefault = "default"
)

var (
	inType       = reflect.TypeFor[In]()
	errorType    = reflect.TypeFor[error]()
	durationType = reflect.TypeFor[time.Duration]()
)

// Params maps parameter names to values that are bound directly instead of
// being resolved.
type Params map[string]any

func mergeParams(all []Params) Params {
	switch len(all) {
	case 0:
		return nil
	case 1:
		return all[0]
	}
	merged := make(Params)
	for _, p := range all {
		for k, v := range p {
			merged[k] = v
		}
	}
	return merged
}

// Param is one named parameter of a constructible target.
type Param struct {
	Name    string
	Type    reflect.Type
	Default reflect.Value

	arg   int   // position in a function's argument list, -1 for struct targets
	field []int // field index inside the target struct or parameter object
}

// HasDefault reports whether the target declares a default for p.
func (p Param) HasDefault() bool { return p.Default.IsValid() }

// Untyped reports whether p is the empty interface, which carries no type
// to resolve by.
func (p Param) Untyped() bool {
	return p.Type.Kind() == reflect.Interface && p.Type.NumMethod() == 0
}

// Func describes a function target. Go does not keep parameter names at
// runtime, so positional parameters are called arg0, arg1, ... unless names
// are supplied here.
type Func struct {
	fn       reflect.Value
	names    []string
	defaults map[string]any
}

// NewFunc describes fn, naming its positional parameters in order.
func NewFunc(fn any, names ...string) *Func {
	return &Func{fn: reflect.ValueOf(fn), names: names}
}

// WithDefault declares a default for the named parameter.
func (f *Func) WithDefault(name string, value any) *Func {
	if f.defaults == nil {
		f.defaults = make(map[string]any)
	}
	f.defaults[name] = value
	return f
}

// Name returns the fully qualified function name.
func (f *Func) Name() string {
	if !f.fn.IsValid() || f.fn.Kind() != reflect.Func {
		return "<invalid>"
	}
	return funcName(f.fn)
}

func funcName(fn reflect.Value) string {
	if rf := runtime.FuncForPC(fn.Pointer()); rf != nil {
		return rf.Name()
	}
	return fn.Type().String()
}

func embedsIn(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.Anonymous && f.Type == inType {
			return true
		}
	}
	return false
}

func skipField(f reflect.StructField) bool {
	return !f.IsExported() || f.Tag.Get(tagInject) == "-" || (f.Anonymous && f.Type == inType)
}

// structParams lists the injectable fields of st.
func structParams(target string, st reflect.Type) ([]Param, error) {
	var params []Param
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if skipField(f) {
			continue
		}
		p := Param{Name: f.Name, Type: f.Type, arg: -1, field: f.Index}
		if raw, ok := f.Tag.Lookup(tagDefault); ok {
			v, err := parseDefault(raw, f.Type)
			if err != nil {
				return nil, errors.InvalidParameter(f.Name, target, err.Error())
			}
			p.Default = v
		}
		params = append(params, p)
	}
	return params, nil
}

// params lists the parameters of f. A trailing variadic parameter is
// left out; the function is called with no extra values.
func (f *Func) params() ([]Param, error) {
	ft := f.fn.Type()
	target := f.Name()
	n := ft.NumIn()
	if ft.IsVariadic() {
		n--
	}
	if len(f.names) > n {
		return nil, errors.InvalidParameter(f.names[n], target, fmt.Sprintf("function takes %d parameter(s)", n))
	}

	var params []Param
	for i := 0; i < n; i++ {
		pt := ft.In(i)
		if embedsIn(pt) {
			fields, err := structParams(target, pt)
			if err != nil {
				return nil, err
			}
			for _, fp := range fields {
				fp.arg = i
				params = append(params, fp)
			}
			continue
		}
		name := fmt.Sprintf("arg%d", i)
		if i < len(f.names) && f.names[i] != "" {
			name = f.names[i]
		}
		params = append(params, Param{Name: name, Type: pt, arg: i})
	}

	index := make(map[string]int, len(params))
	for i, p := range params {
		if _, dup := index[p.Name]; dup {
			return nil, errors.InvalidParameter(p.Name, target, "declared more than once")
		}
		index[p.Name] = i
	}
	for name, value := range f.defaults {
		i, ok := index[name]
		if !ok {
			return nil, errors.UnknownParameter(name, target)
		}
		v, err := coerce(target+"."+name, params[i].Type, value)
		if err != nil {
			return nil, err
		}
		params[i].Default = v
	}
	return params, nil
}

// call invokes f with values laid out as described by params.
func (f *Func) call(params []Param, values []reflect.Value) (any, error) {
	ft := f.fn.Type()
	n := ft.NumIn()
	if ft.IsVariadic() {
		n--
	}
	args := make([]reflect.Value, n)
	for i := 0; i < n; i++ {
		if embedsIn(ft.In(i)) {
			args[i] = reflect.New(ft.In(i)).Elem()
		}
	}
	for i, p := range params {
		if p.field != nil {
			args[p.arg].FieldByIndex(p.field).Set(values[i])
			continue
		}
		args[p.arg] = values[i]
	}
	return unpackResults(f.fn.Call(args))
}

func checkResults(ft reflect.Type, target string) error {
	switch ft.NumOut() {
	case 0, 1:
		return nil
	case 2:
		if ft.Out(1) != errorType {
			return errors.Unresolvable(target, "second result must be error")
		}
		return nil
	default:
		return errors.Unresolvable(target, "constructor must return (value), (value, error) or error")
	}
}

// resultType is the type of the value a constructor produces, or nil if it
// only returns an error or nothing.
func resultType(ft reflect.Type) reflect.Type {
	if ft.NumOut() == 0 || (ft.NumOut() == 1 && ft.Out(0) == errorType) {
		return nil
	}
	return ft.Out(0)
}

func unpackResults(out []reflect.Value) (any, error) {
	if len(out) == 0 {
		return nil, nil
	}
	last := out[len(out)-1]
	if last.Type() == errorType {
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		if len(out) == 1 {
			return nil, nil
		}
	}
	return out[0].Interface(), nil
}

func buildStruct(st reflect.Type, ptr bool, params []Param) func([]reflect.Value) (any, error) {
	return func(values []reflect.Value) (any, error) {
		obj := reflect.New(st)
		elem := obj.Elem()
		for i, p := range params {
			elem.FieldByIndex(p.field).Set(values[i])
		}
		if init, ok := obj.Interface().(Initializer); ok {
			if err := init.Init(); err != nil {
				return nil, err
			}
		}
		if ptr {
			return obj.Interface(), nil
		}
		return elem.Interface(), nil
	}
}

// coerce turns v into a value assignable to t. Scalars of the same kind are
// converted so that untyped constants work for branded types like
// `type Port int`.
func coerce(name string, t reflect.Type, v any) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, errors.TypeMismatch(name, t.String(), "nil")
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if rv.Kind() == t.Kind() && isScalar(t.Kind()) && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, errors.TypeMismatch(name, t.String(), rv.Type().String())
}

func isScalar(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

// parseDefault converts a `default:"..."` tag literal into a value of t.
func parseDefault(raw string, t reflect.Type) (reflect.Value, error) {
	v := reflect.New(t).Elem()

	if t == durationType {
		d, err := cast.ToDurationE(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetInt(int64(d))
		return v, nil
	}

	switch t.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if v.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("%s overflows %s", raw, t)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if v.OverflowUint(n) {
			return reflect.Value{}, fmt.Errorf("%s overflows %s", raw, t)
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if v.OverflowFloat(f) {
			return reflect.Value{}, fmt.Errorf("%s overflows %s", raw, t)
		}
		v.SetFloat(f)
	case reflect.Slice:
		if t.Elem().Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("unsupported default for %s", t)
		}
		parts := strings.Split(raw, ",")
		s := reflect.MakeSlice(t, len(parts), len(parts))
		for i, p := range parts {
			s.Index(i).SetString(strings.TrimSpace(p))
		}
		v.Set(s)
	default:
		return reflect.Value{}, fmt.Errorf("unsupported default for %s", t)
	}
	return v, nil
}
