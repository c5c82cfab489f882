package di

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/kbukum/injectkit/errors"
)

// Key identifies a dependency. Type keys carry only a reflect.Type; function
// keys additionally carry the function's code pointer so that two different
// constructors of the same signature stay distinct.
type Key struct {
	typ reflect.Type
	fn  uintptr
}

// TypeOf returns the key for T.
func TypeOf[T any]() Key {
	return Key{typ: reflect.TypeFor[T]()}
}

// KeyOf builds a key from a reflect.Type, a Key, a function or a *Func.
func KeyOf(v any) (Key, error) {
	k, _, err := targetOf(v)
	return k, err
}

func funcKey(fn reflect.Value) Key {
	return Key{typ: fn.Type(), fn: fn.Pointer()}
}

// Type returns the type the key was built from. For function keys this is
// the function's signature.
func (k Key) Type() reflect.Type { return k.typ }

// IsFunc reports whether the key identifies a function rather than a type.
func (k Key) IsFunc() bool { return k.fn != 0 }

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool { return k.typ == nil }

func (k Key) String() string {
	switch {
	case k.typ == nil:
		return "<nil>"
	case k.fn != 0:
		if f := runtime.FuncForPC(k.fn); f != nil {
			return "func " + f.Name()
		}
		return k.typ.String()
	default:
		return k.typ.String()
	}
}

// targetOf splits v into the key it is stored under and, for callables, the
// descriptor used to invoke it.
func targetOf(v any) (Key, *Func, error) {
	switch t := v.(type) {
	case nil:
		return Key{}, nil, errors.InvalidKey("nil")
	case Key:
		if t.IsZero() {
			return Key{}, nil, errors.InvalidKey("zero key")
		}
		return t, nil, nil
	case *Func:
		if t == nil || !t.fn.IsValid() || t.fn.Kind() != reflect.Func || t.fn.IsNil() {
			return Key{}, nil, errors.InvalidKey("empty function descriptor")
		}
		return funcKey(t.fn), t, nil
	case reflect.Type:
		return Key{typ: t}, nil, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Func {
		if rv.IsNil() {
			return Key{}, nil, errors.InvalidKey("nil function")
		}
		return funcKey(rv), &Func{fn: rv}, nil
	}
	return Key{}, nil, errors.InvalidKey(fmt.Sprintf("%T", v))
}
