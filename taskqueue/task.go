package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/errors"
)

// Handler processes one delivery of a task. payload is the JSON the task
// was enqueued with.
type Handler func(ctx context.Context, payload []byte) error

// Registrar accepts handlers by task name. The queue owns delivery; the
// container owns the handler's dependencies.
type Registrar interface {
	Register(name string, h Handler) error
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Task wraps fn with c.Inject and registers the result with r under name.
// fn takes a context.Context, optionally a payload value decoded from JSON,
// and any number of di.In parameter objects. It returns nothing or an
// error. Dependencies are resolved on the first delivery and reused after.
//
//	taskqueue.Task(q, c, "invoice.send", func(ctx context.Context, p SendInvoice, d struct {
//	    di.In
//	    Mailer *Mailer
//	}) error {
//	    return d.Mailer.Send(ctx, p.InvoiceID)
//	})
func Task(r Registrar, c *di.Container, name string, fn any) error {
	// Check the shape on a throwaway child so c keeps no injector on failure.
	shape, err := c.SubContainer().InjectScoped(fn)
	if err != nil {
		return err
	}
	if err := checkTask(shape); err != nil {
		return err
	}

	inj, err := c.Inject(fn)
	if err != nil {
		return err
	}
	return r.Register(name, handlerFor(inj))
}

func checkTask(inj *di.Injector) error {
	s := inj.Surface()
	if s.IsVariadic() || s.NumIn() < 1 || s.NumIn() > 2 || s.In(0) != contextType {
		return errors.TypeMismatch(inj.Name(), "func(context.Context[, P], ...) error", s.String())
	}
	if s.NumOut() > 1 || (s.NumOut() == 1 && s.Out(0) != errorType) {
		return errors.TypeMismatch(inj.Name(), "func(...) error", s.String())
	}
	return nil
}

// handlerFor adapts an injected function to Handler.
func handlerFor(inj *di.Injector) Handler {
	s := inj.Surface()
	var payloadType reflect.Type
	if s.NumIn() == 2 {
		payloadType = s.In(1)
	}

	return func(ctx context.Context, payload []byte) error {
		args := []any{ctx}
		if payloadType != nil {
			pv := reflect.New(payloadType)
			if len(payload) > 0 {
				if err := json.Unmarshal(payload, pv.Interface()); err != nil {
					return errors.Validation(fmt.Sprintf("payload for %s: %v", inj.Name(), err)).WithCause(err)
				}
			}
			args = append(args, pv.Elem().Interface())
		}

		out, err := inj.Call(args, nil)
		if err != nil {
			return err
		}
		if len(out) == 1 && out[0] != nil {
			return out[0].(error)
		}
		return nil
	}
}
