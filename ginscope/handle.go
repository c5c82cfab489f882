package ginscope

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/errors"
	"github.com/kbukum/injectkit/logger"
)

var (
	ginContextType = reflect.TypeFor[*gin.Context]()
	errorType      = reflect.TypeFor[error]()
)

// Handle turns fn into a gin handler whose injected parameters are resolved
// from the request's container. fn takes *gin.Context plus any number of
// di.In parameter objects, and returns nothing, error, a value, or a value
// and an error. A returned value is rendered as JSON with status 200 unless
// fn already wrote a response; an error is rendered through its AppError
// status.
//
//	h, err := ginscope.Handle(root, func(c *gin.Context, d struct {
//	    di.In
//	    Orders *OrderService
//	}) (*Order, error) {
//	    return d.Orders.Get(c.Param("id"))
//	})
func Handle(root *di.Container, fn any) (gin.HandlerFunc, error) {
	scratch := root.SubContainer()
	inj, err := scratch.InjectScoped(fn)
	if err != nil {
		return nil, err
	}
	if err := checkHandler(inj); err != nil {
		return nil, err
	}
	log := logger.WithComponent("ginscope").WithFields(logger.Fields(logger.FieldFunction, inj.Name()))

	return func(c *gin.Context) {
		sub, ok := Container(c)
		if !ok {
			sub = root.SubContainer()
			defer release(sub, log)
		}

		scoped, err := sub.InjectScoped(fn)
		if err != nil {
			respondError(c, err)
			return
		}
		out, err := scoped.Call([]any{c}, nil)
		if err != nil {
			log.Warn("handler injection failed", logger.Fields(
				logger.FieldRequestID, RequestID(c),
				logger.FieldError, err.Error(),
			))
			respondError(c, err)
			return
		}
		render(c, out)
	}, nil
}

// MustHandle is Handle for route tables built at startup.
func MustHandle(root *di.Container, fn any) gin.HandlerFunc {
	h, err := Handle(root, fn)
	if err != nil {
		panic(err)
	}
	return h
}

func checkHandler(inj *di.Injector) error {
	s := inj.Surface()
	if s.NumIn() != 1 || s.In(0) != ginContextType || s.IsVariadic() {
		return errors.TypeMismatch(inj.Name(), "func(*gin.Context, ...)", s.String())
	}
	if s.NumOut() > 2 || (s.NumOut() == 2 && s.Out(1) != errorType) {
		return errors.TypeMismatch(inj.Name(), "func(...) (T, error)", s.String())
	}
	return nil
}

func render(c *gin.Context, out []any) {
	if len(out) > 0 {
		if err, ok := out[len(out)-1].(error); ok && err != nil {
			respondError(c, err)
			return
		}
	}
	if len(out) == 0 || c.Writer.Written() {
		return
	}
	if _, isErr := out[0].(error); isErr || (len(out) == 1 && out[0] == nil) {
		return
	}
	c.JSON(http.StatusOK, out[0])
}
