package ginscope

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/errors"
	"github.com/kbukum/injectkit/logger"
	"github.com/kbukum/injectkit/observability"
)

const tracerName = "github.com/kbukum/injectkit/ginscope"

const (
	// ContainerKey is the gin context key holding the request's container.
	ContainerKey = "injectkit.container"
	// RequestIDKey is the gin context key holding the request id.
	RequestIDKey = "request_id"
	// HeaderRequestID carries the request id in and out.
	HeaderRequestID = "X-Request-Id"
)

// Scope describes the request a sub-container belongs to. Every request
// container binds *Scope, so constructors can depend on it.
type Scope struct {
	RequestID string
	Method    string
	Route     string
}

// Seed binds request-scoped values into sub before any handler runs.
type Seed func(c *gin.Context, sub *di.Container) error

// Option configures Middleware.
type Option func(*options)

type options struct {
	seeds  []Seed
	log    *logger.Logger
	tracer trace.Tracer
}

// WithSeed adds a seed. Seeds run in the order given.
func WithSeed(s Seed) Option {
	return func(o *options) {
		o.seeds = append(o.seeds, s)
	}
}

// WithLogger sets the logger used for request container failures.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithTracer sets the tracer for request spans. Defaults to the global
// provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// Middleware gives every request its own sub-container of root. The
// request's *gin.Context and *Scope are bound in it, then each seed runs.
// Values built while serving the request stay in the sub-container and are
// closed when the request ends.
func Middleware(root *di.Container, opts ...Option) gin.HandlerFunc {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.WithComponent("ginscope")
	}
	if o.tracer == nil {
		o.tracer = observability.Tracer(tracerName)
	}

	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(HeaderRequestID, id)

		ctx, span := o.tracer.Start(c.Request.Context(), observability.SpanRequest, trace.WithAttributes(
			attribute.String(observability.AttrRequestID, id),
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
		))
		c.Request = c.Request.WithContext(ctx)

		sub, err := open(c, root, id, o.seeds)
		if err != nil {
			o.log.Error("request container setup failed", logger.Fields(
				logger.FieldRequestID, id,
				logger.FieldError, err.Error(),
			))
			respondError(c, err)
			observability.EndSpan(span, err)
			return
		}
		defer release(sub, o.log)
		span.SetAttributes(attribute.String(observability.AttrContainer, sub.ID()))

		c.Set(ContainerKey, sub)
		c.Next()

		var spanErr error
		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			spanErr = fmt.Errorf("status %d", status)
		}
		observability.EndSpan(span, spanErr)
	}
}

func open(c *gin.Context, root *di.Container, id string, seeds []Seed) (*di.Container, error) {
	sub := root.SubContainer()
	scope := &Scope{RequestID: id, Method: c.Request.Method, Route: c.FullPath()}
	if err := sub.Register(di.TypeOf[*Scope](), di.WithValue(scope)); err != nil {
		return nil, err
	}
	if err := sub.Register(di.TypeOf[*gin.Context](), di.WithValue(c)); err != nil {
		return nil, err
	}
	for _, seed := range seeds {
		if err := seed(c, sub); err != nil {
			release(sub, nil)
			return nil, err
		}
	}
	return sub, nil
}

func release(sub *di.Container, log *logger.Logger) {
	if err := sub.Close(); err != nil && log != nil {
		log.Warn("request container close failed", logger.Fields(
			logger.FieldContainerID, sub.ID(),
			logger.FieldError, err.Error(),
		))
	}
	sub.Clear()
}

// Container returns the request's container, if Middleware ran.
func Container(c *gin.Context) (*di.Container, bool) {
	v, ok := c.Get(ContainerKey)
	if !ok {
		return nil, false
	}
	sub, ok := v.(*di.Container)
	return sub, ok
}

// RequestID returns the request id set by Middleware.
func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// respondError aborts with the error's status and JSON body. Plain errors
// are reported as INTERNAL_ERROR without their message.
func respondError(c *gin.Context, err error) {
	appErr := errors.Internal(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus(), appErr.ToResponse())
}
