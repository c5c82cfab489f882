// Package di resolves object graphs from declared parameter types.
//
// A target is a struct type (its exported fields are its parameters) or a
// function (its arguments are). The container resolves each parameter by
// type, recursively, invokes the target once, and caches the outcome per
// container. Child containers read through to their parent and shadow it
// with local bindings.
//
// # Registration
//
//	c := di.New()
//	_ = di.Register[Clock](c, systemClock{})
//	_ = c.Register(di.TypeOf[Store](), di.WithFactory(NewPostgresStore))
//
// # Resolution
//
//	svc := di.MustResolve[*Service](c)
//	client, err := di.Resolve[*Client](c, di.Params{"Timeout": 5 * time.Second})
//
// # Injection
//
// Functions taking a struct that embeds di.In get that struct filled in:
//
//	type deps struct {
//	    di.In
//	    Repo *Repo
//	}
//
//	handle, err := di.InjectFunc[func(string) error](c, func(id string, d deps) error {
//	    return d.Repo.Touch(id)
//	})
package di
