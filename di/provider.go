package di

// Provider yields the instance bound to a key.
type Provider interface {
	Instance() any
}

type staticProvider struct {
	value any
}

// NewStaticProvider wraps an already constructed value.
func NewStaticProvider(value any) Provider {
	return staticProvider{value: value}
}

func (p staticProvider) Instance() any { return p.value }

// factoryProvider holds the outcome of exactly one constructor call. The
// call happens when the provider is created; Instance never constructs.
type factoryProvider struct {
	value any
}

// NewFactoryProvider runs construct once and wraps its result.
func NewFactoryProvider(construct func() (any, error)) (Provider, error) {
	v, err := construct()
	if err != nil {
		return nil, err
	}
	return factoryProvider{value: v}, nil
}

func (p factoryProvider) Instance() any { return p.value }

func modeOf(p Provider) RegistrationMode {
	if _, ok := p.(factoryProvider); ok {
		return Factory
	}
	return Value
}
