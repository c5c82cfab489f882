package logger

import (
	"sync"
)

// routes maps component names to the logger WithComponent returns for them.
var routes = &componentRoutes{
	loggers: make(map[string]*Logger),
}

type componentRoutes struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

// Route makes WithComponent(name) return l instead of a child of the global
// logger. A nil l removes the route.
func Route(name string, l *Logger) {
	routes.mu.Lock()
	defer routes.mu.Unlock()
	if l == nil {
		delete(routes.loggers, name)
		return
	}
	routes.loggers[name] = l
}

// RouteComponents routes each name to base tagged with that name.
func RouteComponents(base *Logger, names ...string) {
	for _, name := range names {
		Route(name, base.WithComponent(name))
	}
}

func routed(name string) (*Logger, bool) {
	routes.mu.RLock()
	defer routes.mu.RUnlock()
	l, ok := routes.loggers[name]
	return l, ok
}
