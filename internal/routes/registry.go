package routes

import (
	"path"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// Registry records the symbolic name of every route registered through it,
// keyed by method and route pattern (gin's FullPath).
type Registry struct {
	mu    sync.RWMutex
	names map[string]Name
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]Name)}
}

func key(method, pattern string) string {
	return method + " " + pattern
}

// Handle registers handlers on group and records name for the resulting pattern.
// An empty name registers an unnamed route.
func (r *Registry) Handle(group *gin.RouterGroup, method, relativePath string, name Name, handlers ...gin.HandlerFunc) {
	group.Handle(method, relativePath, handlers...)
	if name == "" {
		return
	}
	pattern := joinPaths(group.BasePath(), relativePath)

	r.mu.Lock()
	r.names[key(method, pattern)] = name
	r.mu.Unlock()
}

// Lookup returns the name registered for method+pattern
func (r *Registry) Lookup(method, pattern string) (Name, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.names[key(method, pattern)]
	return n, ok
}

// RouteName resolves the name of the route matched for the current request
func (r *Registry) RouteName(c *gin.Context) (Name, bool) {
	pattern := c.FullPath()
	if pattern == "" {
		return "", false
	}
	return r.Lookup(c.Request.Method, pattern)
}

// joinPaths mirrors gin's own path joining so recorded patterns equal c.FullPath()
func joinPaths(base, relative string) string {
	if relative == "" {
		return base
	}
	final := path.Join(base, relative)
	if strings.HasSuffix(relative, "/") && !strings.HasSuffix(final, "/") {
		return final + "/"
	}
	return final
}
