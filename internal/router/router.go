package router

import (
	"net/http"
	"slices"
	"strings"
	"sync"
)

// Router wraps http.ServeMux with middleware chaining
type Router struct {
	mux      *http.ServeMux
	chain    []Middleware
	routes   *registry
	notFound http.Handler
}

// Middleware is a function that wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// Route is a registered method and pattern.
type Route struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// registry is shared by a router and all of its groups.
type registry struct {
	mu     sync.RWMutex
	routes []Route
}

func (reg *registry) add(rt Route) {
	reg.mu.Lock()
	reg.routes = append(reg.routes, rt)
	reg.mu.Unlock()
}

// methods returns each registered method once.
func (reg *registry) methods() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	var out []string
	for _, rt := range reg.routes {
		if !slices.Contains(out, rt.Method) {
			out = append(out, rt.Method)
		}
	}
	return out
}

func (reg *registry) list() []Route {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return slices.Clone(reg.routes)
}

// New creates a new Router with optional global middleware
func New(middleware ...Middleware) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		chain:  middleware,
		routes: &registry{},
	}
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r.notFound != nil && !r.matches(req) {
		r.notFound.ServeHTTP(w, req)
		return
	}
	r.mux.ServeHTTP(w, req)
}

// matches reports whether any registered route matches the request path,
// whatever its method. A path match with the wrong method is left to the mux
// so it answers 405 with an Allow header.
func (r *Router) matches(req *http.Request) bool {
	if _, pattern := r.mux.Handler(req); pattern != "" {
		return true
	}
	for _, method := range r.routes.methods() {
		probe := req.Clone(req.Context())
		probe.Method = method
		if _, pattern := r.mux.Handler(probe); pattern != "" {
			return true
		}
	}
	return false
}

// Get registers a GET route
func (r *Router) Get(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.handle(http.MethodGet, pattern, handler, middleware)
}

// Handle registers a route with explicit method. An exact-match pattern such
// as "/{$}" is listed by Routes without its "{$}" suffix.
func (r *Router) Handle(method, pattern string, handler http.Handler, middleware ...Middleware) {
	r.mux.Handle(method+" "+pattern, r.wrap(handler, middleware))
	r.routes.add(Route{Method: method, Path: strings.TrimSuffix(pattern, "{$}")})
}

// NotFound sets the handler for requests whose path matches no route. It runs
// behind the router's middleware and is not listed by Routes. Requests whose
// path matches under another method still get 405 from the mux.
func (r *Router) NotFound(handler http.HandlerFunc) {
	r.notFound = r.wrap(handler, nil)
}

// handle is the internal route registration function
func (r *Router) handle(method, pattern string, handler http.HandlerFunc, middleware []Middleware) {
	r.Handle(method, pattern, handler, middleware...)
}

// Routes returns every route registered on the router or any of its groups,
// in registration order.
func (r *Router) Routes() []Route {
	return r.routes.list()
}

// wrap applies middleware to a handler in reverse order
func (r *Router) wrap(handler http.Handler, middleware []Middleware) http.Handler {
	// Combine global middleware chain with route-specific middleware
	combined := append(slices.Clone(r.chain), middleware...)

	// Apply middleware in reverse order so they execute in the order defined
	slices.Reverse(combined)

	result := handler
	for _, m := range combined {
		result = m(result)
	}

	return result
}

// Group creates a sub-router with additional middleware
func (r *Router) Group(middleware ...Middleware) *Router {
	return &Router{
		mux:    r.mux,
		chain:  append(slices.Clone(r.chain), middleware...),
		routes: r.routes,
	}
}
