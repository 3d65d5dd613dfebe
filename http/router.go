package http

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	errNilFuture   = errors.New("http: handler returned no future")
	errNilResponse = errors.New("http: handler resolved without a response")
)

// Router dispatches on exact (method, path) pairs. Routes are kept in
// registration order and the first match wins; a pair can only be
// registered once.
type Router struct {
	Routes     []Route
	Middleware []Middleware
	NotFound   Handler
}

func NewRouter() *Router {
	return &Router{
		Routes:   make([]Route, 0),
		NotFound: NotFoundHandler,
	}
}

func (router *Router) Get(path string, handler Handler, middleware ...Middleware) {
	router.Any([]string{http.MethodGet}, path, handler, middleware...)
}

func (router *Router) Post(path string, handler Handler, middleware ...Middleware) {
	router.Any([]string{http.MethodPost}, path, handler, middleware...)
}

// Any registers handler for every method in methods. It panics when one of
// the (method, path) pairs is already taken.
func (router *Router) Any(methods []string, path string, handler Handler, middleware ...Middleware) {
	for _, middleware := range middleware {
		handler = middleware(handler)
	}

	router.add(Route{
		Methods: methods,
		Path:    path,
		Handler: handler,
	})
}

func (router *Router) add(route Route) {
	for _, method := range route.Methods {
		for _, existing := range router.Routes {
			if existing.matches(method, route.Path) {
				panic(fmt.Sprintf("http: duplicate route %s %s", method, route.Path))
			}
		}
	}

	router.Routes = append(router.Routes, route)
}

// Group registers the routes added by groupFunc under the path prefix and
// wraps them with middlewareList.
func (router *Router) Group(path string, groupFunc func(group *Router), middlewareList ...Middleware) {
	group := NewRouter()

	groupFunc(group)

	for _, route := range group.Routes {
		route.Path = path + route.Path
		for _, middleware := range middlewareList {
			route.Handler = middleware(route.Handler)
		}

		router.add(route)
	}
}

// Use appends router wide middleware. It applies to every route and to the
// not found handler.
func (router *Router) Use(middleware ...Middleware) {
	router.Middleware = append(router.Middleware, middleware...)
}

// Lookup returns the handler registered for the pair, or the not found
// handler.
func (router *Router) Lookup(method, path string) (Handler, bool) {
	for _, route := range router.Routes {
		if route.matches(method, path) {
			return route.Handler, true
		}
	}

	if router.NotFound != nil {
		return router.NotFound, false
	}
	return NotFoundHandler, false
}

// Dispatch selects the handler for req and returns its response future
// without waiting for it.
func (router *Router) Dispatch(req *Request) Future {
	return router.Handler()(req)
}

// Handler returns the router as a single Handler with the router wide
// middleware applied.
func (router *Router) Handler() Handler {
	handler := Handler(func(req *Request) Future {
		h, _ := router.Lookup(req.Method, req.Path)
		return call(h, req)
	})

	for i := len(router.Middleware) - 1; i >= 0; i-- {
		handler = router.Middleware[i](handler)
	}

	return handler
}
