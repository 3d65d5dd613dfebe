package http

type Route struct {
	Methods []string
	Path    string
	Handler Handler
}

func (route Route) matches(method, path string) bool {
	if route.Path != path {
		return false
	}
	for _, m := range route.Methods {
		if m == method {
			return true
		}
	}
	return false
}

var NotFoundHandler Handler = func(req *Request) Future {
	return Ready(Text(StatusNotFound, NotFound))
}
