// Package http routes requests to handlers that produce their responses
// asynchronously and bridges them onto a net/http transport.
package http

import (
	"github.com/freekieb7/webapi/stream"
)

// Fixed payloads shared by every handler.
var (
	NotFound              = []byte("Not Found")
	MissingImplementation = []byte("Missing implementation")
	ServiceUnavailable    = []byte("Service Unavailable")
)

// Future is the not yet resolved response of a handler. It is resolved
// exactly once and awaited exactly once by the transport.
type Future = *stream.Deferred[*Response]

// Handler inspects a request and returns its response future. It must not
// block on I/O; slow work belongs on a background worker.
type Handler func(req *Request) Future

// Ready returns a future that already holds res.
func Ready(res *Response) Future {
	return stream.Resolved(res)
}

// Failed returns a future that already holds err.
func Failed(err error) Future {
	f := stream.NewDeferred[*Response]()
	_ = f.Fail(err)
	return f
}
