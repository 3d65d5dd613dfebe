package http

import (
	"context"
	"net/http"

	"github.com/freekieb7/webapi/stream"
)

type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   stream.Source

	// ID is assigned by RequestIDMiddleware.
	ID string

	ctx context.Context
}

func NewRequest(ctx context.Context, method, path string, body stream.Source) *Request {
	if body == nil {
		body = stream.Empty()
	}
	return &Request{
		Method: method,
		Path:   path,
		Header: http.Header{},
		Body:   body,
		ctx:    ctx,
	}
}

// Context is cancelled when the client goes away or the server shuts down.
func (req *Request) Context() context.Context {
	if req.ctx == nil {
		return context.Background()
	}
	return req.ctx
}
