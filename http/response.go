package http

import (
	"net/http"
	"strconv"

	"github.com/freekieb7/webapi/stream"
)

type Response struct {
	Status int
	Header http.Header
	Body   stream.Source
}

// NewResponse returns a response with the given status and body. A nil body
// is treated as empty.
func NewResponse(status int, body stream.Source) *Response {
	if status == 0 {
		status = StatusOK
	}
	if body == nil {
		body = stream.Empty()
	}
	return &Response{
		Status: status,
		Header: http.Header{},
		Body:   body,
	}
}

// Bytes returns a response carrying payload as one chunk with its
// Content-Length set.
func Bytes(status int, payload []byte) *Response {
	res := NewResponse(status, stream.Single(payload))
	res.Header.Set("Content-Length", strconv.Itoa(len(payload)))
	return res
}

// Text is Bytes with a plain text content type.
func Text(status int, payload []byte) *Response {
	return Bytes(status, payload).WithHeader("Content-Type", "text/plain; charset=utf-8")
}

func (res *Response) WithHeader(name, value string) *Response {
	res.Header.Set(name, value)
	return res
}

// ContentLength reports the declared body length, if any.
func (res *Response) ContentLength() (int64, bool) {
	v := res.Header.Get("Content-Length")
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
