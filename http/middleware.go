package http

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/freekieb7/webapi/stream"
	"github.com/freekieb7/webapi/uuid"
)

type Middleware func(next Handler) Handler

// RecoverMiddleware turns a panicking handler into a 500 response.
func RecoverMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(req *Request) (future Future) {
			defer func() {
				if recovered := recover(); recovered != nil {
					logger.Error("handler panicked",
						"method", req.Method,
						"path", req.Path,
						"request_id", req.ID,
						"panic", fmt.Sprint(recovered))

					future = Ready(Bytes(StatusInternalServerError, nil))
				}
			}()

			return next(req)
		}
	}
}

// RequestIDMiddleware assigns every request an ID, taken from the
// X-Request-Id header when it carries a valid UUID.
func RequestIDMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(req *Request) Future {
			if id, err := uuid.Parse(req.Header.Get("X-Request-Id")); err == nil {
				req.ID = id.String()
			} else {
				req.ID = uuid.NewV4().String()
			}

			return stream.Then(req.Context(), call(next, req), func(res *Response, err error) (*Response, error) {
				if res != nil {
					res.Header.Set("X-Request-Id", req.ID)
				}
				return res, err
			})
		}
	}
}

// LoggingMiddleware logs one line per request once its response is ready.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(req *Request) Future {
			start := time.Now()

			return stream.Then(req.Context(), call(next, req), func(res *Response, err error) (*Response, error) {
				attrs := []any{
					"method", req.Method,
					"path", req.Path,
					"request_id", req.ID,
					"latency", time.Since(start),
				}
				if err == nil && res == nil {
					err = errNilResponse
				}
				if err != nil {
					logger.ErrorContext(req.Context(), "request failed", append(attrs, "error", err)...)
					return nil, err
				}

				logger.InfoContext(req.Context(), "request", append(attrs, "status", res.Status)...)
				return res, nil
			})
		}
	}
}

// call runs next and turns a missing future into a failed one.
func call(next Handler, req *Request) Future {
	if future := next(req); future != nil {
		return future
	}
	return Failed(errNilFuture)
}
