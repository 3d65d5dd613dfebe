package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/freekieb7/webapi/stream"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultReadChunkSize = 32 * 1024

// Server bridges a net/http transport onto a Router: it turns every inbound
// request into a Request, awaits the handler's future and writes the body
// chunk by chunk, flushing after each one.
type Server struct {
	Name   string
	Router *Router
	Logger *slog.Logger

	// ReadChunkSize bounds the chunks read from request bodies.
	ReadChunkSize int

	mu       sync.Mutex
	server   *http.Server
	shutdown bool
}

func NewServer(name string, router *Router, logger *slog.Logger) *Server {
	if router == nil {
		router = NewRouter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Name:          name,
		Router:        router,
		Logger:        logger,
		ReadChunkSize: DefaultReadChunkSize,
	}
}

// Handler returns the instrumented net/http handler of the server.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s, s.Name)
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until Shutdown is called. It returns
// nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          slog.NewLogLogger(s.Logger.Handler(), slog.LevelWarn),
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return listener.Close()
	}
	s.server = srv
	s.mu.Unlock()

	s.Logger.Info("listening", "server", s.Name, "addr", listener.Addr().String())

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests until
// ctx is done. Connections still active at that point are closed, which
// cancels their request contexts. A server shut down before Serve never
// starts.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.shutdown = true
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		s.Logger.Warn("graceful shutdown incomplete, closing connections", "server", s.Name, "error", err)
		return errors.Join(err, srv.Close())
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)

	// Streaming transforms write the response while the request body is
	// still being read.
	if err := rc.EnableFullDuplex(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.Logger.DebugContext(ctx, "full duplex unavailable", "error", err)
	}

	req := NewRequest(ctx, r.Method, r.URL.Path, stream.FromReader(r.Body, s.ReadChunkSize))
	req.Header = r.Header

	res, err := s.Router.Dispatch(req).Await(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil || res == nil {
		s.Logger.ErrorContext(ctx, "response future failed", "method", r.Method, "path", r.URL.Path, "error", err)
		res = Bytes(StatusInternalServerError, nil)
	}

	header := w.Header()
	for name, values := range res.Header {
		header[name] = values
	}
	status := res.Status
	if status == 0 {
		status = StatusOK
	}
	w.WriteHeader(status)

	if res.Body == nil {
		return
	}
	// Streamed bodies announce themselves before the first chunk exists.
	if _, ok := res.ContentLength(); !ok {
		if err := rc.Flush(); err != nil {
			return
		}
	}
	for {
		chunk, err := res.Body.Next(ctx)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// The status line is already gone; dropping the connection is
			// the only way left to tell the client the body is incomplete.
			s.Logger.WarnContext(ctx, "response body truncated", "method", r.Method, "path", r.URL.Path, "error", err)
			panic(http.ErrAbortHandler)
		}

		if _, err := w.Write(chunk); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
