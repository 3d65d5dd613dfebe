// Package loader serves named resources from a filesystem on background
// workers, either buffered in full or streamed through a bounded pipeline.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/freekieb7/webapi/filesystem"
	"github.com/freekieb7/webapi/http"
	"github.com/freekieb7/webapi/stream"
	"github.com/freekieb7/webapi/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultChunkSize  = 64 * 1024
	DefaultMaxStreams = 256

	instrumentationName = "github.com/freekieb7/webapi/loader"
)

var (
	ErrResourceNotFound = errors.New("loader: resource not found")
	ErrResourceRead     = errors.New("loader: resource read failed")
	ErrTooManyStreams   = errors.New("loader: too many concurrent streams")
)

// Submitter queues background work. *worker.Pool implements it.
type Submitter interface {
	Submit(job worker.Job) error
}

type Options struct {
	// PipelineCapacity is the number of chunks buffered between the reader
	// goroutine and the response writer.
	PipelineCapacity int
	// MaxStreams bounds the number of resources streamed at the same time.
	// Each stream holds its own reader goroutine until the consumer is done.
	MaxStreams       int
	Logger           *slog.Logger
	Meter            metric.Meter
	Tracer           trace.Tracer
}

type Loader struct {
	fs       filesystem.Filesystem
	workers  Submitter
	capacity int
	streams  *semaphore.Weighted
	logger   *slog.Logger
	tracer   trace.Tracer

	bytesServed metric.Int64Counter
	notFound    metric.Int64Counter
}

func New(fs filesystem.Filesystem, workers Submitter, opts Options) (*Loader, error) {
	if opts.PipelineCapacity < 1 {
		opts.PipelineCapacity = stream.DefaultCapacity
	}
	if opts.MaxStreams < 1 {
		opts.MaxStreams = DefaultMaxStreams
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter(instrumentationName)
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(instrumentationName)
	}

	bytesServed, err := opts.Meter.Int64Counter("webapi.loader.bytes",
		metric.WithDescription("Resource bytes handed to responses"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, fmt.Errorf("loader: creating bytes counter: %w", err)
	}
	notFound, err := opts.Meter.Int64Counter("webapi.loader.not_found",
		metric.WithDescription("Requests for resources that do not exist"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("loader: creating not found counter: %w", err)
	}

	return &Loader{
		fs:          fs,
		workers:     workers,
		capacity:    opts.PipelineCapacity,
		streams:     semaphore.NewWeighted(int64(opts.MaxStreams)),
		logger:      opts.Logger.With("component", "loader"),
		tracer:      opts.Tracer,
		bytesServed: bytesServed,
		notFound:    notFound,
	}, nil
}

// Buffered reads the named resource completely on a worker and resolves the
// returned future with a 200 response carrying it as a single chunk.
func (l *Loader) Buffered(ctx context.Context, name string) http.Future {
	future := stream.NewDeferred[*http.Response]()

	job := func() {
		defer guard(future)

		ctx, span := l.tracer.Start(ctx, "loader.buffered", trace.WithAttributes(attribute.String("resource", name)))
		defer span.End()

		deliver(future, l.readAll(ctx, span, name))
	}
	if err := l.workers.Submit(job); err != nil {
		l.logger.WarnContext(ctx, "rejecting buffered load", "resource", name, "error", err)
		return http.Ready(http.Text(http.StatusServiceUnavailable, http.ServiceUnavailable))
	}

	return future
}

func (l *Loader) readAll(ctx context.Context, span trace.Span, name string) *http.Response {
	file, err := l.fs.Open(name)
	if err != nil {
		return l.openFailed(ctx, span, name, err)
	}
	defer l.close(ctx, name, file)

	content, err := io.ReadAll(file)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrResourceRead, name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		l.logger.ErrorContext(ctx, "reading resource failed", "resource", name, "error", err)
		return http.Bytes(http.StatusInternalServerError, nil)
	}

	l.bytesServed.Add(ctx, int64(len(content)), metric.WithAttributes(attribute.String("mode", "buffered")))
	return http.Bytes(http.StatusOK, content)
}

// Streaming opens the named resource on a worker and resolves the returned
// future as soon as the file is open. A dedicated reader goroutine then
// pushes the file in chunks of at most chunkSize bytes into the response
// body, so a slow consumer never holds a pool worker. Chunk size 0 selects
// DefaultChunkSize. When MaxStreams readers are already running the future
// resolves to 503.
func (l *Loader) Streaming(ctx context.Context, name string, chunkSize int) http.Future {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	future := stream.NewDeferred[*http.Response]()

	job := func() {
		defer guard(future)

		ctx, span := l.tracer.Start(ctx, "loader.streaming", trace.WithAttributes(
			attribute.String("resource", name),
			attribute.Int("chunk_size", chunkSize)))
		defer span.End()

		file, err := l.fs.Open(name)
		if err != nil {
			deliver(future, l.openFailed(ctx, span, name, err))
			return
		}

		if !l.streams.TryAcquire(1) {
			l.close(ctx, name, file)
			l.logger.WarnContext(ctx, "rejecting streaming read", "resource", name, "error", ErrTooManyStreams)
			deliver(future, http.Text(http.StatusServiceUnavailable, http.ServiceUnavailable))
			return
		}

		pipeline := stream.NewPipeline(l.capacity)
		go func() {
			defer l.streams.Release(1)
			l.pump(ctx, name, file, pipeline, chunkSize)
		}()

		deliver(future, http.NewResponse(http.StatusOK, pipeline))
	}
	if err := l.workers.Submit(job); err != nil {
		l.logger.WarnContext(ctx, "rejecting streaming load", "resource", name, "error", err)
		return http.Ready(http.Text(http.StatusServiceUnavailable, http.ServiceUnavailable))
	}

	return future
}

// pump copies file into pipeline and always closes both. Pushes are bound to
// ctx so a disconnected client stops the copy.
func (l *Loader) pump(ctx context.Context, name string, file io.ReadCloser, pipeline *stream.Pipeline, chunkSize int) {
	defer l.close(ctx, name, file)

	var total int64
	defer func() {
		l.bytesServed.Add(context.WithoutCancel(ctx), total, metric.WithAttributes(attribute.String("mode", "streaming")))
	}()

	for {
		buf := make([]byte, chunkSize)
		n, err := io.ReadFull(file, buf)
		if n > 0 {
			if pushErr := pipeline.Push(ctx, buf[:n]); pushErr != nil {
				l.logger.DebugContext(ctx, "streaming stopped", "resource", name, "error", pushErr)
				pipeline.CloseWithError(pushErr)
				return
			}
			total += int64(n)
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			pipeline.Close()
			return
		default:
			err = fmt.Errorf("%w: %s: %w", ErrResourceRead, name, err)
			l.logger.ErrorContext(ctx, "reading resource failed mid-stream", "resource", name, "bytes", total, "error", err)
			pipeline.CloseWithError(err)
			return
		}
	}
}

func (l *Loader) openFailed(ctx context.Context, span trace.Span, name string, err error) *http.Response {
	if errors.Is(err, filesystem.ErrFileNotFound) || errors.Is(err, filesystem.ErrInvalidPath) {
		span.SetAttributes(attribute.Bool("resource.found", false))
		l.notFound.Add(ctx, 1)
		l.logger.DebugContext(ctx, "resource not found", "resource", name, "error", fmt.Errorf("%w: %w", ErrResourceNotFound, err))
		return http.Text(http.StatusNotFound, http.NotFound)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "open failed")
	l.logger.ErrorContext(ctx, "opening resource failed", "resource", name, "error", err)
	return http.Bytes(http.StatusInternalServerError, nil)
}

func (l *Loader) close(ctx context.Context, name string, file io.Closer) {
	if err := file.Close(); err != nil {
		l.logger.ErrorContext(ctx, "closing resource failed", "resource", name, "error", err)
	}
}

// deliver resolves future with res. A future must be resolved exactly once;
// a second delivery is a programming error that aborts the current job.
func deliver(future http.Future, res *http.Response) {
	if err := future.Resolve(res); err != nil {
		panic(fmt.Sprintf("loader: delivering response: %v", err))
	}
}

// guard fails future when the job panics before delivering, so the waiting
// consumer is always released, then lets the panic reach the pool.
func guard(future http.Future) {
	if r := recover(); r != nil {
		_ = future.Fail(fmt.Errorf("loader: job aborted: %v", r))
		panic(r)
	}
}
