// Package service wires the demo routes: buffered and streamed file loads,
// fixed placeholder pages, the uppercase web API and an optional call to a
// second instance of the same service.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/freekieb7/webapi/http"
	"github.com/freekieb7/webapi/loader"
	"github.com/freekieb7/webapi/stream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Lowercase is the payload posted to the upstream web API.
var Lowercase = []byte("i am a lower case string")

type Options struct {
	IndexResource   string
	MissingResource string
	ChunkSize       int

	// UpstreamEnabled makes GET / and /index.html call UpstreamURL instead
	// of serving the index resource.
	UpstreamEnabled bool
	UpstreamURL     string
}

type Service struct {
	loader *loader.Loader
	client *http.Client
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
}

func New(l *loader.Loader, client *http.Client, opts Options, logger *slog.Logger) *Service {
	if opts.IndexResource == "" {
		opts.IndexResource = "index.html"
	}
	if opts.MissingResource == "" {
		opts.MissingResource = "no_file.html"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		loader: l,
		client: client,
		opts:   opts,
		logger: logger.With("component", "service"),
		tracer: otel.Tracer("github.com/freekieb7/webapi/service"),
	}
}

// Routes appends the service routes to router.
func (s *Service) Routes(router *http.Router) {
	index := s.handleIndex
	if s.opts.UpstreamEnabled {
		index = s.handleUpstream
	}

	router.Get("/", index)
	router.Get("/index.html", index)
	router.Get("/big_file.html", s.handleBigFile)
	router.Get("/no_file.html", s.handleNoFile)
	router.Get("/db_example.html", handleMissingImplementation)
	router.Get("/web_api_example.html", handleMissingImplementation)
	router.Post("/web_api", handleWebAPI)
}

func (s *Service) handleIndex(req *http.Request) http.Future {
	return s.loader.Buffered(req.Context(), s.opts.IndexResource)
}

func (s *Service) handleBigFile(req *http.Request) http.Future {
	return s.loader.Streaming(req.Context(), s.opts.IndexResource, s.opts.ChunkSize)
}

func (s *Service) handleNoFile(req *http.Request) http.Future {
	return s.loader.Buffered(req.Context(), s.opts.MissingResource)
}

func handleMissingImplementation(*http.Request) http.Future {
	return http.Ready(http.Text(http.StatusOK, http.MissingImplementation))
}

// handleWebAPI uppercases the request body chunk by chunk while it streams in.
func handleWebAPI(req *http.Request) http.Future {
	return http.Ready(http.NewResponse(http.StatusOK, stream.Map(req.Body, stream.Uppercase)))
}

// handleUpstream posts the lowercase payload to another instance and answers
// with the payload before and after the round trip.
func (s *Service) handleUpstream(req *http.Request) http.Future {
	ctx, span := s.tracer.Start(req.Context(), "upstream.post", trace.WithAttributes(attribute.String("url", s.opts.UpstreamURL)))

	return stream.Then(ctx, s.client.Post(ctx, s.opts.UpstreamURL, "text/plain", Lowercase), func(res *http.Response, err error) (*http.Response, error) {
		defer span.End()

		var after []byte
		if err == nil {
			after, err = readUpstream(ctx, res)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upstream failed")
			s.logger.ErrorContext(ctx, "upstream call failed", "url", s.opts.UpstreamURL, "error", err)
			return http.Bytes(http.StatusBadGateway, nil), nil
		}

		return http.Text(http.StatusOK, Compare(Lowercase, after)), nil
	})
}

// Compare renders the before and after payloads of an upstream round trip.
func Compare(before, after []byte) []byte {
	return fmt.Appendf(nil, "before: '%s'\nafter: '%s'", before, after)
}

// Fetch performs the upstream round trip directly and returns the rendered
// comparison.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	res, err := client.Post(ctx, url, "text/plain", Lowercase).Await(ctx)
	if err != nil {
		return nil, err
	}

	after, err := readUpstream(ctx, res)
	if err != nil {
		return nil, err
	}
	return Compare(Lowercase, after), nil
}

func readUpstream(ctx context.Context, res *http.Response) ([]byte, error) {
	body, err := stream.ReadAll(ctx, res.Body)
	if err != nil {
		return nil, err
	}
	if res.Status != http.StatusOK {
		return nil, fmt.Errorf("service: upstream answered %d", res.Status)
	}
	return body, nil
}
