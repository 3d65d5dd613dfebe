package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/freekieb7/webapi/config"
	"github.com/freekieb7/webapi/filesystem"
	"github.com/freekieb7/webapi/http"
	"github.com/freekieb7/webapi/loader"
	"github.com/freekieb7/webapi/service"
	"github.com/freekieb7/webapi/telemetry"
	"github.com/freekieb7/webapi/worker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/freekieb7/webapi"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	d := config.DefaultConfig()
	flags := serveCmd.Flags()
	flags.String("addr", d.Addr, "Address to listen on")
	flags.String("resources.root", d.Resources.Root, "Directory holding the served resources")
	flags.Int("stream.chunk_size", d.Stream.ChunkSize, "Chunk size of /big_file.html in bytes")
	flags.Int("stream.max_streams", d.Stream.MaxStreams, "Maximum number of concurrent streamed responses")
	flags.Int("workers.count", d.Workers.Count, "Number of background workers")
	flags.Bool("upstream.enabled", d.Upstream.Enabled, "Answer / by calling upstream.url")
	flags.String("upstream.url", d.Upstream.URL, "Web API called when upstream is enabled")
	flags.String("log.level", d.Log.Level, "Log level: debug, info, warn or error")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    cfg.Otel.Endpoint,
		Insecure:    cfg.Otel.Insecure,
		ServiceName: cfg.Otel.ServiceName,
	})
	if err != nil {
		return err
	}

	logger := telemetry.NewLogger(os.Stderr, telemetry.LevelFromString(cfg.Log.Level), instrumentationName)
	slog.SetDefault(logger)

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	pool, err := worker.NewPool(worker.Options{
		Workers:   cfg.Workers.Count,
		QueueSize: cfg.Workers.Queue,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	pool.Start()
	defer pool.Stop()

	resources, err := loader.New(filesystem.NewLocalFileSystem(cfg.Resources.Root), pool, loader.Options{
		PipelineCapacity: cfg.Pipeline.Capacity,
		MaxStreams:       cfg.Stream.MaxStreams,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	router := http.NewRouter()
	router.Use(
		http.RecoverMiddleware(logger),
		http.RequestIDMiddleware(),
		http.LoggingMiddleware(logger),
	)
	service.New(resources, http.NewClient(cfg.Upstream.Timeout), service.Options{
		IndexResource:   cfg.Resources.Index,
		MissingResource: cfg.Resources.Missing,
		ChunkSize:       cfg.Stream.ChunkSize,
		UpstreamEnabled: cfg.Upstream.Enabled,
		UpstreamURL:     cfg.Upstream.URL,
	}, logger).Routes(router)

	server := http.NewServer("webapi", router, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Requests outlive the signal until Shutdown gives up on them.
		return server.ListenAndServe(context.WithoutCancel(gctx), cfg.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
