package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/freekieb7/webapi/test"
)

func TestTeeHandler(t *testing.T) {
	var info, warn bytes.Buffer
	logger := slog.New(NewTeeHandler(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	))

	logger.Debug("debug message")
	logger.Info("info message")
	logger.With("component", "pool").Warn("warn message")

	test.AssertTrue(t, false, strings.Contains(info.String(), "debug message"))
	test.AssertTrue(t, true, strings.Contains(info.String(), "info message"))
	test.AssertTrue(t, true, strings.Contains(info.String(), "component=pool"))
	test.AssertTrue(t, false, strings.Contains(warn.String(), "info message"))
	test.AssertTrue(t, true, strings.Contains(warn.String(), "warn message"))
	test.AssertTrue(t, true, strings.Contains(warn.String(), "component=pool"))
}

func TestTeeHandlerGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTeeHandler(slog.NewTextHandler(&buf, nil)))

	logger.WithGroup("req").Info("done", "status", 200)

	test.AssertTrue(t, true, strings.Contains(buf.String(), "req.status=200"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn, "test")

	logger.Info("hidden")
	logger.Error("shown", "key", "value")

	test.AssertTrue(t, false, strings.Contains(buf.String(), "hidden"))
	test.AssertTrue(t, true, strings.Contains(buf.String(), "key=value"))
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		test.AssertTrue(t, want, LevelFromString(in))
	}
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{ServiceName: "test"})
	test.AssertNoError(t, err)
	test.AssertNoError(t, shutdown(context.Background()))
}

func TestSetupWithEndpoint(t *testing.T) {
	// gRPC exporters connect lazily, so Setup succeeds without a collector.
	shutdown, err := Setup(context.Background(), Options{
		Endpoint:    "127.0.0.1:4317",
		Insecure:    true,
		ServiceName: "test",
	})
	test.AssertNoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Flushing to an absent collector may fail; shutdown must still return.
	_ = shutdown(ctx)
}
