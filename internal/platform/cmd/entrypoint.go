// Package cmd holds the startup shared by the arena binaries.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/louisbranch/proving.grounds/internal/platform/config"
	"github.com/louisbranch/proving.grounds/internal/platform/otel"
)

// Service names double as the otel service name and the log prefix.
const (
	ServiceArena     = "arena"
	ServiceOracleKey = "oracle-key"
	ServiceHMACKey   = "hmac-key"
)

const telemetryShutdownTimeout = 5 * time.Second

// Load fills a T from its env tags, lets bind register flags that default
// to those values, then parses args. Flags win over env.
func Load[T any](fs *flag.FlagSet, args []string, bind func(*flag.FlagSet, *T)) (T, error) {
	var cfg T
	if fs == nil {
		return cfg, errors.New("flag set is required")
	}
	if err := config.ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if bind != nil {
		bind(fs, &cfg)
	}
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// RunWithTelemetry installs tracing for service, runs run, and flushes spans
// within a bounded timeout whatever run returns.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()
	return run(ctx)
}

// Main is the body of a binary: it prefixes logs with the service name,
// cancels on SIGINT or SIGTERM and exits through config.ExitErr on failure.
func Main(service string, run func(context.Context) error) {
	log.SetPrefix(LogPrefix(service))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := RunWithTelemetry(ctx, service, run)
	stop()
	if err != nil {
		config.ExitErr(service, err)
	}
}

// LogPrefix is the log prefix for service, e.g. "[ORACLE-KEY] ".
func LogPrefix(service string) string {
	return "[" + strings.ToUpper(strings.TrimSpace(service)) + "] "
}
