package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-iso20022/internal/config"
	"github.com/sirosfoundation/go-iso20022/internal/events"
	"github.com/sirosfoundation/go-iso20022/internal/metrics"
	"github.com/sirosfoundation/go-iso20022/internal/server"
	"github.com/sirosfoundation/go-iso20022/internal/storage"
	"github.com/sirosfoundation/go-iso20022/pkg/processor"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulator HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, version)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to YAML configuration file")
	cmd.Flags().Int("port", 0, "Listen port (overrides configuration)")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runServe(cmd *cobra.Command, version string) error {
	path, _ := cmd.Flags().GetString("config")
	port, _ := cmd.Flags().GetInt("port")

	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	logger, err := newLogger(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := pipelineOptions(cfg.ISO20022, logger)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	var closers []io.Closer
	fail := func(err error) error {
		for _, c := range closers {
			c.Close()
		}
		store.Close(context.Background())
		return err
	}

	var m *metrics.Metrics
	if cfg.Observability.MetricsEnabled() {
		m = metrics.New()
		opts = append(opts, processor.WithMetrics(m))
	}

	detector, err := newDetector(cfg.Duplicates)
	if err != nil {
		return fail(fmt.Errorf("creating duplicate detector: %w", err))
	}
	if detector != nil {
		closers = append(closers, detector)
		opts = append(opts, processor.WithDuplicateDetector(detector))
	}

	publisher, err := events.New(cfg.Events, logger)
	if err != nil {
		return fail(fmt.Errorf("creating event publisher: %w", err))
	}
	closers = append(closers, publisher)

	opts = append(opts,
		processor.WithSink(storage.NewRecorder(store, logger)),
		processor.WithSink(publisher),
	)

	srv, err := server.New(cfg, server.Dependencies{
		Processor: processor.New(opts...),
		Store:     store,
		Metrics:   m,
		Closers:   closers,
		Version:   version,
	}, logger)
	if err != nil {
		return fail(err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf(":%d", cfg.Server.Port))
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
		if serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}
