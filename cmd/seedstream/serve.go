// =============================================================================
// cmd/seedstream/serve.go - Serve a Local File
// =============================================================================
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"seedstream/pkg/config"
	"seedstream/pkg/logging"
	"seedstream/pkg/stream"
	"seedstream/pkg/utils"
)

var serveLength int64

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Serve a local file with the streaming server, without a torrent",
	Args:  cobra.ExactArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int64Var(&serveLength, "length", 0, "Declared file length (0 uses the size on disk)")
}

func runServe(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !utils.FileExists(path) {
		return fmt.Errorf("file not found: %s", path)
	}

	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics := serveMetrics(cfg.Metrics.Addr, logger)
	defer shutdownMetrics()

	srv := stream.NewServer(stream.Options{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Workers: cfg.Server.Workers,
		Logger:  logger,
	})
	srv.SetFile(path, serveLength)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	fmt.Printf("🎬 Stream URL: %s\n", srv.URL())
	fmt.Printf("🎯 Press Ctrl+C to stop\n")
	<-ctx.Done()

	if err := srv.Stop(); err != nil {
		logger.Warn("error during shutdown", slog.String("error", err.Error()))
	}
	return nil
}
