// =============================================================================
// cmd/seedstream/main.go - CLI Application
// =============================================================================
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"seedstream/pkg/api"
	"seedstream/pkg/config"
	"seedstream/pkg/engine"
	"seedstream/pkg/logging"
	"seedstream/pkg/metrics"
	"seedstream/pkg/session"
	"seedstream/pkg/stream"
	"seedstream/pkg/utils"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "seedstream [magnet-link or torrent-file]",
	Short: "SeedStream - stream video from torrents while they download",
	Long: `SeedStream downloads a torrent and serves the selected file over HTTP as
soon as its first pieces arrive, so a player can start and seek before the
download completes.

The largest file is streamed unless --file-index picks another one.`,
	Args:          cobra.ExactArgs(1),
	RunE:          runSeedStream,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	pf.String("host", "127.0.0.1", "HTTP bind address")
	pf.IntP("port", "p", 0, "HTTP server port (0 picks a free port)")
	pf.Int("workers", 4, "Concurrent stream connections")
	pf.String("log-level", "info", "Log level (debug|info|warn|error)")
	pf.String("log-format", "text", "Log format (text|json)")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address")

	f := rootCmd.Flags()
	f.StringP("save-dir", "d", "", "Download directory (default: temp)")
	f.IntP("file-index", "f", -1, "File index to stream (-1 for auto-select)")
	f.Int("max-peers", 80, "Maximum number of peers")
	f.Int64P("rate-limit", "r", 0, "Download rate limit in bytes/sec (0 = unlimited)")
	f.Bool("cleanup", false, "Remove downloaded data on exit")

	rootCmd.AddCommand(serveCmd)
}

func runSeedStream(cmd *cobra.Command, args []string) error {
	src := args[0]

	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	saveDir := cfg.Download.SaveDir
	if saveDir == "" {
		saveDir, err = utils.CreateTempDir()
		if err != nil {
			return fmt.Errorf("failed to create temp directory: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics := serveMetrics(cfg.Metrics.Addr, logger)
	defer shutdownMetrics()

	mgr := session.NewManager(engine.Factory(logger), session.ManagerOptions{
		Server: stream.Options{
			Host:    cfg.Server.Host,
			Port:    cfg.Server.Port,
			Workers: cfg.Server.Workers,
			Logger:  logger,
		},
		Logger: logger,
	})

	done := make(chan struct{})
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printNotifications(os.Stdout, mgr.Notifications(), done)
	}()

	mgr.Create(src, session.Options{
		SaveDir:   saveDir,
		Cleanup:   cfg.Download.Cleanup,
		Selection: api.SelectionFromIndex(cfg.Download.FileIndex),
		MaxPeers:  cfg.Download.MaxPeers,
		RateLimit: cfg.Download.RateLimit,
	})

	fmt.Println("Starting SeedStream torrent streaming engine...")
	fmt.Printf("📁 Download Dir: %s\n", saveDir)
	startErr := mgr.Start(ctx, src)
	if startErr == nil {
		fmt.Printf("🎯 Press Ctrl+C to stop\n\n")
		<-ctx.Done()
		fmt.Println("\n🛑 Shutting down SeedStream...")
	}

	if err := mgr.Close(); err != nil {
		logger.Warn("error during shutdown", slog.String("error", err.Error()))
	}
	close(done)
	<-printed

	if startErr != nil {
		return fmt.Errorf("failed to start engine: %w", startErr)
	}
	fmt.Println("👋 Goodbye!")
	return nil
}

// serveMetrics exposes the default registry when addr is set and returns a
// shutdown func.
func serveMetrics(addr string, logger *slog.Logger) func() {
	if addr == "" {
		return func() {}
	}
	metrics.Register(prometheus.DefaultRegisterer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
