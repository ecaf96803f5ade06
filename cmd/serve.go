package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/deskgate/internal/channel"
	"github.com/nextlevelbuilder/deskgate/internal/config"
	"github.com/nextlevelbuilder/deskgate/internal/dispatch"
	"github.com/nextlevelbuilder/deskgate/internal/gateway"
	"github.com/nextlevelbuilder/deskgate/internal/ingest"
	"github.com/nextlevelbuilder/deskgate/internal/store"
	"github.com/nextlevelbuilder/deskgate/internal/store/memory"
	"github.com/nextlevelbuilder/deskgate/internal/store/pg"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the message-ingestion pipeline and agent gateway",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var stores *store.Stores
	if cfg.Database.PostgresDSN != "" {
		stores, err = pg.NewStores(cfg.Database.PostgresDSN)
		if err != nil {
			slog.Error("failed to open postgres stores", "error", err)
			os.Exit(1)
		}
		slog.Info("using postgres store")
	} else {
		stores = memory.NewStores()
		slog.Warn("no DESKGATE_POSTGRES_DSN set, using in-memory store")
	}

	mediaDir := cfg.Media.Dir
	if mediaDir == "" {
		mediaDir = "public"
	}
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		slog.Error("failed to create media dir", "dir", mediaDir, "error", err)
		os.Exit(1)
	}

	sessions := channel.NewManager()
	hub := gateway.NewServer()

	pipeline := ingest.New(stores, sessions, hub, ingest.Options{
		DebounceDelay: cfg.Ingest.DebounceDelay(),
		AckDelay:      cfg.Ingest.AckDelay(),
		SaveMedia: func(filename string, data []byte) error {
			return os.WriteFile(filepath.Join(mediaDir, filepath.Base(filename)), data, 0o644)
		},
	})
	defer pipeline.Close()
	sessions.SetHandler(pipeline.HandleEvent)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outbound := dispatch.NewQueue(sessions, pipeline.RecordDispatched)
	outbound.Start(ctx)
	defer outbound.Stop()
	pipeline.AttachOutbound(outbound)

	go func() {
		if err := hub.Start(cfg.Gateway.Addr()); err != nil {
			slog.Error("gateway server failed", "error", err)
			stop()
		}
	}()

	slog.Info("deskgate running", "version", Version)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hub.Stop(shutdownCtx); err != nil {
		slog.Error("gateway shutdown failed", "error", err)
	}
}
