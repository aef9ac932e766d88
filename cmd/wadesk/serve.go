package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/wadesk/wadesk/internal/api"
	"github.com/wadesk/wadesk/internal/config"
	"github.com/wadesk/wadesk/internal/db"
	"github.com/wadesk/wadesk/internal/dispatch"
	"github.com/wadesk/wadesk/internal/media"
	"github.com/wadesk/wadesk/internal/notify"
	"github.com/wadesk/wadesk/internal/requeue"
	"github.com/wadesk/wadesk/internal/transport"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and requeue scheduler",
		Long:  "Starts the dispatch HTTP API, the websocket event hub, and the stuck-ticket requeue daemon. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "wadesk.yaml", "path to wadesk config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)

	gdb, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s:%d/%s\n", cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)

	if err := os.MkdirAll(cfg.Media.PublicDir, 0755); err != nil {
		return fmt.Errorf("create public dir %s: %w", cfg.Media.PublicDir, err)
	}

	hub := notify.NewHub(logger)
	defer hub.Close()

	broadcaster := notify.Broadcaster(hub)
	if cfg.Notify.AMQPURL != "" {
		mirror, err := notify.NewAMQP(cfg.Notify.AMQPURL, cfg.Notify.Exchange, logger)
		if err != nil {
			return err
		}
		defer mirror.Close()
		broadcaster = notify.Multi{hub, mirror}
		fmt.Fprintf(out, "Mirroring events to exchange %q\n", cfg.Notify.Exchange)
	}

	transcoder, err := media.NewTranscoder(media.TranscoderOpts{
		FFmpeg:        cfg.Media.FFmpeg,
		OutputDir:     cfg.Media.PublicDir,
		Timeout:       cfg.Media.TranscodeTimeout(),
		MaxConcurrent: cfg.Media.MaxTranscodes,
	})
	if err != nil {
		return err
	}

	sessions := transport.NewRegistry()

	dispatcher, err := dispatch.New(dispatch.Opts{
		DB:          gdb,
		Sessions:    sessions,
		Transcoder:  transcoder,
		SendTimeout: cfg.Media.SendTimeout(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	scheduler, err := requeue.New(requeue.Opts{
		DB:             gdb,
		Notifier:       broadcaster,
		StaleThreshold: cfg.Requeue.StaleThreshold(),
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := scheduler.RunDaemon(ctx, cfg.Requeue.Schedule, out); err != nil {
			logger.Error().Err(err).Msg("requeue daemon exited")
			stop()
		}
	}()

	return api.Start(ctx, api.StartOpts{
		DB:         gdb,
		Dispatcher: dispatcher,
		Hub:        hub,
		UploadDir:  cfg.Media.PublicDir,
		Port:       cfg.API.Port,
		Out:        out,
		Logger:     logger,
	})
}

// newLogger builds the service logger at the configured level, falling back
// to info on an unknown level name.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
