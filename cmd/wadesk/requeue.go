package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wadesk/wadesk/internal/config"
	"github.com/wadesk/wadesk/internal/db"
	"github.com/wadesk/wadesk/internal/notify"
	"github.com/wadesk/wadesk/internal/requeue"
)

func newRequeueCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Run a single requeue pass",
		Long:  "Moves every stale pending unassigned ticket into its company's default queue and exits. The serve command runs the same pass on a schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequeueCmd(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "wadesk.yaml", "path to wadesk config file")
	return cmd
}

func runRequeueCmd(cmd *cobra.Command, configPath string) error {
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

	// A one-shot pass has no websocket clients of its own; events still go
	// to the AMQP mirror when one is configured.
	broadcaster := notify.Broadcaster(notify.NewHub(logger))
	if cfg.Notify.AMQPURL != "" {
		mirror, err := notify.NewAMQP(cfg.Notify.AMQPURL, cfg.Notify.Exchange, logger)
		if err != nil {
			return err
		}
		defer mirror.Close()
		broadcaster = mirror
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

	n, err := scheduler.Run(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Requeued %d ticket(s)\n", n)
	return nil
}
