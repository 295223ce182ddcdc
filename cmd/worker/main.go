package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tribunal/internal/app/bootstrap"
	"tribunal/internal/platform/config"

	cli "github.com/urfave/cli/v2"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Relay outbox events and run the audit consumer until interrupted.
func main() {
	app := cli.App{
		Name:  "tribunal-worker",
		Usage: "moderation outbox relay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "postgres:// or sqlite:// database URL",
				EnvVars: []string{"DATABASE_URL"},
			},
		},
		Action: runWorker,
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error("tribunal worker stopped with error", "err", err)
		os.Exit(1)
	}
}

func runWorker(cctx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if url := cctx.String("database-url"); url != "" {
		cfg.DatabaseURL = url
	}

	app, err := bootstrap.BuildWorker(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("worker shutdown close failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}
