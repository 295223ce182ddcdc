package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tribunal/internal/app/bootstrap"
	"tribunal/internal/platform/config"
	"tribunal/internal/platform/identity"

	cli "github.com/urfave/cli/v2"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases).
// 3) Serve HTTP and relay the outbox until interrupted.
func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	app := cli.App{
		Name:  "tribunal-api",
		Usage: "community report and consensus moderation API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "postgres:// or sqlite:// database URL",
				EnvVars: []string{"DATABASE_URL"},
			},
		},
		Commands: []*cli.Command{serveCmd, migrateCmd, tokenCmd},
	}
	return app.Run(args)
}

func loadConfig(cctx *cli.Context) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if url := cctx.String("database-url"); url != "" {
		cfg.DatabaseURL = url
	}
	return cfg, nil
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the HTTP API and outbox relay",
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		app, err := bootstrap.BuildAPI(cfg)
		if err != nil {
			return fmt.Errorf("bootstrap api: %w", err)
		}
		defer func() {
			if err := app.Close(); err != nil {
				slog.Error("api shutdown close failed", "err", err)
			}
		}()

		ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return app.Run(ctx)
	},
}

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "create or update the database schema",
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		return bootstrap.Migrate(cfg)
	},
}

var tokenCmd = &cli.Command{
	Name:      "token",
	Usage:     "issue a bearer token for an agent id",
	ArgsUsage: "<agent-id>",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "ttl",
			Usage: "token lifetime",
			Value: 24 * time.Hour,
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 1 {
			return fmt.Errorf("expected exactly one agent id")
		}
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		token, err := identity.Issue(cfg.JWTSecret, cctx.Args().First(), cctx.Duration("ttl"), time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(cctx.App.Writer, token)
		return nil
	},
}
