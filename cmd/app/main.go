// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/handoff/cmd/app/commands"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "app",
		Usage:   "Resource allocation and secure handoff engine",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP server, metrics server, and expiry reaper",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMigrations()
				},
			},
			{
				Name:  "reap-expired",
				Usage: "Run one sweep over expired slot leases and handoff tokens",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunReapExpired(ctx)
				},
			},
			{
				Name:  "import-credentials",
				Usage: "Import a batch of credentials into a pool partition",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "partition",
						Aliases: []string{"p"},
						Value:   "user-requestable",
						Usage:   "Target partition (user-requestable, auto-assign, reserved)",
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Value:   "",
						Usage:   "Path to a JSON array of base64-encoded payloads",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunImportCredentials(ctx, cmd.String("partition"), cmd.String("file"))
				},
			},
			{
				Name:  "create-product",
				Usage: "Create a product with a concurrency ceiling",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Value:   "",
						Usage:   "Product name",
					},
					&cli.IntFlag{
						Name:    "max-concurrent-slots",
						Aliases: []string{"m"},
						Value:   1,
						Usage:   "Concurrency ceiling for the product",
					},
					&cli.StringFlag{
						Name:    "payload-file",
						Aliases: []string{"f"},
						Value:   "",
						Usage:   "Path to the raw product payload",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunCreateProduct(
						ctx,
						cmd.String("name"),
						int(cmd.Int("max-concurrent-slots")),
						cmd.String("payload-file"),
					)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}
