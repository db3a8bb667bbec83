package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/burstcheck/version"
)

func main() {
	ctx := context.Background()

	appl := &cli.Command{
		Name:    "burst-report",
		Usage:   "Validate a folder of captures and summarize bad burst rates",
		Version: version.Version() + " " + version.Commit(),
		Commands: []*cli.Command{
			reportCommand(),
			digestCommand(),
		},
	}

	if err := appl.Run(ctx, os.Args); err != nil {
		slog.Error("failed to run", "error", err)
		os.Exit(1)
	}
}
