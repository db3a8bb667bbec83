//nolint:wrapcheck
package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/burstcheck"
)

var errViewArgs = errors.New("expected two arguments: capture file path and START:STOP")

func viewCommand() *cli.Command {
	return &cli.Command{
		Name:      "view",
		Usage:     "Print the samples of a range of bursts, one list per channel",
		ArgsUsage: "<file> <START:STOP>",
		Flags:     captureFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 2 {
				return fmt.Errorf("%w: got %d", errViewArgs, cmd.NArg())
			}

			inputPath := cmd.Args().Get(0)

			format, translen, err := parseCaptureFormat(cmd)
			if err != nil {
				return err
			}

			rng, err := burstcheck.ParseRange(cmd.Args().Get(1))
			if err != nil {
				return err
			}

			view, err := burstcheck.View(ctx, inputPath, format, translen, rng)
			if err != nil {
				return err
			}

			return outputView(inputPath, view, cmd.String("format"))
		},
	}
}
