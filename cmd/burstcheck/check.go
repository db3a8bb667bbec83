//nolint:wrapcheck
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/burstcheck"
)

// exitValidationFailed is the exit code of a failed validation under --strict.
const exitValidationFailed = 2

var (
	errInvalidArgCount  = errors.New("expected exactly one argument: capture file path")
	errInvalidDatasize  = errors.New("must be 2 or 4")
	errNotPositive      = errors.New("must be positive")
	errNegative         = errors.New("must not be negative")
	errValidationFailed = errors.New("bad bursts found")
)

// captureFlags describe the file layout and are shared by check and view.
func captureFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:     "translen",
			Aliases:  []string{"t"},
			Usage:    "Samples per channel in one burst",
			Required: true,
			Sources:  cli.EnvVars("BURSTCHECK_TRANSLEN"),
		},
		&cli.IntFlag{
			Name:     "nchan",
			Aliases:  []string{"n"},
			Usage:    "Number of interleaved channels",
			Required: true,
			Sources:  cli.EnvVars("BURSTCHECK_NCHAN"),
		},
		&cli.IntFlag{
			Name:    "datasize",
			Aliases: []string{"d"},
			Usage:   "Bytes per sample (2 or 4)",
			Value:   2,
			Sources: cli.EnvVars("BURSTCHECK_DATASIZE"),
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: console, json, markdown",
			Value:   "console",
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Compare every burst of a capture file against the first one",
		ArgsUsage: "<file>",
		Flags: append(captureFlags(),
			&cli.FloatFlag{
				Name:    "tolerance",
				Aliases: []string{"T"},
				Usage:   "Allowed deviation, in percent of the largest sample code",
				Value:   burstcheck.DefaultOptions().TolerancePercent,
				Sources: cli.EnvVars("BURSTCHECK_TOLERANCE"),
			},
			&cli.IntFlag{
				Name:  "skip",
				Usage: "Index of the first burst to compare (0 starts at burst 1)",
			},
			&cli.BoolFlag{
				Name:  "rate",
				Usage: "Scan the whole file and report the bad burst rate instead of stopping at the first bad burst",
			},
			&cli.BoolFlag{
				Name:  "compare",
				Usage: "Show the per-channel breakdown and the samples of the neighbouring bursts of the first bad burst",
			},
			&cli.StringFlag{
				Name:  "plot-bursts",
				Usage: "Dump the channels of bursts START:STOP and skip the comparison",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Number of concurrent segment scanners",
				Value:   1,
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Do not print progress",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"D"},
				Usage:   "Print the raw result instead of the summary",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: fmt.Sprintf("Exit with code %d when bad bursts are found", exitValidationFailed),
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("%w: got %d", errInvalidArgCount, cmd.NArg())
			}

			inputPath := cmd.Args().First()

			format, translen, err := parseCaptureFormat(cmd)
			if err != nil {
				return err
			}

			if raw := cmd.String("plot-bursts"); raw != "" {
				rng, err := burstcheck.ParseRange(raw)
				if err != nil {
					return fmt.Errorf("--plot-bursts: %w", err)
				}

				view, err := burstcheck.View(ctx, inputPath, format, translen, rng)
				if err != nil {
					return err
				}

				return outputView(inputPath, view, cmd.String("format"))
			}

			opts, err := parseOptions(cmd, format, translen)
			if err != nil {
				return err
			}

			var printer *progressPrinter
			if !cmd.Bool("quiet") {
				printer = newProgressPrinter(os.Stderr)
				opts.Progress = printer.report
			}

			result, err := burstcheck.Validate(ctx, inputPath, opts)

			printer.done()

			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			report := &checkReport{result: result}

			if result.FirstFailure != nil {
				window := burstcheck.Window(result.FirstFailure, burstcheck.DefaultNeighbours)
				window.End = min(window.End, result.TotalBursts-1)
				report.neighbours = &window

				if cmd.Bool("compare") {
					if report.detail, err = burstcheck.Inspect(ctx, inputPath, result); err != nil {
						return err
					}

					if report.window, err = burstcheck.View(ctx, inputPath, format, translen, window); err != nil {
						return err
					}
				}
			}

			if err := outputReport(inputPath, report, cmd.String("format"), cmd.Bool("debug")); err != nil {
				return err
			}

			if cmd.Bool("strict") && !result.Passed() {
				return cli.Exit(errValidationFailed.Error(), exitValidationFailed)
			}

			return nil
		},
	}
}

func parseCaptureFormat(cmd *cli.Command) (burstcheck.SampleFormat, uint64, error) {
	translen := cmd.Int("translen")
	nchan := cmd.Int("nchan")

	if translen <= 0 {
		return burstcheck.SampleFormat{}, 0, fmt.Errorf("--translen: %w", errNotPositive)
	}

	if nchan <= 0 {
		return burstcheck.SampleFormat{}, 0, fmt.Errorf("--nchan: %w", errNotPositive)
	}

	width, err := toSampleWidth(cmd.Int("datasize"))
	if err != nil {
		return burstcheck.SampleFormat{}, 0, fmt.Errorf("--datasize: %w", err)
	}

	return burstcheck.SampleFormat{
		Width:    width,
		Channels: uint(nchan), //nolint:gosec // validated positive value
	}, uint64(translen), nil
}

func toSampleWidth(v int) (burstcheck.SampleWidth, error) {
	switch v {
	case 2:
		return burstcheck.Width16, nil
	case 4:
		return burstcheck.Width32, nil
	default:
		return 0, errInvalidDatasize
	}
}

func parseOptions(cmd *cli.Command, format burstcheck.SampleFormat, translen uint64) (burstcheck.Options, error) {
	skip := cmd.Int("skip")
	if skip < 0 {
		return burstcheck.Options{}, fmt.Errorf("--skip: %w", errNegative)
	}

	opts := burstcheck.DefaultOptions()
	opts.Format = format
	opts.Translen = translen
	opts.TolerancePercent = cmd.Float("tolerance")
	opts.Skip = uint64(skip)
	opts.Workers = max(cmd.Int("workers"), 1)

	if cmd.Bool("rate") {
		opts.Mode = burstcheck.ModeRate
	}

	return opts, nil
}
