//nolint:wrapcheck
package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/burstcheck"
	"github.com/farcloser/burstcheck/internal/output"
)

const outputFile = "burstcheck-report.jsonl"

var (
	errNotDirectory      = errors.New("not a directory")
	errNoCaptureFiles    = errors.New("no .dat or .bin files found")
	errInvalidDatasize   = errors.New("must be 2 or 4")
	errNotPositive       = errors.New("must be positive")
	errNegative          = errors.New("must not be negative")
	errInvalidReportArgs = errors.New("expected exactly one argument: folder path")
)

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Validate every capture in a folder and write a burstcheck JSONL report",
		ArgsUsage: "<folder>",
		Flags: []cli.Flag{
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
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Report file path (a gzip copy is written next to it)",
				Value:   outputFile,
			},
			&cli.BoolFlag{
				Name:  "redact-path",
				Usage: "Strip file paths from the report",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Number of concurrent workers",
				Value:   runtime.NumCPU(),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errInvalidReportArgs
			}

			opts, err := parseOptions(cmd)
			if err != nil {
				return err
			}

			workers := max(cmd.Int("workers"), 1)

			return runReport(ctx, cmd.Args().First(), cmd.String("output"), opts, cmd.Bool("redact-path"), workers)
		},
	}
}

func parseOptions(cmd *cli.Command) (burstcheck.Options, error) {
	opts := burstcheck.DefaultOptions()
	opts.Mode = burstcheck.ModeRate
	opts.TolerancePercent = cmd.Float("tolerance")

	translen := cmd.Int("translen")
	if translen <= 0 {
		return opts, fmt.Errorf("--translen: %w", errNotPositive)
	}

	nchan := cmd.Int("nchan")
	if nchan <= 0 {
		return opts, fmt.Errorf("--nchan: %w", errNotPositive)
	}

	skip := cmd.Int("skip")
	if skip < 0 {
		return opts, fmt.Errorf("--skip: %w", errNegative)
	}

	switch cmd.Int("datasize") {
	case 2:
		opts.Format.Width = burstcheck.Width16
	case 4:
		opts.Format.Width = burstcheck.Width32
	default:
		return opts, fmt.Errorf("--datasize: %w", errInvalidDatasize)
	}

	opts.Translen = uint64(translen)
	opts.Format.Channels = uint(nchan) //nolint:gosec // validated positive value
	opts.Skip = uint64(skip)

	return opts, nil
}

func runReport(ctx context.Context, folder, reportPath string, opts burstcheck.Options, redact bool, workers int) error {
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%q: %w", folder, errNotDirectory)
	}

	files, err := collectCaptureFiles(folder)
	if err != nil {
		return fmt.Errorf("scanning folder: %w", err)
	}

	if len(files) == 0 {
		return fmt.Errorf("%q: %w", folder, errNoCaptureFiles)
	}

	fmt.Fprintf(os.Stderr, "Found %d files to validate (%d workers)\n", len(files), workers)

	// Process files concurrently.
	startTime := time.Now()
	results := make([]Record, len(files))

	var progress atomic.Int64

	sem := make(chan struct{}, workers)

	var waitGroup sync.WaitGroup

	for idx, filePath := range files {
		waitGroup.Add(1)

		go func(idx int, filePath string) {
			defer waitGroup.Done()

			sem <- struct{}{}

			defer func() { <-sem }()

			results[idx] = processFile(ctx, filePath, opts)

			done := progress.Add(1)
			fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", done, len(files), filePath)
		}(idx, filePath)
	}

	waitGroup.Wait()

	failed, err := writeReport(reportPath, results, redact)
	if err != nil {
		return err
	}

	if err := compressFile(reportPath); err != nil {
		slog.Error("compressing report", "error", err)
	}

	elapsed := time.Since(startTime)

	fmt.Fprintf(os.Stderr, "\nDone: %d files in %s (%d failed)\n", len(files), elapsed.Truncate(time.Millisecond), failed)
	fmt.Fprintf(os.Stderr, "Report written to %s (and %s.gz)\n", reportPath, reportPath)
	fmt.Fprintln(os.Stderr)

	return runDigest(reportPath, defaultWorst, os.Stdout)
}

// writeReport writes one JSON line per record, in file order, and returns how many records carry an error.
func writeReport(path string, records []Record, redact bool) (int, error) {
	out, err := os.Create(path) //nolint:gosec // report path is chosen by the user
	if err != nil {
		return 0, fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	failed := 0

	for idx := range records {
		record := &records[idx]

		if record.Error != "" {
			failed++
		}

		if redact {
			record.File = ""
		}

		if err := enc.Encode(record); err != nil {
			slog.Error("writing record", "index", idx, "error", err)
		}
	}

	return failed, out.Close()
}

func processFile(ctx context.Context, filePath string, opts burstcheck.Options) Record {
	start := time.Now()

	result, err := burstcheck.Validate(ctx, filePath, opts)

	elapsed := durationMs(time.Since(start))
	timing := &RecordTiming{ValidateMs: elapsed, TotalMs: elapsed}

	if err != nil {
		return Record{File: filePath, Error: fmt.Sprintf("validation failed: %v", err), Timing: timing}
	}

	return Record{
		File:   filePath,
		Result: output.ResultToMap(result),
		Timing: timing,
	}
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func collectCaptureFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".dat" || ext == ".bin" {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)

	return files, nil
}

func compressFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // reading our own output file
	if err != nil {
		return err
	}

	gzFile, err := os.Create(path + ".gz") //nolint:gosec // next to our own output file
	if err != nil {
		return err
	}
	defer gzFile.Close()

	gzWriter := gzip.NewWriter(gzFile)

	if _, err := gzWriter.Write(data); err != nil {
		return err
	}

	return gzWriter.Close()
}
