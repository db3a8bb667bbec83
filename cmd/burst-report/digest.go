package main

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const defaultWorst = 10

func digestCommand() *cli.Command {
	return &cli.Command{
		Name:      "digest",
		Usage:     "Produce a summary digest from a burstcheck JSONL report",
		ArgsUsage: "<report.jsonl>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "worst",
				Usage: "Number of files with the highest bad burst rate to list",
				Value: defaultWorst,
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errors.New("expected exactly one argument: path to report.jsonl")
			}

			return runDigest(cmd.Args().First(), max(cmd.Int("worst"), 0), os.Stdout)
		},
	}
}

func runDigest(reportPath string, worst int, out io.Writer) error {
	records, err := readRecords(reportPath)
	if err != nil {
		return err
	}

	printDigest(summarize(records, worst), out)

	return nil
}

func readRecords(path string) ([]digestRecord, error) {
	file, err := os.Open(path) //nolint:gosec // CLI tool opens user-specified report files
	if err != nil {
		return nil, fmt.Errorf("opening report: %w", err)
	}
	defer file.Close()

	var records []digestRecord

	scanner := bufio.NewScanner(file)

	const maxLineSize = 16 * 1024 * 1024 // offsets lists can be long
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		var rec digestRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			records = append(records, digestRecord{Error: "parse error"})

			continue
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}

	return records, nil
}

func summarize(records []digestRecord, worst int) *digest {
	summary := &digest{Total: len(records)}

	var (
		rated []fileRate
		rates []float64
	)

	for _, rec := range records {
		if rec.Error != "" || rec.Result == nil || rec.Result.Rate == nil {
			summary.Failed++

			continue
		}

		rate := rec.Result.Rate
		summary.Checked += rate.TotalBurstsChecked
		summary.BadSum += rate.BadBurstCount

		if rate.BadBurstCount == 0 {
			summary.Clean++
		} else {
			summary.Bad++
		}

		file := rec.File
		if file == "" {
			file = "(redacted)"
		}

		rated = append(rated, fileRate{
			File:    file,
			Bad:     rate.BadBurstCount,
			Checked: rate.TotalBurstsChecked,
			Rate:    rate.BadRatePercent,
		})
		rates = append(rates, rate.BadRatePercent)
	}

	if len(rates) == 0 {
		return summary
	}

	summary.Mean = stat.Mean(rates, nil)
	summary.Max = floats.Max(rates)

	slices.Sort(rates)
	summary.Median = stat.Quantile(0.5, stat.Empirical, rates, nil)

	slices.SortStableFunc(rated, func(a, b fileRate) int {
		return cmp.Compare(b.Rate, a.Rate)
	})

	for _, entry := range rated[:min(worst, len(rated))] {
		if entry.Bad == 0 {
			break
		}

		summary.Worst = append(summary.Worst, entry)
	}

	return summary
}

func printDigest(summary *digest, out io.Writer) {
	fmt.Fprintln(out, "=== Burstcheck Report Digest ===")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Total files:   %d\n", summary.Total)
	fmt.Fprintf(out, "Failed:        %d\n", summary.Failed)
	fmt.Fprintf(out, "Validated:     %d\n", summary.Total-summary.Failed)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "--- Files ---")
	fmt.Fprintf(out, "  Clean:     %d\n", summary.Clean)
	fmt.Fprintf(out, "  Bad:       %d\n", summary.Bad)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "--- Bad Burst Rate ---")
	fmt.Fprintf(out, "  Bursts:    %d bad of %d checked\n", summary.BadSum, summary.Checked)
	fmt.Fprintf(out, "  Mean:      %.2f%%\n", summary.Mean)
	fmt.Fprintf(out, "  Median:    %.2f%%\n", summary.Median)
	fmt.Fprintf(out, "  Max:       %.2f%%\n", summary.Max)

	if len(summary.Worst) == 0 {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "--- Worst Files ---")

	for _, entry := range summary.Worst {
		fmt.Fprintf(out, "  %s\n", entry.File)
		fmt.Fprintf(out, "    %d of %d bursts bad (%.2f%%)\n", entry.Bad, entry.Checked, entry.Rate)
	}
}
