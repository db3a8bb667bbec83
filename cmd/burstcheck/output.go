//nolint:wrapcheck
package main

import (
	"fmt"
	"os"

	"github.com/farcloser/primordium/format"

	"github.com/farcloser/burstcheck"
	"github.com/farcloser/burstcheck/internal/output"
	"github.com/farcloser/burstcheck/internal/types"
)

// checkReport groups what the check command prints for one file.
type checkReport struct {
	result     *burstcheck.Result
	neighbours *burstcheck.Range
	detail     *types.BurstDetail
	window     *types.View
}

func outputReport(filePath string, report *checkReport, formatName string, debug bool) error {
	var meta map[string]any
	if debug {
		meta = output.ResultToMap(report.result)
	} else {
		meta = buildFriendlyOutput(report.result)
	}

	if report.detail != nil {
		meta["detail"] = output.DetailToMap(report.detail)
	}

	switch {
	case report.window != nil:
		meta["window"] = output.ViewToMap(report.window)
	case report.neighbours != nil:
		meta["window"] = map[string]any{
			"start_burst": report.neighbours.Start,
			"end_burst":   report.neighbours.End,
		}
	}

	return printMeta(filePath, meta, formatName)
}

func outputView(filePath string, view *types.View, formatName string) error {
	return printMeta(filePath, output.ViewToMap(view), formatName)
}

func printMeta(filePath string, meta map[string]any, formatName string) error {
	formatter, err := format.GetFormatter(formatName)
	if err != nil {
		return err
	}

	data := &format.Data{
		Object: filePath,
		Meta:   meta,
	}

	return formatter.PrintAll([]*format.Data{data}, os.Stdout)
}

// buildFriendlyOutput creates a user-friendly summary of the validation result.
func buildFriendlyOutput(result *burstcheck.Result) map[string]any {
	meta := map[string]any{
		"summary":    summaryLine(result),
		"properties": buildProperties(result),
	}

	if r := result.FirstFailure; r != nil {
		meta["first_failure"] = map[string]any{
			"burst":       fmt.Sprintf("#%d", r.BurstIndex),
			"offset":      fmt.Sprintf("sample %d (byte %d)", r.SampleOffset, r.ByteOffset),
			"mismatches":  r.MismatchCount,
			"max_diff":    r.MaxDiff,
			"over_budget": fmt.Sprintf("%d codes over atol", r.MaxDiff-result.Tolerance),
		}
	}

	if r := result.Rate; r != nil && r.BadBurstCount > 0 {
		bad := make([]any, 0, len(r.BadBurstOffsets))
		for _, offset := range r.BadBurstOffsets {
			bad = append(bad, fmt.Sprintf("#%d at sample %d", offset/result.Translen, offset))
		}

		meta["bad_bursts"] = bad
	}

	return meta
}

func summaryLine(result *burstcheck.Result) string {
	switch result.Verdict {
	case burstcheck.VerdictPassed:
		return "no bad burst found"
	case burstcheck.VerdictFailed:
		return fmt.Sprintf("bad burst #%d at sample %d", result.FirstFailure.BurstIndex, result.FirstFailure.SampleOffset)
	case burstcheck.VerdictRate:
		return fmt.Sprintf("%d of %d bursts bad (%.2f%%)",
			result.Rate.BadBurstCount, result.Rate.TotalBurstsChecked, result.Rate.BadRate())
	}

	return result.Verdict.String()
}

func buildProperties(result *burstcheck.Result) map[string]any {
	props := map[string]any{
		"layout": fmt.Sprintf("%d channels, %d-bit, %d samples per burst",
			result.Format.Channels, result.Format.Width.Bits(), result.Translen),
		"tolerance": fmt.Sprintf("%d codes (%.2f%%)", result.Tolerance, result.TolerancePercent),
		"bursts":    fmt.Sprintf("%d (comparing from #%d)", result.TotalBursts, result.StartBurst),
		"mode":      result.Mode.String(),
	}

	if r := result.Rate; r != nil && r.SkippedBursts > 0 {
		props["skipped"] = fmt.Sprintf("%d incomplete bursts", r.SkippedBursts)
	}

	return props
}
