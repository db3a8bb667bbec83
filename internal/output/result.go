// Package output provides shared result serialization for burstcheck JSON output.
package output

import (
	"github.com/farcloser/burstcheck"
	"github.com/farcloser/burstcheck/internal/demux"
	"github.com/farcloser/burstcheck/internal/types"
)

// ResultToMap converts a validation result into the canonical map structure
// used for JSON and JSONL serialization.
func ResultToMap(result *burstcheck.Result) map[string]any {
	meta := map[string]any{
		"summary": map[string]any{
			"verdict": result.Verdict.String(),
			"mode":    result.Mode.String(),
			"passed":  result.Passed(),
		},
		"format": map[string]any{
			"datasize": int(result.Format.Width),    //nolint:gosec // sample widths are small constants
			"nchan":    int(result.Format.Channels), //nolint:gosec // channel count is small
		},
		"translen":          result.Translen,
		"tolerance_percent": result.TolerancePercent,
		"atol":              result.Tolerance,
		"total_samples":     result.TotalSamples,
		"total_bursts":      result.TotalBursts,
		"start_burst":       result.StartBurst,
	}

	if r := result.FirstFailure; r != nil {
		meta["first_failure"] = FailureToMap(r)
	}

	if r := result.Rate; r != nil {
		meta["rate"] = RateToMap(r)
	}

	return meta
}

// FailureToMap converts the first bad burst to a map.
func FailureToMap(failure *types.FirstFailure) map[string]any {
	return map[string]any{
		"burst_index":    failure.BurstIndex,
		"sample_offset":  failure.SampleOffset,
		"byte_offset":    failure.ByteOffset,
		"mismatch_count": failure.MismatchCount,
		"max_diff":       failure.MaxDiff,
	}
}

// RateToMap converts a rate-mode report to a map.
func RateToMap(report *types.RateReport) map[string]any {
	offsets := make([]any, 0, len(report.BadBurstOffsets))
	for _, offset := range report.BadBurstOffsets {
		offsets = append(offsets, offset)
	}

	return map[string]any{
		"total_bursts_checked": report.TotalBurstsChecked,
		"bad_burst_count":      report.BadBurstCount,
		"bad_rate_percent":     report.BadRate(),
		"skipped_bursts":       report.SkippedBursts,
		"bad_burst_offsets":    offsets,
	}
}

// DetailToMap converts the per-channel breakdown of a bad burst to a map.
func DetailToMap(detail *types.BurstDetail) map[string]any {
	channels := make([]any, 0, len(detail.Channels))
	for _, ch := range detail.Channels {
		channels = append(channels, map[string]any{
			"channel":       ch.Channel,
			"error_count":   len(ch.Exceeding),
			"error_indices": ch.Exceeding,
			"max_abs_diff":  ch.MaxAbsDiff,
			"deviation_rms": ch.DeviationRMS,
		})
	}

	return map[string]any{
		"burst_index":   detail.BurstIndex,
		"sample_offset": detail.SampleOffset,
		"atol":          detail.Tolerance,
		"channels":      channels,
	}
}

// ViewToMap converts a channel view to a map. Channels are listed in ascending order.
func ViewToMap(view *types.View) map[string]any {
	channels := make([]any, 0, len(view.Channels))
	for _, ch := range demux.Views(view.Channels) {
		channels = append(channels, map[string]any{
			"channel": ch.Channel,
			"samples": ch.Samples,
		})
	}

	return map[string]any{
		"start_burst": view.StartBurst,
		"end_burst":   view.EndBurst,
		"frames":      view.Frames,
		"channels":    channels,
	}
}
