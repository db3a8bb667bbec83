// Package compare scores candidate bursts against the reference burst within an absolute tolerance.
package compare

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/farcloser/burstcheck/internal/types"
)

// Tolerance derives atol from a percentage of the largest code the sample width can hold.
// Percentages too large for an int64 atol saturate at math.MaxInt64.
func Tolerance(width types.SampleWidth, percent float64) (int64, error) {
	if !width.Valid() {
		return 0, fmt.Errorf("%w: sample width must be 2 or 4 bytes, got %d", types.ErrInvalidArgument, width)
	}

	if math.IsNaN(percent) || math.IsInf(percent, 0) || percent < 0 {
		return 0, fmt.Errorf("%w: tolerance must be a non-negative percentage, got %v", types.ErrInvalidArgument, percent)
	}

	atol := math.Floor(float64(width.MaxMagnitude()) * percent / 100)
	if atol >= math.MaxInt64 {
		return math.MaxInt64, nil
	}

	return int64(atol), nil
}

// Compare scores candidate against reference and collects every exceeding position.
func Compare(reference, candidate []int32, atol int64) (*types.Comparison, error) {
	return score(reference, candidate, atol, true)
}

// Score is Compare without the exceeding positions. It does not allocate per sample.
func Score(reference, candidate []int32, atol int64) (*types.Comparison, error) {
	return score(reference, candidate, atol, false)
}

func score(reference, candidate []int32, atol int64, collect bool) (*types.Comparison, error) {
	if len(reference) != len(candidate) {
		return nil, fmt.Errorf("%w: reference has %d samples, candidate %d",
			types.ErrLengthMismatch, len(reference), len(candidate))
	}

	result := &types.Comparison{}

	for i := range reference {
		diff := absDiff(candidate[i], reference[i])

		if diff > result.MaxAbsDiff {
			result.MaxAbsDiff = diff
		}

		if diff > atol {
			result.MismatchCount++

			if collect {
				result.Exceeding = append(result.Exceeding, i)
			}
		}
	}

	return result, nil
}

// Detail breaks a bad burst down per channel. Only channels with at least one exceeding sample are returned.
func Detail(reference, candidate []int32, nchan int, atol int64) ([]types.ChannelDetail, error) {
	if nchan <= 0 {
		return nil, fmt.Errorf("%w: channel count must be positive", types.ErrInvalidArgument)
	}

	if len(reference) != len(candidate) {
		return nil, fmt.Errorf("%w: reference has %d samples, candidate %d",
			types.ErrLengthMismatch, len(reference), len(candidate))
	}

	frames := len(reference) / nchan
	if frames == 0 {
		return nil, nil
	}

	var details []types.ChannelDetail

	deltas := make([]float64, frames)

	for ch := range nchan {
		detail := types.ChannelDetail{Channel: ch + 1}

		for frame := range frames {
			idx := frame*nchan + ch
			diff := absDiff(candidate[idx], reference[idx])
			deltas[frame] = float64(diff)

			if diff > detail.MaxAbsDiff {
				detail.MaxAbsDiff = diff
			}

			if diff > atol {
				detail.Exceeding = append(detail.Exceeding, frame)
			}
		}

		if len(detail.Exceeding) == 0 {
			continue
		}

		detail.DeviationRMS = floats.Norm(deltas, 2) / math.Sqrt(float64(frames))
		details = append(details, detail)
	}

	return details, nil
}

func absDiff(a, b int32) int64 {
	diff := int64(a) - int64(b)
	if diff < 0 {
		return -diff
	}

	return diff
}
