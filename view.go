package burstcheck

import (
	"context"
	"fmt"

	"github.com/farcloser/burstcheck/internal/burst"
	"github.com/farcloser/burstcheck/internal/chunk"
	"github.com/farcloser/burstcheck/internal/compare"
	"github.com/farcloser/burstcheck/internal/demux"
	"github.com/farcloser/burstcheck/internal/types"
)

// Range is an inclusive span of burst indices.
type Range = burst.Range

// ParseRange parses "START:STOP".
func ParseRange(raw string) (Range, error) {
	return burst.ParseRange(raw) //nolint:wrapcheck // already carries ErrInvalidArgument
}

// Window returns the bursts around a failure that a renderer should show, k on each side, clamped at burst 0.
func Window(failure *types.FirstFailure, k uint64) Range {
	return burst.Neighbourhood(failure.BurstIndex, k)
}

// View reads bursts rng.Start through rng.End and splits them per channel.
// Bursts past the end of the file are absent from the view and EndBurst is lowered to the last burst read.
func View(ctx context.Context, path string, format SampleFormat, translen uint64, rng Range) (*types.View, error) {
	if translen == 0 {
		return nil, fmt.Errorf("%w: translen must be positive", ErrInvalidArgument)
	}

	if err := rng.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // already carries ErrInvalidArgument
	}

	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors are reported as-is
	}

	start, frames, err := rng.Samples(translen)
	if err != nil {
		return nil, err //nolint:wrapcheck // already carries ErrInvalidArgument
	}

	samples, err := chunk.Read(path, start, frames, format)
	if err != nil {
		return nil, err //nolint:wrapcheck // chunk errors carry their own sentinel
	}

	channels, err := demux.Demux(samples, int(format.Channels)) //nolint:gosec // channel count is small
	if err != nil {
		return nil, err //nolint:wrapcheck // already carries ErrInvalidArgument
	}

	read := uint64(len(samples)) / uint64(format.Channels)

	end := rng.End
	if read < frames {
		// Only the bursts that were at least partly read.
		end = rng.Start
		if read > 0 {
			end += (read+translen-1)/translen - 1
		}
	}

	return &types.View{
		StartBurst: rng.Start,
		EndBurst:   end,
		Frames:     read,
		Channels:   channels,
	}, nil
}

// Inspect compares the failing burst against the reference channel by channel.
func Inspect(ctx context.Context, path string, result *Result) (*types.BurstDetail, error) {
	if result.FirstFailure == nil {
		return nil, fmt.Errorf("%w: result has no failing burst", ErrInvalidArgument)
	}

	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors are reported as-is
	}

	file, err := chunk.Open(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // chunk errors carry their own sentinel
	}
	defer file.Close()

	opts := Options{Format: result.Format, Translen: result.Translen}

	reference, err := readReference(file, file.Size, opts)
	if err != nil {
		return nil, err
	}

	bad, err := chunk.ReadAt(file, file.Size, result.FirstFailure.SampleOffset, result.Translen, result.Format)
	if err != nil {
		return nil, err //nolint:wrapcheck // chunk errors carry their own sentinel
	}

	channels, err := compare.Detail(reference, bad, int(result.Format.Channels), result.Tolerance) //nolint:gosec // channel count is small
	if err != nil {
		return nil, err //nolint:wrapcheck // already carries its sentinel
	}

	return &types.BurstDetail{
		BurstIndex:   result.FirstFailure.BurstIndex,
		SampleOffset: result.FirstFailure.SampleOffset,
		Tolerance:    result.Tolerance,
		Channels:     channels,
	}, nil
}
