package burstcheck_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/farcloser/primordium/fault"
	"github.com/stretchr/testify/require"

	"github.com/farcloser/burstcheck"
	"github.com/farcloser/burstcheck/internal/chunk"
	"github.com/farcloser/burstcheck/internal/types"
)

// stereo reference burst: translen 4, two channels.
var reference = []int32{1, 1, 2, 2, 3, 3, 4, 4}

func withSample(burst []int32, index int, value int32) []int32 {
	out := append([]int32(nil), burst...)
	out[index] = value

	return out
}

func capture(width types.SampleWidth, bursts ...[]int32) []byte {
	var buf bytes.Buffer
	for _, b := range bursts {
		buf.Write(chunk.Encode(b, width))
	}

	return buf.Bytes()
}

func repeat(burst []int32, count int) [][]int32 {
	out := make([][]int32, count)
	for i := range out {
		out[i] = burst
	}

	return out
}

func stereoOptions(mode burstcheck.Mode, tolerance float64) burstcheck.Options {
	opts := burstcheck.DefaultOptions()
	opts.Translen = 4
	opts.Format.Channels = 2
	opts.TolerancePercent = tolerance
	opts.Mode = mode

	return opts
}

func run(t *testing.T, data []byte, opts burstcheck.Options) *burstcheck.Result {
	t.Helper()

	result, err := burstcheck.ValidateReader(context.Background(), bytes.NewReader(data), int64(len(data)), opts)
	require.NoError(t, err)

	return result
}

func TestIdenticalBurstsPass(t *testing.T) {
	t.Parallel()

	data := capture(types.Width16, repeat(reference, 10)...)

	result := run(t, data, stereoOptions(burstcheck.ModeFirstFailure, 0))
	require.Equal(t, burstcheck.VerdictPassed, result.Verdict)
	require.True(t, result.Passed())
	require.Nil(t, result.FirstFailure)
	require.Equal(t, uint64(10), result.TotalBursts)
	require.Equal(t, uint64(40), result.TotalSamples)

	rate := run(t, data, stereoOptions(burstcheck.ModeRate, 0))
	require.True(t, rate.Passed())
	require.Equal(t, uint64(9), rate.Rate.TotalBurstsChecked)
	require.Empty(t, rate.Rate.BadBurstOffsets)
}

func TestFirstFailureFindsBurstJustOverTolerance(t *testing.T) {
	t.Parallel()

	base := []int32{1000, -1000, 2000, -2000, 3000, -3000, 4000, -4000}

	// 15% of 32767 floors to 4915.
	const atol = 4915

	for k := 1; k < 6; k++ {
		bursts := repeat(base, 6)
		bursts[k] = withSample(base, 3, -2000+atol+1)

		result := run(t, capture(types.Width16, bursts...), stereoOptions(burstcheck.ModeFirstFailure, 15))
		require.Equal(t, burstcheck.VerdictFailed, result.Verdict, "bad burst %d", k)
		require.Equal(t, int64(atol), result.Tolerance)
		require.Equal(t, uint64(k), result.FirstFailure.BurstIndex)
		require.Equal(t, uint64(1), result.FirstFailure.MismatchCount)
		require.Equal(t, int64(atol+1), result.FirstFailure.MaxDiff)

		// A difference of exactly atol is within tolerance.
		bursts[k] = withSample(base, 3, -2000+atol)
		require.True(t, run(t, capture(types.Width16, bursts...), stereoOptions(burstcheck.ModeFirstFailure, 15)).Passed())
	}
}

func TestConcreteFirstFailureScenario(t *testing.T) {
	t.Parallel()

	data := capture(types.Width16, reference, reference, withSample(reference, 7, 5), reference)

	result := run(t, data, stereoOptions(burstcheck.ModeFirstFailure, 0))
	require.Equal(t, burstcheck.VerdictFailed, result.Verdict)
	require.Equal(t, &types.FirstFailure{
		BurstIndex:    2,
		SampleOffset:  8,
		ByteOffset:    32,
		MismatchCount: 1,
		MaxDiff:       1,
	}, result.FirstFailure)
}

func TestConcreteRateScenario(t *testing.T) {
	t.Parallel()

	bad := withSample(reference, 0, 9)
	data := capture(types.Width16, reference, reference, bad, reference, bad)

	result := run(t, data, stereoOptions(burstcheck.ModeRate, 0))
	require.Equal(t, burstcheck.VerdictRate, result.Verdict)
	require.False(t, result.Passed())
	require.Equal(t, &types.RateReport{
		TotalBurstsChecked: 4,
		BadBurstCount:      2,
		BadBurstOffsets:    []uint64{8, 16},
	}, result.Rate)
	require.InDelta(t, 50.0, result.Rate.BadRate(), 1e-9)
}

func TestRateModeIsIdempotent(t *testing.T) {
	t.Parallel()

	bursts := repeat(reference, 20)
	for _, k := range []int{3, 7, 8, 19} {
		bursts[k] = withSample(reference, k%8, 100)
	}

	data := capture(types.Width16, bursts...)
	opts := stereoOptions(burstcheck.ModeRate, 0)

	require.Equal(t, run(t, data, opts).Rate, run(t, data, opts).Rate)
}

func TestRaisingToleranceOnlyRemovesBadBursts(t *testing.T) {
	t.Parallel()

	base := []int32{0, 0, 0, 0, 0, 0, 0, 0}
	bursts := repeat(base, 8)

	for k, deviation := range map[int]int32{1: 10, 2: 100, 4: 1000, 5: 10000, 7: 30000} {
		bursts[k] = withSample(base, k, deviation)
	}

	data := capture(types.Width16, bursts...)

	var previous []uint64

	for i, tolerance := range []float64{0, 0.1, 1, 10, 50, 100, 1e20} {
		offsets := run(t, data, stereoOptions(burstcheck.ModeRate, tolerance)).Rate.BadBurstOffsets

		if i > 0 {
			for _, offset := range offsets {
				require.Contains(t, previous, offset, "tolerance %v added a bad burst", tolerance)
			}
		}

		previous = offsets
	}

	require.Empty(t, previous)
}

func TestExactFileHasNoTrailingSkip(t *testing.T) {
	t.Parallel()

	data := capture(types.Width16, repeat(reference, 5)...)
	require.Len(t, data, 5*4*2*2)

	result := run(t, data, stereoOptions(burstcheck.ModeRate, 0))
	require.Equal(t, uint64(4), result.Rate.TotalBurstsChecked)
	require.Zero(t, result.Rate.SkippedBursts)
}

func TestOneByteShortDropsFinalBurst(t *testing.T) {
	t.Parallel()

	data := capture(types.Width16, repeat(reference, 5)...)
	data = data[:len(data)-1]

	for _, workers := range []int{1, 3} {
		opts := stereoOptions(burstcheck.ModeRate, 0)
		opts.Workers = workers

		result := run(t, data, opts)
		require.Equal(t, uint64(4), result.TotalBursts)
		require.Equal(t, uint64(3), result.Rate.TotalBurstsChecked)
		require.Equal(t, uint64(1), result.Rate.SkippedBursts)
		require.Empty(t, result.Rate.BadBurstOffsets)

		opts.Mode = burstcheck.ModeFirstFailure
		require.True(t, run(t, data, opts).Passed())
	}
}

func TestSkipSelectsStartingBurst(t *testing.T) {
	t.Parallel()

	bad := withSample(reference, 2, 50)
	data := capture(types.Width16, reference, bad, reference, reference, bad, reference)

	for _, mode := range []burstcheck.Mode{burstcheck.ModeFirstFailure, burstcheck.ModeRate} {
		opts := stereoOptions(mode, 0)
		opts.Skip = 3

		var first *burstcheck.Progress

		opts.Progress = func(p burstcheck.Progress) {
			if first == nil {
				first = &p
			}
		}

		result := run(t, data, opts)
		require.Equal(t, uint64(3), result.StartBurst)
		require.NotNil(t, first)
		require.Equal(t, uint64(12), first.SampleOffset, "comparison begins at skip * translen")

		switch mode {
		case burstcheck.ModeRate:
			require.Equal(t, uint64(3), result.Rate.TotalBurstsChecked)
			require.Equal(t, []uint64{16}, result.Rate.BadBurstOffsets)
		default:
			require.Equal(t, uint64(4), result.FirstFailure.BurstIndex)
		}
	}
}

func TestSkipZeroStartsAtBurstOne(t *testing.T) {
	t.Parallel()

	data := capture(types.Width16, reference, withSample(reference, 0, 2), reference)

	result := run(t, data, stereoOptions(burstcheck.ModeFirstFailure, 0))
	require.Equal(t, uint64(1), result.StartBurst)
	require.Equal(t, uint64(1), result.FirstFailure.BurstIndex)
}

func TestSkipPastEndChecksNothing(t *testing.T) {
	t.Parallel()

	data := capture(types.Width16, repeat(reference, 3)...)
	opts := stereoOptions(burstcheck.ModeRate, 0)
	opts.Skip = 10

	result := run(t, data, opts)
	require.Zero(t, result.Rate.TotalBurstsChecked)
	require.True(t, result.Passed())
}

func TestParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	bursts := repeat(reference, 301)
	for k := 5; k < 301; k += 17 {
		bursts[k] = withSample(reference, k%8, int32(k))
	}

	data := capture(types.Width16, bursts...)

	sequential := run(t, data, stereoOptions(burstcheck.ModeRate, 0))

	for _, workers := range []int{2, 4, 16} {
		opts := stereoOptions(burstcheck.ModeRate, 0)
		opts.Workers = workers

		require.Equal(t, sequential.Rate, run(t, data, opts).Rate, "workers=%d", workers)

		opts.Mode = burstcheck.ModeFirstFailure
		result := run(t, data, opts)
		require.Equal(t, uint64(5), result.FirstFailure.BurstIndex, "lowest failure wins, workers=%d", workers)
	}
}

func TestProgressReachesEnd(t *testing.T) {
	t.Parallel()

	data := capture(types.Width16, repeat(reference, 8)...)
	opts := stereoOptions(burstcheck.ModeRate, 0)

	var seen []burstcheck.Progress

	opts.Progress = func(p burstcheck.Progress) {
		seen = append(seen, p)
	}

	run(t, data, opts)
	require.Len(t, seen, 7)

	for i := 1; i < len(seen); i++ {
		require.Greater(t, seen[i].Percent, seen[i-1].Percent)
	}

	last := seen[len(seen)-1]
	require.InDelta(t, 100.0, last.Percent, 1e-9)
	require.Equal(t, uint64(7), last.BurstIndex)
	require.Equal(t, types.OutcomeCompared, last.Outcome.Kind)
}

func TestCancellationBetweenBursts(t *testing.T) {
	t.Parallel()

	data := capture(types.Width16, repeat(reference, 10)...)
	ctx, cancel := context.WithCancel(context.Background())

	defer cancel()

	opts := stereoOptions(burstcheck.ModeRate, 0)
	opts.Progress = func(p burstcheck.Progress) {
		if p.BurstIndex == 3 {
			cancel()
		}
	}

	_, err := burstcheck.ValidateReader(ctx, bytes.NewReader(data), int64(len(data)), opts)
	require.ErrorIs(t, err, context.Canceled)

	var abort *burstcheck.AbortError

	require.ErrorAs(t, err, &abort)
	require.True(t, abort.HasLastChecked)
	require.Equal(t, uint64(12), abort.LastChecked)
}

func TestCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	data := capture(types.Width16, repeat(reference, 4)...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := burstcheck.ValidateReader(ctx, bytes.NewReader(data), int64(len(data)), stereoOptions(burstcheck.ModeRate, 0))

	var abort *burstcheck.AbortError

	require.ErrorAs(t, err, &abort)
	require.False(t, abort.HasLastChecked)
}

// flakyReader fails every read at or past failAt bytes.
type flakyReader struct {
	data   []byte
	failAt int64
}

func (r *flakyReader) ReadAt(buf []byte, off int64) (int, error) {
	if off >= r.failAt {
		return 0, errors.New("i/o error")
	}

	return bytes.NewReader(r.data).ReadAt(buf, off)
}

func TestReadFailureAbortsWithLastCheckedOffset(t *testing.T) {
	t.Parallel()

	data := capture(types.Width16, repeat(reference, 6)...)
	src := &flakyReader{data: data, failAt: 4 * 16} // burst 4 is unreadable

	_, err := burstcheck.ValidateReader(context.Background(), src, int64(len(data)), stereoOptions(burstcheck.ModeRate, 0))
	require.ErrorIs(t, err, fault.ErrReadFailure)

	var abort *burstcheck.AbortError

	require.ErrorAs(t, err, &abort)
	require.True(t, abort.HasLastChecked)
	require.Equal(t, uint64(12), abort.LastChecked)
}

func TestFileSmallerThanOneBurst(t *testing.T) {
	t.Parallel()

	data := capture(types.Width16, reference)[:10]

	_, err := burstcheck.ValidateReader(context.Background(), bytes.NewReader(data), int64(len(data)),
		stereoOptions(burstcheck.ModeFirstFailure, 0))
	require.ErrorIs(t, err, fault.ErrReadFailure)
	require.ErrorIs(t, err, burstcheck.ErrReferenceUnavailable)
}

func TestHugeTranslenIsReferenceUnavailable(t *testing.T) {
	t.Parallel()

	data := capture(types.Width16, repeat(reference, 4)...)

	for _, translen := range []uint64{1 << 20, 1 << 40, 1 << 60} {
		opts := stereoOptions(burstcheck.ModeRate, 0)
		opts.Translen = translen

		_, err := burstcheck.ValidateReader(context.Background(), bytes.NewReader(data), int64(len(data)), opts)
		require.ErrorIs(t, err, fault.ErrReadFailure, "translen %d", translen)
		require.ErrorIs(t, err, burstcheck.ErrReferenceUnavailable, "translen %d", translen)
	}
}

func TestHugeSkipChecksNothing(t *testing.T) {
	t.Parallel()

	data := capture(types.Width16, repeat(reference, 3)...)
	opts := stereoOptions(burstcheck.ModeRate, 0)
	opts.Skip = 1 << 61

	result := run(t, data, opts)
	require.Zero(t, result.Rate.TotalBurstsChecked)
	require.Equal(t, uint64(1<<61), result.StartBurst)
}

func TestInvalidArguments(t *testing.T) {
	t.Parallel()

	data := capture(types.Width16, repeat(reference, 2)...)

	for name, mutate := range map[string]func(*burstcheck.Options){
		"zero translen":      func(o *burstcheck.Options) { o.Translen = 0 },
		"zero channels":      func(o *burstcheck.Options) { o.Format.Channels = 0 },
		"bad width":          func(o *burstcheck.Options) { o.Format.Width = 3 },
		"negative tolerance": func(o *burstcheck.Options) { o.TolerancePercent = -1 },
		"unknown mode":       func(o *burstcheck.Options) { o.Mode = 7 },
		"burst too large":    func(o *burstcheck.Options) { o.Translen = 1 << 62 },
		"too many channels":  func(o *burstcheck.Options) { o.Format.Channels = 1 << 62 },
		"skip overflows":     func(o *burstcheck.Options) { o.Skip = 1 << 62 },
	} {
		opts := stereoOptions(burstcheck.ModeFirstFailure, 0)
		mutate(&opts)

		_, err := burstcheck.ValidateReader(context.Background(), bytes.NewReader(data), int64(len(data)), opts)
		require.ErrorIs(t, err, burstcheck.ErrInvalidArgument, name)
	}
}

func writeCapture(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "awg_rtm_stream.dat")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func TestValidateFromPath32Bit(t *testing.T) {
	t.Parallel()

	ref := []int32{1 << 30, -(1 << 30), 7, -7}
	bad := withSample(ref, 1, 1<<30)
	path := writeCapture(t, capture(types.Width32, ref, ref, ref, bad))

	opts := burstcheck.DefaultOptions()
	opts.Format = burstcheck.SampleFormat{Width: burstcheck.Width32, Channels: 2}
	opts.Translen = 2

	result, err := burstcheck.Validate(context.Background(), path, opts)
	require.NoError(t, err)
	require.Equal(t, uint64(3), result.FirstFailure.BurstIndex)
	require.Equal(t, int64(1<<31), result.FirstFailure.MaxDiff)
	require.Equal(t, uint64(3*2*8), result.FirstFailure.ByteOffset)
}

func TestValidateMissingFile(t *testing.T) {
	t.Parallel()

	_, err := burstcheck.Validate(context.Background(), filepath.Join(t.TempDir(), "nope.dat"),
		stereoOptions(burstcheck.ModeFirstFailure, 0))
	require.ErrorIs(t, err, fault.ErrReadFailure)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateReaderEmptySource(t *testing.T) {
	t.Parallel()

	_, err := burstcheck.ValidateReader(context.Background(), bytes.NewReader(nil), 0,
		stereoOptions(burstcheck.ModeRate, 0))
	require.ErrorIs(t, err, burstcheck.ErrReferenceUnavailable)
	require.NotErrorIs(t, err, io.EOF)
}
