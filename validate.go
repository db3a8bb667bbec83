package burstcheck

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/farcloser/primordium/fault"
	"golang.org/x/sync/errgroup"

	"github.com/farcloser/burstcheck/internal/burst"
	"github.com/farcloser/burstcheck/internal/chunk"
	"github.com/farcloser/burstcheck/internal/compare"
	"github.com/farcloser/burstcheck/internal/types"
)

/*
Usage:

opts := burstcheck.DefaultOptions()
opts.Translen = 10048 * 8
opts.Format.Channels = 32
result, err := burstcheck.Validate(ctx, "awg_rtm_stream.dat", opts)
if !result.Passed() {
    fmt.Printf("bad burst #%d\n", result.FirstFailure.BurstIndex)
}

// Error rate over the whole file
opts.Mode = burstcheck.ModeRate
result, err = burstcheck.Validate(ctx, "awg_rtm_stream.dat", opts)
fmt.Printf("%.2f%% bad\n", result.Rate.BadRate())

// Progress
opts.Progress = func(p burstcheck.Progress) {
    fmt.Printf("\r%.1f%%", p.Percent)
}
*/

// segmentsPerWorker keeps workers busy when segments finish unevenly.
const segmentsPerWorker = 4

// Validate compares every burst of the capture file at path against burst 0.
func Validate(ctx context.Context, path string, opts Options) (*Result, error) {
	applyDefaults(&opts)

	if err := opts.validate(); err != nil {
		return nil, err
	}

	if _, err := compare.Tolerance(opts.Format.Width, opts.TolerancePercent); err != nil {
		return nil, err
	}

	file, err := chunk.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ValidateReader(ctx, file, file.Size, opts)
}

// ValidateReader is Validate over an already-open source of the given size in bytes.
func ValidateReader(ctx context.Context, src io.ReaderAt, size int64, opts Options) (*Result, error) {
	applyDefaults(&opts)

	if err := opts.validate(); err != nil {
		return nil, err
	}

	atol, err := compare.Tolerance(opts.Format.Width, opts.TolerancePercent)
	if err != nil {
		return nil, err
	}

	slog.Debug("burstcheck.Validate", "mode", opts.Mode, "translen", opts.Translen, "atol", atol, "stage", "start")

	reference, err := readReference(src, size, opts)
	if err != nil {
		return nil, err
	}

	totalSamples := uint64(0)
	if size > 0 {
		totalSamples = uint64(size) / opts.Format.FrameBytes()
	}

	totalBursts, _ := burst.Count(totalSamples, opts.Translen)

	start, err := burst.StartOffset(opts.Skip, opts.Translen)
	if err != nil {
		return nil, err //nolint:wrapcheck // already carries ErrInvalidArgument
	}

	run := &validation{
		scanner: scanner{
			src:          src,
			size:         size,
			format:       opts.Format,
			translen:     opts.Translen,
			atol:         atol,
			reference:    reference,
			totalSamples: totalSamples,
		},
		mode:     opts.Mode,
		progress: &progressReporter{fn: opts.Progress, scanned: min(start, totalSamples), total: totalSamples},
	}

	run.lowestFailure.Store(math.MaxUint64)

	segments := run.plan(start, opts.Workers)

	if err := run.execute(ctx, segments, opts.Workers); err != nil {
		last, ok := lastChecked(segments)

		slog.Debug("burstcheck.Validate", "stage", "abort", "error", err)

		return nil, &AbortError{LastChecked: last, HasLastChecked: ok, Err: err}
	}

	result := &Result{
		Mode:             opts.Mode,
		Format:           opts.Format,
		Translen:         opts.Translen,
		TolerancePercent: opts.TolerancePercent,
		Tolerance:        atol,
		TotalSamples:     totalSamples,
		TotalBursts:      totalBursts,
		StartBurst:       burst.StartIndex(opts.Skip),
	}

	switch opts.Mode {
	case ModeRate:
		result.Verdict = VerdictRate
		result.Rate = mergeRate(segments)
	default:
		result.FirstFailure = lowestFailure(segments)
		if result.FirstFailure != nil {
			result.Verdict = VerdictFailed
		} else {
			result.Verdict = VerdictPassed
		}
	}

	slog.Debug("burstcheck.Validate", "verdict", result.Verdict, "stage", "done")

	return result, nil
}

func readReference(src io.ReaderAt, size int64, opts Options) ([]int32, error) {
	reference, err := chunk.ReadAt(src, size, 0, opts.Translen, opts.Format)
	if err != nil {
		return nil, err
	}

	want := opts.Translen * uint64(opts.Format.Channels)
	if uint64(len(reference)) != want {
		return nil, fmt.Errorf("%w: %w: file holds %d bytes, one burst needs %d",
			fault.ErrReadFailure, ErrReferenceUnavailable, size, want*uint64(opts.Format.Width))
	}

	return reference, nil
}

// scanner visits one burst at a time. It holds no mutable state and is shared by all segments.
type scanner struct {
	src          io.ReaderAt
	size         int64
	format       types.SampleFormat
	translen     uint64
	atol         int64
	reference    []int32
	totalSamples uint64
}

// visit reads and scores the burst starting at the aligned sample offset.
func (s *scanner) visit(aligned uint64) (types.Outcome, error) {
	if aligned >= s.totalSamples {
		return types.Outcome{Kind: types.OutcomeEndOfFile}, nil
	}

	samples, err := chunk.ReadAt(s.src, s.size, aligned, s.translen, s.format)
	if err != nil {
		return types.Outcome{}, err
	}

	if len(samples) != len(s.reference) {
		return types.Outcome{
			Kind:   types.OutcomeSkipped,
			Reason: fmt.Errorf("%w: %d of %d samples at %d", ErrShortBurst, len(samples), len(s.reference), aligned),
		}, nil
	}

	comparison, err := compare.Score(s.reference, samples, s.atol)
	if err != nil {
		return types.Outcome{Kind: types.OutcomeSkipped, Reason: err}, nil //nolint:nilerr // length mismatch is recovered by skipping
	}

	return types.Outcome{Kind: types.OutcomeCompared, Comparison: comparison}, nil
}

// segment is a contiguous run of bursts [start, end) in sample offsets, owned by one goroutine.
type segment struct {
	start uint64
	end   uint64

	checked        uint64
	skipped        uint64
	bad            []uint64
	first          *types.FirstFailure
	lastChecked    uint64
	hasLastChecked bool
	completed      bool
}

type validation struct {
	scanner

	mode          Mode
	progress      *progressReporter
	lowestFailure atomic.Uint64
}

// plan splits [start, end of file) into burst-aligned segments. The trailing partial burst, if any,
// belongs to the last segment so it is visited (and skipped) exactly as a sequential scan would.
func (v *validation) plan(start uint64, workers int) []*segment {
	spanBursts := (v.totalSamples + v.translen - 1) / v.translen
	firstBurst := start / v.translen

	if firstBurst >= spanBursts {
		return nil
	}

	bursts := spanBursts - firstBurst
	parts := uint64(1)

	if workers > 1 {
		parts = min(bursts, uint64(workers)*segmentsPerWorker) //nolint:gosec // workers is positive
	}

	per := (bursts + parts - 1) / parts
	segments := make([]*segment, 0, parts)

	for from := firstBurst; from < spanBursts; from += per {
		to := min(from+per, spanBursts)
		segments = append(segments, &segment{start: from * v.translen, end: to * v.translen})
	}

	return segments
}

func (v *validation) execute(ctx context.Context, segments []*segment, workers int) error {
	if workers <= 1 {
		for _, seg := range segments {
			if err := v.scan(ctx, seg); err != nil {
				return err
			}

			if seg.first != nil {
				return nil
			}
		}

		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for _, seg := range segments {
		group.Go(func() error {
			return v.scan(groupCtx, seg)
		})
	}

	//nolint:wrapcheck // errors are already wrapped by the scan
	return group.Wait()
}

// scan walks one segment burst by burst. Cancellation is only observed between bursts.
func (v *validation) scan(ctx context.Context, seg *segment) error {
	current := seg.start

	for current < seg.end {
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck // context errors are reported as-is
		}

		// Another segment already found a lower failure: nothing here can win.
		if v.mode == ModeFirstFailure && current > v.lowestFailure.Load() {
			seg.completed = true

			return nil
		}

		aligned, _ := burst.NextAligned(current, v.translen)
		if aligned >= seg.end {
			break
		}

		outcome, err := v.visit(aligned)
		if err != nil {
			return err
		}

		if outcome.Kind == types.OutcomeEndOfFile {
			break
		}

		index := aligned / v.translen

		switch outcome.Kind {
		case types.OutcomeCompared:
			seg.checked++
			seg.lastChecked = aligned
			seg.hasLastChecked = true
		case types.OutcomeSkipped:
			seg.skipped++

			slog.Debug("burstcheck.Validate", "burst", index, "reason", outcome.Reason, "stage", "skip")
		default:
		}

		current = aligned + v.translen

		v.progress.report(index, aligned, v.translen, outcome)

		if !outcome.Mismatched() {
			continue
		}

		slog.Debug("burstcheck.Validate", "burst", index, "mismatches", outcome.Comparison.MismatchCount,
			"max diff", outcome.Comparison.MaxAbsDiff, "stage", "mismatch")

		if v.mode == ModeRate {
			seg.bad = append(seg.bad, aligned)

			continue
		}

		seg.first = &types.FirstFailure{
			BurstIndex:    index,
			SampleOffset:  aligned,
			ByteOffset:    burst.ByteOffset(aligned, v.format),
			MismatchCount: outcome.Comparison.MismatchCount,
			MaxDiff:       outcome.Comparison.MaxAbsDiff,
		}

		v.recordFailure(aligned)

		break
	}

	seg.completed = true

	return nil
}

func (v *validation) recordFailure(offset uint64) {
	for {
		known := v.lowestFailure.Load()
		if offset >= known || v.lowestFailure.CompareAndSwap(known, offset) {
			return
		}
	}
}

func mergeRate(segments []*segment) *types.RateReport {
	report := &types.RateReport{BadBurstOffsets: []uint64{}}

	for _, seg := range segments {
		report.TotalBurstsChecked += seg.checked
		report.SkippedBursts += seg.skipped
		report.BadBurstOffsets = append(report.BadBurstOffsets, seg.bad...)
	}

	slices.Sort(report.BadBurstOffsets)
	report.BadBurstCount = uint64(len(report.BadBurstOffsets))

	return report
}

func lowestFailure(segments []*segment) *types.FirstFailure {
	var lowest *types.FirstFailure

	for _, seg := range segments {
		if seg.first != nil && (lowest == nil || seg.first.SampleOffset < lowest.SampleOffset) {
			lowest = seg.first
		}
	}

	return lowest
}

// lastChecked returns the last compared burst of the contiguous prefix of finished segments.
func lastChecked(segments []*segment) (uint64, bool) {
	var (
		last  uint64
		found bool
	)

	for _, seg := range segments {
		if seg.hasLastChecked {
			last, found = seg.lastChecked, true
		}

		if !seg.completed {
			break
		}
	}

	return last, found
}

type progressReporter struct {
	mu      sync.Mutex
	fn      ProgressFunc
	scanned uint64
	total   uint64
}

func (p *progressReporter) report(index, offset, translen uint64, outcome types.Outcome) {
	if p.fn == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.scanned = min(p.scanned+translen, p.total)

	percent := 100.0
	if p.total > 0 {
		percent = float64(p.scanned) / float64(p.total) * 100
	}

	p.fn(Progress{
		BurstIndex:     index,
		SampleOffset:   offset,
		ScannedSamples: p.scanned,
		TotalSamples:   p.total,
		Percent:        percent,
		Outcome:        outcome,
	})
}
