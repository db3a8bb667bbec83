// Package burst converts between sample offsets, burst indices and byte offsets.
//
// All offsets are in frames (one sample of every channel) unless stated otherwise.
package burst

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"

	"github.com/farcloser/burstcheck/internal/types"
)

func checkTranslen(translen uint64) error {
	if translen == 0 {
		return fmt.Errorf("%w: translen must be positive", types.ErrInvalidArgument)
	}

	return nil
}

// AlignedFloor rounds sampleIndex down to a multiple of translen.
func AlignedFloor(sampleIndex, translen uint64) (uint64, error) {
	if err := checkTranslen(translen); err != nil {
		return 0, err
	}

	return (sampleIndex / translen) * translen, nil
}

// NextAligned returns the start of the burst that begins at or after sampleIndex.
func NextAligned(sampleIndex, translen uint64) (uint64, error) {
	aligned, err := AlignedFloor(sampleIndex, translen)
	if err != nil {
		return 0, err
	}

	if aligned < sampleIndex {
		aligned += translen
	}

	return aligned, nil
}

// Index returns the index of the burst containing sampleOffset.
func Index(sampleOffset, translen uint64) (uint64, error) {
	if err := checkTranslen(translen); err != nil {
		return 0, err
	}

	return sampleOffset / translen, nil
}

// Offset returns the sample offset at which burst index starts.
func Offset(index, translen uint64) uint64 {
	return index * translen
}

// ByteOffset converts a sample offset to a byte offset in the file.
func ByteOffset(sampleOffset uint64, format types.SampleFormat) uint64 {
	return sampleOffset * format.FrameBytes()
}

// Count returns the number of complete bursts in totalSamples frames.
func Count(totalSamples, translen uint64) (uint64, error) {
	if err := checkTranslen(translen); err != nil {
		return 0, err
	}

	return totalSamples / translen, nil
}

// StartOffset returns where comparison begins. Skip selects the first compared burst index;
// zero means burst 1, since burst 0 is the reference.
func StartOffset(skip, translen uint64) (uint64, error) {
	if err := checkTranslen(translen); err != nil {
		return 0, err
	}

	hi, start := bits.Mul64(StartIndex(skip), translen)
	if hi != 0 {
		return 0, fmt.Errorf("%w: skip %d overflows the sample offset", types.ErrInvalidArgument, skip)
	}

	return start, nil
}

// StartIndex is the burst index StartOffset points at.
func StartIndex(skip uint64) uint64 {
	if skip > 0 {
		return skip
	}

	return 1
}

// Range is an inclusive span of burst indices.
type Range struct {
	Start uint64
	End   uint64
}

// Validate rejects reversed ranges.
func (r Range) Validate() error {
	if r.End < r.Start {
		return fmt.Errorf("%w: burst range %d:%d is reversed", types.ErrInvalidArgument, r.Start, r.End)
	}

	return nil
}

// Len returns the number of bursts in the range.
func (r Range) Len() uint64 {
	return r.End - r.Start + 1
}

// Samples returns the sample offset of the first burst and the number of frames spanned by the range.
// Ranges whose offsets do not fit in 64 bits are rejected.
func (r Range) Samples(translen uint64) (uint64, uint64, error) {
	if err := checkTranslen(translen); err != nil {
		return 0, 0, err
	}

	if err := r.Validate(); err != nil {
		return 0, 0, err
	}

	span := r.End - r.Start
	if span == math.MaxUint64 {
		return 0, 0, fmt.Errorf("%w: burst range %s is too long", types.ErrInvalidArgument, r)
	}

	hi, start := bits.Mul64(r.Start, translen)
	if hi != 0 {
		return 0, 0, fmt.Errorf("%w: burst range %s starts past the largest sample offset", types.ErrInvalidArgument, r)
	}

	hi, frames := bits.Mul64(span+1, translen)
	if hi != 0 {
		return 0, 0, fmt.Errorf("%w: burst range %s is too long", types.ErrInvalidArgument, r)
	}

	return start, frames, nil
}

func (r Range) String() string {
	return strconv.FormatUint(r.Start, 10) + ":" + strconv.FormatUint(r.End, 10)
}

// ParseRange parses "START:STOP".
func ParseRange(raw string) (Range, error) {
	startRaw, endRaw, found := strings.Cut(strings.TrimSpace(raw), ":")
	if !found {
		return Range{}, fmt.Errorf("%w: burst range %q must be START:STOP", types.ErrInvalidArgument, raw)
	}

	start, err := strconv.ParseUint(strings.TrimSpace(startRaw), 10, 64)
	if err != nil {
		return Range{}, fmt.Errorf("%w: burst range start %q: %w", types.ErrInvalidArgument, startRaw, err)
	}

	end, err := strconv.ParseUint(strings.TrimSpace(endRaw), 10, 64)
	if err != nil {
		return Range{}, fmt.Errorf("%w: burst range end %q: %w", types.ErrInvalidArgument, endRaw, err)
	}

	rng := Range{Start: start, End: end}

	return rng, rng.Validate()
}

// Neighbourhood returns the bursts within k of index on either side, clamped at burst 0.
func Neighbourhood(index, k uint64) Range {
	start := uint64(0)
	if index > k {
		start = index - k
	}

	return Range{Start: start, End: index + k}
}
