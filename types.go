package burstcheck

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/farcloser/burstcheck/internal/types"
)

// SampleFormat describes the capture file layout.
type SampleFormat = types.SampleFormat

// SampleWidth is the size in bytes of one sample.
type SampleWidth = types.SampleWidth

const (
	Width16 = types.Width16
	Width32 = types.Width32
)

var (
	ErrInvalidArgument      = types.ErrInvalidArgument
	ErrShortBurst           = types.ErrShortBurst
	ErrLengthMismatch       = types.ErrLengthMismatch
	ErrReferenceUnavailable = types.ErrReferenceUnavailable
)

// DefaultNeighbours is how many bursts on each side of a bad burst Window returns.
const DefaultNeighbours = 2

// Mode selects how a validation run treats bad bursts.
type Mode int

const (
	ModeFirstFailure Mode = iota // stop at the first bad burst
	ModeRate                     // scan the whole file and report every bad burst
)

func (m Mode) String() string {
	switch m {
	case ModeFirstFailure:
		return "first-failure"
	case ModeRate:
		return "rate"
	}

	return "unknown"
}

// Verdict is the kind of result a run produced.
type Verdict int

const (
	VerdictPassed Verdict = iota // first-failure mode, no bad burst
	VerdictFailed                // first-failure mode, FirstFailure is set
	VerdictRate                  // rate mode, Rate is set
)

func (v Verdict) String() string {
	switch v {
	case VerdictPassed:
		return "passed"
	case VerdictFailed:
		return "failed"
	case VerdictRate:
		return "rate"
	}

	return "unknown"
}

// Progress is delivered to the observer after each burst is visited.
type Progress struct {
	BurstIndex     uint64
	SampleOffset   uint64
	ScannedSamples uint64
	TotalSamples   uint64
	Percent        float64
	Outcome        types.Outcome
}

// ProgressFunc observes a run. Calls are serialized, including when Workers > 1.
type ProgressFunc func(Progress)

// Options configures a validation run.
type Options struct {
	Format   SampleFormat
	Translen uint64 // samples per channel per burst

	// TolerancePercent is the allowed deviation as a percentage of the largest code of the sample width.
	// Zero is a valid value (exact match). DefaultOptions uses 15.
	TolerancePercent float64

	// Skip is the index of the first burst compared. Zero means burst 1.
	Skip uint64

	Mode Mode

	// Workers > 1 scans contiguous segments concurrently. Results are identical to a sequential scan.
	Workers int

	Progress ProgressFunc
}

// DefaultOptions returns 16-bit samples, 15% tolerance, first-failure mode and a sequential scan.
// Format.Channels and Translen have no sensible default and must be set.
func DefaultOptions() Options {
	return Options{
		Format:           SampleFormat{Width: Width16},
		TolerancePercent: 15,
		Mode:             ModeFirstFailure,
		Workers:          1,
	}
}

func applyDefaults(opts *Options) {
	if opts.Format.Width == 0 {
		opts.Format.Width = Width16
	}

	if opts.Workers < 1 {
		opts.Workers = 1
	}
}

func (opts *Options) validate() error {
	if opts.Translen == 0 {
		return fmt.Errorf("%w: translen must be positive", ErrInvalidArgument)
	}

	if opts.Format.Channels == 0 {
		return fmt.Errorf("%w: nchan must be positive", ErrInvalidArgument)
	}

	if !opts.Format.Width.Valid() {
		return fmt.Errorf("%w: datasize must be 2 or 4, got %d", ErrInvalidArgument, opts.Format.Width)
	}

	// One burst, in bytes, must be addressable.
	hi, frame := bits.Mul64(uint64(opts.Format.Width), uint64(opts.Format.Channels))
	if hi == 0 {
		hi, frame = bits.Mul64(frame, opts.Translen)
	}

	if hi != 0 || frame > math.MaxInt64 {
		return fmt.Errorf("%w: a burst of %d samples on %d channels does not fit in a file",
			ErrInvalidArgument, opts.Translen, opts.Format.Channels)
	}

	if opts.Mode != ModeFirstFailure && opts.Mode != ModeRate {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidArgument, opts.Mode)
	}

	return nil
}

// Result is the outcome of one validation run. It is not modified after Validate returns.
type Result struct {
	Verdict Verdict
	Mode    Mode

	Format           SampleFormat
	Translen         uint64
	TolerancePercent float64
	Tolerance        int64 // atol, in codes

	TotalSamples uint64 // complete frames in the file
	TotalBursts  uint64 // complete bursts in the file, reference included
	StartBurst   uint64 // first burst compared

	FirstFailure *types.FirstFailure // VerdictFailed only
	Rate         *types.RateReport   // VerdictRate only
}

// Passed reports whether no bad burst was found.
func (r *Result) Passed() bool {
	switch r.Verdict {
	case VerdictPassed:
		return true
	case VerdictRate:
		return r.Rate != nil && r.Rate.BadBurstCount == 0
	default:
		return false
	}
}

// AbortError is returned when a run stops before the end of the file, on a read failure or cancellation.
type AbortError struct {
	LastChecked    uint64 // sample offset of the last burst compared
	HasLastChecked bool
	Err            error
}

func (e *AbortError) Error() string {
	if e.HasLastChecked {
		return fmt.Sprintf("validation aborted after sample %d: %v", e.LastChecked, e.Err)
	}

	return fmt.Sprintf("validation aborted before any burst was checked: %v", e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}
