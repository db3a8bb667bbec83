package types

// SampleWidth is the size in bytes of one scalar sample.
type SampleWidth uint

const (
	Width16 SampleWidth = 2
	Width32 SampleWidth = 4
)

// Bits returns the sample width in bits.
func (w SampleWidth) Bits() uint {
	return uint(w) * 8
}

// MaxMagnitude is the largest positive code a signed sample of this width can hold.
func (w SampleWidth) MaxMagnitude() int64 {
	switch w {
	case Width16:
		return 1<<15 - 1 // 32767
	case Width32:
		return 1<<31 - 1 // 2147483647
	}

	return 0
}

// Valid reports whether the width is one the capture hardware produces.
func (w SampleWidth) Valid() bool {
	return w == Width16 || w == Width32
}

// SampleFormat describes a headerless capture file. Nothing in the file itself carries this information.
type SampleFormat struct {
	Width    SampleWidth
	Channels uint
}

// FrameBytes is the size of one interleaved frame (one sample of every channel).
func (f SampleFormat) FrameBytes() uint64 {
	return uint64(f.Width) * uint64(f.Channels)
}

/*
Comparison Interpretation

| MismatchCount | MaxAbsDiff vs atol | Meaning                                   |
|---------------|--------------------|-------------------------------------------|
| 0             | <= atol            | Burst matches the reference.              |
| small         | slightly > atol    | Noise or marginal tolerance. Check atol.  |
| small         | >> atol            | Glitch, a few corrupted words.            |
| ~all samples  | >> atol            | Shifted burst: dropped trigger, clock slip|

MismatchCount is counted over the whole interleaved burst, all channels together.
A difference exactly equal to atol is not a mismatch.
*/

// Comparison is the score of a candidate burst against the reference burst.
type Comparison struct {
	MismatchCount uint64
	MaxAbsDiff    int64
	Exceeding     []int // interleaved positions where |candidate - reference| > atol; nil when not collected
}

// ChannelDetail is the per-channel breakdown of a bad burst.
type ChannelDetail struct {
	Channel      int   // 1-based
	Exceeding    []int // per-channel sample indices exceeding atol
	MaxAbsDiff   int64
	DeviationRMS float64 // RMS of the candidate - reference difference, in codes
}

// BurstDetail is the reference-vs-bad-burst view requested with --compare.
type BurstDetail struct {
	BurstIndex   uint64
	SampleOffset uint64
	Tolerance    int64
	Channels     []ChannelDetail // only channels with at least one exceeding sample, ascending
}

// FirstFailure locates the lowest-offset burst that does not match the reference.
type FirstFailure struct {
	BurstIndex    uint64
	SampleOffset  uint64 // aligned, in frames from the start of the file
	ByteOffset    uint64
	MismatchCount uint64
	MaxDiff       int64
}

/*
Rate Report Interpretation

| Bad rate   | Likely cause                                   |
|------------|------------------------------------------------|
| 0%         | Stream is self-consistent.                     |
| < 0.1%     | Isolated glitches (EMI, marginal cabling).     |
| 0.1-5%     | Intermittent trigger drops or clock glitches.  |
| > 5%       | Systematic problem: wrong translen or nchan,   |
|            | AWG not repeating, or persistent clock issues. |

Bad offsets at a regular stride usually point at buffer wrap or DMA boundaries.
A bad rate close to 100% almost always means translen is wrong.
*/

// RateReport aggregates every bad burst of an exhaustive scan.
type RateReport struct {
	TotalBurstsChecked uint64   // bursts actually compared
	BadBurstCount      uint64   // len(BadBurstOffsets)
	BadBurstOffsets    []uint64 // aligned sample offsets, ascending
	SkippedBursts      uint64   // short reads, neither good nor bad
}

// BadRate returns the fraction of checked bursts that were bad, in percent.
func (r *RateReport) BadRate() float64 {
	if r.TotalBurstsChecked == 0 {
		return 0
	}

	return float64(r.BadBurstCount) / float64(r.TotalBurstsChecked) * 100
}

// OutcomeKind qualifies what happened to one burst during a scan.
type OutcomeKind int

const (
	OutcomeCompared  OutcomeKind = iota // read and scored against the reference
	OutcomeSkipped                      // unavailable (short read), neither pass nor fail
	OutcomeEndOfFile                    // no burst starts at this offset
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompared:
		return "compared"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeEndOfFile:
		return "end_of_file"
	}

	return "unknown"
}

// Outcome is the result of visiting one burst.
type Outcome struct {
	Kind       OutcomeKind
	Comparison *Comparison // set when Kind == OutcomeCompared
	Reason     error       // set when Kind == OutcomeSkipped
}

// Mismatched reports whether the burst was compared and found bad.
func (o Outcome) Mismatched() bool {
	return o.Kind == OutcomeCompared && o.Comparison != nil && o.Comparison.MismatchCount > 0
}

// ChannelView is a read-only run of one channel's samples.
type ChannelView struct {
	Channel int // 1-based
	Samples []int32
}

// View is a demultiplexed range of bursts, handed to renderers.
type View struct {
	StartBurst uint64
	EndBurst   uint64 // inclusive
	Frames     uint64
	Channels   map[int][]int32 // 1-based channel number
}
