// Package chunk provides random access to byte ranges of a flat capture file, decoded to samples.
package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/bits"
	"os"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/burstcheck/internal/types"
)

// File is an open capture file. ReadAt is safe for concurrent use.
type File struct {
	Path string
	Size int64

	file *os.File
}

// Open opens path for reading and records its size.
func Open(path string) (*File, error) {
	file, err := os.Open(path) //nolint:gosec // CLI tool opens user-specified capture files
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	return &File{Path: path, Size: info.Size(), file: file}, nil
}

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(buf []byte, off int64) (int, error) {
	return f.file.ReadAt(buf, off) //nolint:wrapcheck // raw ReaderAt contract
}

// Close releases the underlying file.
func (f *File) Close() error {
	return f.file.Close() //nolint:wrapcheck // nothing to add
}

// TotalSamples returns the number of complete frames in the file.
func (f *File) TotalSamples(format types.SampleFormat) uint64 {
	frame := format.FrameBytes()
	if frame == 0 || f.Size <= 0 {
		return 0
	}

	return uint64(f.Size) / frame
}

// Read is the stateless form of ReadAt: it opens path, reads the range and closes it again.
func Read(path string, startSample, numSamples uint64, format types.SampleFormat) ([]int32, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}

	file, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadAt(file, file.Size, startSample, numSamples, format)
}

// ReadAt reads numSamples frames starting at frame startSample and decodes them into interleaved samples.
// size is the length of src in bytes. The read is clamped to the complete frames src holds, so a request
// that runs past the end returns what was available and one that starts past the end returns no samples.
func ReadAt(src io.ReaderAt, size int64, startSample, numSamples uint64, format types.SampleFormat) ([]int32, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}

	frame := format.FrameBytes()

	available := uint64(0)
	if size > 0 {
		available = uint64(size) / frame
	}

	if startSample >= available || numSamples == 0 {
		return []int32{}, nil
	}

	numSamples = min(numSamples, available-startSample)

	// Both stay below size, which fits an int64.
	start := startSample * frame
	length := numSamples * frame

	slog.Debug("chunk.ReadAt", "start byte", start, "length", length, "stage", "start")

	buf := make([]byte, length)

	n, err := src.ReadAt(buf, int64(start)) //nolint:gosec // start is below size
	if err != nil && !errors.Is(err, io.EOF) {
		slog.Debug("chunk.ReadAt", "start byte", start, "stage", "error")

		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	completeFrames := (uint64(n) / frame) * frame //nolint:gosec // n is never negative

	return Decode(buf[:completeFrames], format.Width), nil
}

// Decode converts little-endian signed samples to int32. Trailing bytes that do not form a whole sample are dropped.
func Decode(data []byte, width types.SampleWidth) []int32 {
	bytesPerSample := int(width) //nolint:gosec // width is 2 or 4
	if bytesPerSample == 0 {
		return nil
	}

	completeSamples := (len(data) / bytesPerSample) * bytesPerSample
	data = data[:completeSamples]
	out := make([]int32, 0, completeSamples/bytesPerSample)

	switch width {
	case types.Width16:
		for i := 0; i < len(data); i += 2 {
			out = append(out, int32(int16(binary.LittleEndian.Uint16(data[i:])))) //nolint:gosec // two's complement conversion for signed samples
		}
	case types.Width32:
		for i := 0; i < len(data); i += 4 {
			out = append(out, int32(binary.LittleEndian.Uint32(data[i:]))) //nolint:gosec // two's complement conversion for signed samples
		}
	default:
	}

	return out
}

// Encode is the inverse of Decode. Values are truncated to the sample width.
func Encode(samples []int32, width types.SampleWidth) []byte {
	out := make([]byte, len(samples)*int(width)) //nolint:gosec // width is 2 or 4

	switch width {
	case types.Width16:
		for i, sample := range samples {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sample))) //nolint:gosec // intentional truncation
		}
	case types.Width32:
		for i, sample := range samples {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(sample)) //nolint:gosec // two's complement conversion
		}
	default:
	}

	return out
}

func checkFormat(format types.SampleFormat) error {
	if !format.Width.Valid() {
		return fmt.Errorf("%w: sample width must be 2 or 4 bytes, got %d", types.ErrInvalidArgument, format.Width)
	}

	if format.Channels == 0 {
		return fmt.Errorf("%w: channel count must be positive", types.ErrInvalidArgument)
	}

	if hi, lo := bits.Mul64(uint64(format.Width), uint64(format.Channels)); hi != 0 || lo > math.MaxInt64 {
		return fmt.Errorf("%w: %d channels do not fit in a frame", types.ErrInvalidArgument, format.Channels)
	}

	return nil
}
