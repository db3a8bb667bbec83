// Package demux splits interleaved samples into per-channel sequences.
package demux

import (
	"fmt"
	"slices"

	"github.com/farcloser/burstcheck/internal/types"
)

// Demux maps each 1-based channel number to that channel's samples, in order.
// Trailing samples that do not form a complete frame are dropped.
func Demux(samples []int32, nchan int) (map[int][]int32, error) {
	if nchan <= 0 {
		return nil, fmt.Errorf("%w: channel count must be positive", types.ErrInvalidArgument)
	}

	frames := len(samples) / nchan
	channels := make(map[int][]int32, nchan)

	for ch := 1; ch <= nchan; ch++ {
		channels[ch] = make([]int32, frames)
	}

	for frame := range frames {
		base := frame * nchan
		for ch := range nchan {
			channels[ch+1][frame] = samples[base+ch]
		}
	}

	return channels, nil
}

// Views orders a demultiplexed mapping by channel number.
func Views(channels map[int][]int32) []types.ChannelView {
	numbers := make([]int, 0, len(channels))
	for ch := range channels {
		numbers = append(numbers, ch)
	}

	slices.Sort(numbers)

	views := make([]types.ChannelView, 0, len(numbers))
	for _, ch := range numbers {
		views = append(views, types.ChannelView{Channel: ch, Samples: channels[ch]})
	}

	return views
}
