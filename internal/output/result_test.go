package output_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/farcloser/burstcheck"
	"github.com/farcloser/burstcheck/internal/output"
	"github.com/farcloser/burstcheck/internal/types"
)

func TestResultToMapFailure(t *testing.T) {
	t.Parallel()

	result := &burstcheck.Result{
		Verdict:      burstcheck.VerdictFailed,
		Mode:         burstcheck.ModeFirstFailure,
		Format:       burstcheck.SampleFormat{Width: burstcheck.Width16, Channels: 2},
		Translen:     4,
		Tolerance:    0,
		TotalBursts:  4,
		StartBurst:   1,
		FirstFailure: &types.FirstFailure{BurstIndex: 2, SampleOffset: 8, ByteOffset: 32, MismatchCount: 1, MaxDiff: 1},
	}

	meta := output.ResultToMap(result)

	summary, ok := meta["summary"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "failed", summary["verdict"])
	require.Equal(t, false, summary["passed"])

	failure, ok := meta["first_failure"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, uint64(2), failure["burst_index"])
	require.NotContains(t, meta, "rate")

	_, err := json.Marshal(meta)
	require.NoError(t, err)
}

func TestResultToMapRate(t *testing.T) {
	t.Parallel()

	result := &burstcheck.Result{
		Verdict: burstcheck.VerdictRate,
		Mode:    burstcheck.ModeRate,
		Format:  burstcheck.SampleFormat{Width: burstcheck.Width32, Channels: 1},
		Rate: &types.RateReport{
			TotalBurstsChecked: 4,
			BadBurstCount:      2,
			BadBurstOffsets:    []uint64{8, 16},
		},
	}

	meta := output.ResultToMap(result)
	require.NotContains(t, meta, "first_failure")

	rate, ok := meta["rate"].(map[string]any)
	require.True(t, ok)
	require.InDelta(t, 50.0, rate["bad_rate_percent"], 1e-9)
	require.Equal(t, []any{uint64(8), uint64(16)}, rate["bad_burst_offsets"])
}

func TestViewToMapOrdersChannels(t *testing.T) {
	t.Parallel()

	meta := output.ViewToMap(&types.View{
		StartBurst: 0,
		EndBurst:   1,
		Frames:     2,
		Channels:   map[int][]int32{2: {3, 4}, 1: {1, 2}},
	})

	channels, ok := meta["channels"].([]any)
	require.True(t, ok)
	require.Len(t, channels, 2)

	first, ok := channels[0].(map[string]any)
	require.True(t, ok)
	require.Equal(t, 1, first["channel"])
	require.Equal(t, []int32{1, 2}, first["samples"])
}

func TestDetailToMap(t *testing.T) {
	t.Parallel()

	meta := output.DetailToMap(&types.BurstDetail{
		BurstIndex: 5,
		Tolerance:  10,
		Channels: []types.ChannelDetail{
			{Channel: 3, Exceeding: []int{0, 7}, MaxAbsDiff: 40, DeviationRMS: 12.5},
		},
	})

	channels, ok := meta["channels"].([]any)
	require.True(t, ok)
	require.Len(t, channels, 1)

	channel, ok := channels[0].(map[string]any)
	require.True(t, ok)
	require.Equal(t, 2, channel["error_count"])
	require.Equal(t, []int{0, 7}, channel["error_indices"])
}
