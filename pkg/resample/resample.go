package resample

import (
	"fmt"
	"sort"
)

// Resample implements spec.md §4.1's `resample(x[N], channels[K][N],
// target_m) → (x_out, channels_out, is_full)`. If N ≤ target_m the inputs
// are returned unchanged with isFull=true. Otherwise each channel runs
// MinMax-LTTB independently; the union of every channel's selected
// indices is sorted ascending and used to gather x and all channels,
// guaranteeing every channel keeps its own per-bucket extrema at the
// cost of a final length that can exceed target_m (bounded by
// K*target_m, per spec.md's stated guarantee).
func Resample(x []float64, channels [][]float64, targetM int) (xOut []float64, channelsOut [][]float64, isFull bool, err error) {
	n := len(x)
	for i, ch := range channels {
		if len(ch) != n {
			return nil, nil, false, fmt.Errorf("resample: channel %d has length %d, want %d", i, len(ch), n)
		}
	}

	if n <= targetM {
		return x, channels, true, nil
	}

	union := make(map[int]struct{})
	for _, ch := range channels {
		idx := safeChannelIndices(x, ch, targetM)
		for _, i := range idx {
			union[i] = struct{}{}
		}
	}
	if len(channels) == 0 {
		// No channels to drive selection: fall back to the x column alone
		// so callers that resample a bare x/y pair of length 1 still work.
		idx := safeChannelIndices(x, x, targetM)
		for _, i := range idx {
			union[i] = struct{}{}
		}
	}

	sorted := make([]int, 0, len(union))
	for i := range union {
		sorted = append(sorted, i)
	}
	sort.Ints(sorted)

	xOut = make([]float64, len(sorted))
	for i, idx := range sorted {
		xOut[i] = x[idx]
	}

	channelsOut = make([][]float64, len(channels))
	for c, ch := range channels {
		out := make([]float64, len(sorted))
		for i, idx := range sorted {
			out[i] = ch[idx]
		}
		channelsOut[c] = out
	}

	return xOut, channelsOut, false, nil
}

// safeChannelIndices runs lttbIndices, falling back to uniform-stride
// sampling (step = ceil(N/target_m)) if the channel contains non-finite
// values the downsampler can't meaningfully compare — the Go equivalent
// of the Python downsampler raising on a malformed channel.
func safeChannelIndices(x, y []float64, targetM int) []int {
	if !allFinite(y) {
		return uniformStrideIndices(len(x), targetM)
	}
	return lttbIndices(x, y, targetM)
}

func allFinite(y []float64) bool {
	for _, v := range y {
		if v != v { // NaN
			return false
		}
		if v > maxFinite || v < -maxFinite {
			return false
		}
	}
	return true
}

const maxFinite = 1.7976931348623157e+308

func uniformStrideIndices(n, targetM int) []int {
	if targetM <= 0 {
		targetM = 1
	}
	step := (n + targetM - 1) / targetM
	if step < 1 {
		step = 1
	}
	idx := make([]int, 0, targetM+1)
	for i := 0; i < n; i += step {
		idx = append(idx, i)
	}
	if n > 0 && idx[len(idx)-1] != n-1 {
		idx = append(idx, n-1)
	}
	return idx
}
