package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linspace(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestResampleReturnsInputUnchangedWhenBelowTarget(t *testing.T) {
	x := linspace(100)
	ch := linspace(100)

	xOut, chOut, isFull, err := Resample(x, [][]float64{ch}, 500)
	require.NoError(t, err)
	assert.True(t, isFull)
	assert.Equal(t, x, xOut)
	assert.Equal(t, [][]float64{ch}, chOut)
}

func TestResampleDownsamplesAndKeepsEndpoints(t *testing.T) {
	n := 100_000
	x := linspace(n)
	ch := make([]float64, n)
	for i := range ch {
		ch[i] = math.Sin(float64(i) / 500)
	}

	xOut, chOut, isFull, err := Resample(x, [][]float64{ch}, 1000)
	require.NoError(t, err)
	assert.False(t, isFull)
	assert.Less(t, len(xOut), n)
	assert.GreaterOrEqual(t, len(xOut), 1000)
	assert.LessOrEqual(t, len(xOut), 1000*1) // single channel: bounded by K*target_m = target_m

	assert.Equal(t, x[0], xOut[0])
	assert.Equal(t, x[n-1], xOut[len(xOut)-1])

	for i := 1; i < len(xOut); i++ {
		assert.Greater(t, xOut[i], xOut[i-1], "x_out must be strictly increasing")
	}
	require.Len(t, chOut, 1)
	assert.Len(t, chOut[0], len(xOut))
}

func TestResampleUnionAcrossChannelsPreservesEachChannelExtrema(t *testing.T) {
	n := 50_000
	x := linspace(n)

	chA := make([]float64, n)
	chB := make([]float64, n)
	spikeA := n / 4
	spikeB := 3 * n / 4
	for i := range chA {
		chA[i] = 0
		chB[i] = 0
	}
	chA[spikeA] = 1000 // sharp spike only channel A would select
	chB[spikeB] = -1000

	xOut, chOut, isFull, err := Resample(x, [][]float64{chA, chB}, 200)
	require.NoError(t, err)
	assert.False(t, isFull)

	foundA, foundB := false, false
	for i, xv := range xOut {
		if xv == float64(spikeA) && chOut[0][i] == 1000 {
			foundA = true
		}
		if xv == float64(spikeB) && chOut[1][i] == -1000 {
			foundB = true
		}
	}
	assert.True(t, foundA, "channel A's spike must survive the union")
	assert.True(t, foundB, "channel B's spike must survive the union")
}

func TestResampleFallsBackToUniformStrideOnNaNChannel(t *testing.T) {
	n := 10_000
	x := linspace(n)
	ch := linspace(n)
	ch[n/2] = math.NaN()

	xOut, chOut, isFull, err := Resample(x, [][]float64{ch}, 500)
	require.NoError(t, err)
	assert.False(t, isFull)
	assert.NotEmpty(t, xOut)
	assert.Equal(t, len(xOut), len(chOut[0]))
}

func TestResampleRejectsMismatchedChannelLength(t *testing.T) {
	x := linspace(10)
	ch := linspace(5)

	_, _, _, err := Resample(x, [][]float64{ch}, 3)
	require.Error(t, err)
}
