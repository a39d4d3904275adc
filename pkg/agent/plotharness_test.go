package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleViewer(sync Subscriber) *PlotViewer {
	x := make([]float64, 100)
	ch := make([]float64, 100)
	for i := range x {
		x[i] = float64(i)
		ch[i] = float64(i * i)
	}
	return NewPlotViewer(x, []string{"pressure"}, [][]float64{ch}, sync)
}

func TestPlotAllCoversFullRangeAndEmitsSync(t *testing.T) {
	var syncs int
	v := sampleViewer(func(n Notification) {
		if n.Type == NotifyPlotViewSync {
			syncs++
		}
	})
	res := v.PlotAll()
	assert.NotEmpty(t, res.Fig)
	assert.Equal(t, [2]int{0, 99}, v.currentRange)
	assert.Equal(t, 1, syncs)
}

func TestPlotWindowClampsToDatasetBounds(t *testing.T) {
	v := sampleViewer(nil)
	v.PlotWindow(-50, 500, false)
	assert.Equal(t, 0, v.currentRange[0])
	assert.Equal(t, 100, v.currentRange[1])
}

func TestPlotLeftAndRightShiftBy3Quarters(t *testing.T) {
	v := sampleViewer(nil)
	v.PlotWindow(40, 60, false)
	v.PlotRight()
	assert.Equal(t, 55, v.currentRange[0])
	assert.Equal(t, 75, v.currentRange[1])

	v.PlotWindow(40, 60, false)
	v.PlotLeft()
	assert.Equal(t, 25, v.currentRange[0])
	assert.Equal(t, 45, v.currentRange[1])
}

func TestPlotZoomInXHalvesWidth(t *testing.T) {
	v := sampleViewer(nil)
	v.PlotWindow(0, 40, false)
	v.PlotZoomInX()
	width := v.currentRange[1] - v.currentRange[0]
	assert.InDelta(t, 20, width, 2)
}

func TestLookupXClampsIndices(t *testing.T) {
	v := sampleViewer(nil)
	res := v.LookupX([]int{-5, 0, 200})
	assert.Contains(t, res.Desc, "x values:")
}

func TestLookupYFindsCrossing(t *testing.T) {
	v := sampleViewer(nil)
	v.PlotAll()
	res := v.LookupY("pressure", []float64{25})
	assert.Contains(t, res.Desc, "crossings:")
}

func TestLookupYUnknownChannelReturnsError(t *testing.T) {
	v := sampleViewer(nil)
	res := v.LookupY("does-not-exist", []float64{1})
	assert.Contains(t, res.Desc, "error")
}

func TestGetValueDownsamplesLargeWindow(t *testing.T) {
	n := 1000
	x := make([]float64, n)
	ch := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		ch[i] = float64(i)
	}
	v := NewPlotViewer(x, []string{"pressure"}, [][]float64{ch}, nil)
	v.PlotAll()
	res := v.GetValue()
	lines := strings.Split(strings.TrimSpace(res.Desc), "\n")
	require.True(t, len(lines) <= maxTableRows+1)
}

func TestPlotDerivativeUnknownChannelErrors(t *testing.T) {
	v := sampleViewer(nil)
	v.PlotAll()
	res := v.PlotDerivative([]string{"nope"})
	assert.Contains(t, res.Desc, "error")
}
