package agent

import (
	"encoding/base64"
	"fmt"
	"image/color"
	"image/png"
	"sort"
	"strings"

	"github.com/fogleman/gg"
)

// ToolResult is what every Plot-Tool Harness operation returns to the
// LLM: a text description and, for the plotting operations, a base64
// PNG. Non-plotting operations (lookup_x, get_value) leave Fig empty.
type ToolResult struct {
	Desc string
	Fig  string // base64 PNG, empty when not applicable
}

// PlotViewer is a per-sub-agent bounded viewer over one in-memory
// dataset, grounded on original_source's auto_detect PlotViewer
// (current_x_view_range, y_zoomed, original y ranges) and re-architected
// per spec.md §9's design note as a typed command table instead of
// eval'd Python expressions.
type PlotViewer struct {
	x        []float64
	names    []string
	channels [][]float64
	n        int

	currentRange    [2]int
	yZoomed         bool
	originalYMin    []float64
	originalYMax    []float64
	explicitYRanges map[string][2]float64

	onViewChange Subscriber
}

// NewPlotViewer builds a viewer over x/channels (parallel arrays, each
// channel the same length as x) with an initial full-range view.
func NewPlotViewer(x []float64, names []string, channels [][]float64, onViewChange Subscriber) *PlotViewer {
	v := &PlotViewer{
		x:            x,
		names:        names,
		channels:     channels,
		n:            len(x),
		onViewChange: onViewChange,
		originalYMin: make([]float64, len(channels)),
		originalYMax: make([]float64, len(channels)),
	}
	for i, ch := range channels {
		v.originalYMin[i], v.originalYMax[i] = minMax(ch)
	}
	v.currentRange = [2]int{0, clamp(v.n-1, 0, v.n-1)}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minMax(xs []float64) (lo, hi float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	lo, hi = xs[0], xs[0]
	for _, v := range xs[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func (v *PlotViewer) setRange(start, end int) {
	start = clamp(start, 0, v.n)
	end = clamp(end, 0, v.n)
	if start > end {
		start, end = end, start
	}
	v.currentRange = [2]int{start, end}
	v.explicitYRanges = nil
	if v.onViewChange != nil {
		v.onViewChange(Notification{
			Type: NotifyPlotViewSync,
			Data: map[string]any{"start": start, "end": end},
		})
	}
}

// PlotAll renders the full dataset.
func (v *PlotViewer) PlotAll() ToolResult {
	v.setRange(0, v.n-1)
	return v.render(fmt.Sprintf("Full view: %d points", v.n))
}

// PlotWindow renders [start,end], clamped to [0,N].
func (v *PlotViewer) PlotWindow(start, end int, yZoomed bool) ToolResult {
	v.yZoomed = yZoomed
	v.setRange(start, end)
	return v.render(fmt.Sprintf("Window [%d, %d]", v.currentRange[0], v.currentRange[1]))
}

// PlotWindowWithWindowSize renders a window of the given size centered
// on mid.
func (v *PlotViewer) PlotWindowWithWindowSize(mid, size int, yZoomed bool) ToolResult {
	half := size / 2
	return v.PlotWindow(mid-half, mid+half, yZoomed)
}

// PlotLeft shifts the current window left by 3/4 its width.
func (v *PlotViewer) PlotLeft() ToolResult {
	width := v.currentRange[1] - v.currentRange[0]
	shift := (width * 3) / 4
	if shift < 1 {
		shift = 1
	}
	return v.PlotWindow(v.currentRange[0]-shift, v.currentRange[1]-shift, v.yZoomed)
}

// PlotRight shifts the current window right by 3/4 its width.
func (v *PlotViewer) PlotRight() ToolResult {
	width := v.currentRange[1] - v.currentRange[0]
	shift := (width * 3) / 4
	if shift < 1 {
		shift = 1
	}
	return v.PlotWindow(v.currentRange[0]+shift, v.currentRange[1]+shift, v.yZoomed)
}

// PlotZoomInX halves the current window width around its center.
func (v *PlotViewer) PlotZoomInX() ToolResult {
	return v.zoomX(0.5)
}

// PlotZoomOutX doubles the current window width around its center.
func (v *PlotViewer) PlotZoomOutX() ToolResult {
	return v.zoomX(2.0)
}

func (v *PlotViewer) zoomX(factor float64) ToolResult {
	center := (v.currentRange[0] + v.currentRange[1]) / 2
	width := v.currentRange[1] - v.currentRange[0]
	newHalf := int(float64(width) * factor / 2)
	if newHalf < 1 {
		newHalf = 1
	}
	return v.PlotWindow(center-newHalf, center+newHalf, v.yZoomed)
}

// PlotZoomInY enables per-window y-axis scaling.
func (v *PlotViewer) PlotZoomInY() ToolResult {
	v.yZoomed = true
	v.explicitYRanges = nil
	return v.render("Y-axis zoomed to current window")
}

// PlotZoomOutY restores the dataset's original y ranges.
func (v *PlotViewer) PlotZoomOutY() ToolResult {
	v.yZoomed = false
	v.explicitYRanges = nil
	return v.render("Y-axis restored to full range")
}

// PlotDerivative renders the first difference of the named channels.
func (v *PlotViewer) PlotDerivative(channelNames []string) ToolResult {
	return v.renderDerived(channelNames, 1)
}

// PlotSecondDerivative renders the second difference of the named channels.
func (v *PlotViewer) PlotSecondDerivative(channelNames []string) ToolResult {
	return v.renderDerived(channelNames, 2)
}

func (v *PlotViewer) renderDerived(channelNames []string, order int) ToolResult {
	idxs := v.resolveChannels(channelNames)
	if len(idxs) == 0 {
		return ToolResult{Desc: "error: no matching channels"}
	}

	lo, hi := v.currentRange[0], v.currentRange[1]
	img := gg.NewContext(plotWidth, plotHeight)
	img.SetColor(color.White)
	img.Clear()

	label := "derivative"
	if order == 2 {
		label = "second derivative"
	}

	for _, ci := range idxs {
		data := v.channels[ci][lo:hi]
		for i := 0; i < order; i++ {
			data = diff(data)
		}
		drawSeries(img, data, seriesColor(ci))
	}
	img.Stroke()

	return ToolResult{
		Desc: fmt.Sprintf("%s of %s over [%d, %d]", label, strings.Join(channelNames, ","), lo, hi),
		Fig:  encodePNG(img),
	}
}

func diff(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		out[i-1] = xs[i] - xs[i-1]
	}
	return out
}

// PlotWithYRanges renders the current window with explicit y-axis
// bounds per channel, overriding the auto-scaled min/max render would
// otherwise use for each named channel.
func (v *PlotViewer) PlotWithYRanges(ranges map[string][2]float64) ToolResult {
	v.yZoomed = true
	v.explicitYRanges = ranges

	names := make([]string, 0, len(ranges))
	for n := range ranges {
		names = append(names, n)
	}
	sort.Strings(names)

	return v.render(fmt.Sprintf("Window [%d, %d] with explicit y ranges for %s",
		v.currentRange[0], v.currentRange[1], strings.Join(names, ",")))
}

// LookupX returns the x values at the given indices, clamped to [0,N).
func (v *PlotViewer) LookupX(idxs []int) ToolResult {
	var vals []float64
	for _, i := range idxs {
		vals = append(vals, v.x[clamp(i, 0, v.n-1)])
	}
	return ToolResult{Desc: fmt.Sprintf("x values: %v", vals)}
}

// LookupY returns interpolated x-crossings where channel equals each
// target y value, within the current window.
func (v *PlotViewer) LookupY(channel string, ys []float64) ToolResult {
	idx := v.channelIndex(channel)
	if idx < 0 {
		return ToolResult{Desc: fmt.Sprintf("error: unknown channel %q", channel)}
	}
	lo, hi := v.currentRange[0], v.currentRange[1]
	xs := v.x[lo:hi]
	data := v.channels[idx][lo:hi]

	var crossings []float64
	for _, target := range ys {
		for i := 1; i < len(data); i++ {
			a, b := data[i-1], data[i]
			if (a <= target && b >= target) || (a >= target && b <= target) {
				if b == a {
					crossings = append(crossings, xs[i])
					continue
				}
				frac := (target - a) / (b - a)
				crossings = append(crossings, xs[i-1]+frac*(xs[i]-xs[i-1]))
			}
		}
	}
	return ToolResult{Desc: fmt.Sprintf("crossings: %v", crossings)}
}

// maxTableRows bounds GetValue's row count before it downsamples.
const maxTableRows = 200

// GetValue returns a textual table of the current window, downsampled
// to maxTableRows if the window is larger.
func (v *PlotViewer) GetValue() ToolResult {
	lo, hi := v.currentRange[0], v.currentRange[1]
	n := hi - lo
	step := 1
	if n > maxTableRows {
		step = (n + maxTableRows - 1) / maxTableRows
	}

	var b strings.Builder
	b.WriteString("index,x," + strings.Join(v.names, ",") + "\n")
	for i := lo; i < hi; i += step {
		fmt.Fprintf(&b, "%d,%g", i, v.x[i])
		for _, ch := range v.channels {
			fmt.Fprintf(&b, ",%g", ch[i])
		}
		b.WriteString("\n")
	}
	return ToolResult{Desc: b.String()}
}

func (v *PlotViewer) channelIndex(name string) int {
	for i, n := range v.names {
		if n == name {
			return i
		}
	}
	return -1
}

func (v *PlotViewer) resolveChannels(names []string) []int {
	var out []int
	for _, name := range names {
		if idx := v.channelIndex(name); idx >= 0 {
			out = append(out, idx)
		}
	}
	return out
}

const (
	plotWidth  = 900
	plotHeight = 450
)

func (v *PlotViewer) render(desc string) ToolResult {
	lo, hi := v.currentRange[0], v.currentRange[1]
	if hi <= lo {
		return ToolResult{Desc: desc}
	}

	img := gg.NewContext(plotWidth, plotHeight)
	img.SetColor(color.White)
	img.Clear()
	for i, ch := range v.channels {
		window := ch[lo:hi]
		if r, ok := v.explicitYRanges[v.names[i]]; ok {
			drawSeriesWithRange(img, window, seriesColor(i), r[0], r[1])
			continue
		}
		drawSeries(img, window, seriesColor(i))
	}
	img.Stroke()

	return ToolResult{Desc: desc, Fig: encodePNG(img)}
}

func drawSeries(img *gg.Context, ys []float64, c color.Color) {
	if len(ys) < 2 {
		return
	}
	lo, hi := minMax(ys)
	drawSeriesWithRange(img, ys, c, lo, hi)
}

func drawSeriesWithRange(img *gg.Context, ys []float64, c color.Color, lo, hi float64) {
	if len(ys) < 2 {
		return
	}
	if hi == lo {
		hi = lo + 1
	}

	img.SetColor(c)
	img.SetLineWidth(1.5)
	for i := 1; i < len(ys); i++ {
		x0 := float64(i-1) / float64(len(ys)-1) * plotWidth
		x1 := float64(i) / float64(len(ys)-1) * plotWidth
		y0 := plotHeight - (ys[i-1]-lo)/(hi-lo)*plotHeight
		y1 := plotHeight - (ys[i]-lo)/(hi-lo)*plotHeight
		img.DrawLine(x0, y0, x1, y1)
	}
}

func seriesColor(i int) color.Color {
	palette := []color.Color{
		color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
		color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
		color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
		color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	}
	return palette[i%len(palette)]
}

func encodePNG(img *gg.Context) string {
	var buf strings.Builder
	// gg.Context.Image() returns the underlying image.Image; png.Encode
	// writes to any io.Writer, so base64.NewEncoder chains straight onto it.
	enc := base64.NewEncoder(base64.StdEncoding, &buf)
	if err := png.Encode(enc, img.Image()); err != nil {
		return ""
	}
	enc.Close()
	return buf.String()
}
