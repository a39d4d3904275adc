package binformat

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/tsforge/tsforge/pkg/models"
	"github.com/tsforge/tsforge/pkg/resample"
)

// BinaryFormatThreshold is the row count at or above which the writer switches
// from JSON-only storage to the mmap-able binary format (spec.md §4.5).
const BinaryFormatThreshold = 100_000

// OverviewTargetPoints is the Resampler budget used to build the
// always-on overview file (spec.md §4.5).
const OverviewTargetPoints = 5000

// FullJSONMaxPoints bounds how large N may be before the writer skips the
// "always also emit a full json" fallback — spec.md leaves the exact
// cutoff to "when feasible"; 2M rows is the line past which a full JSON
// re-encode would duplicate most of what the binary+overview pair
// already serves cheaply.
const FullJSONMaxPoints = 2_000_000

// Channel is one resolved column from the Parser (C3): x or a data
// channel, still in memory as a float64 slice.
type Channel struct {
	IsX   bool
	Name  string
	Unit  string
	Color string
	Data  []float64
}

// Result carries everything the caller (the parse worker) needs to
// update the file record after a successful write.
type Result struct {
	UseBinaryFormat bool
	TotalPoints     int64
	BinaryPath      string
	MetaPath        string
	OverviewPath    string
	JSONPath        string
}

// Write decides the storage format by row count and persists the parsed
// channels under {stem}.*, per spec.md §4.5.
func Write(stem string, xType models.XType, xFormat string, channels []Channel) (Result, error) {
	xIdx, err := xColumnIndex(channels)
	if err != nil {
		return Result{}, err
	}
	x := channels[xIdx].Data
	n := int64(len(x))

	res := Result{TotalPoints: n}

	if n >= BinaryFormatThreshold {
		binPath := stem + ".bin"
		metaPath := stem + "_meta.json"
		if err := writeBinary(binPath, channels, xIdx); err != nil {
			return Result{}, err
		}
		meta := buildMeta(channels, xIdx, xType, xFormat)
		if err := WriteMeta(metaPath, meta); err != nil {
			return Result{}, err
		}
		res.UseBinaryFormat = true
		res.BinaryPath = binPath
		res.MetaPath = metaPath
	}

	overviewPath := stem + "_overview.json"
	if err := writeOverviewFile(overviewPath, channels, xIdx, xType, xFormat); err != nil {
		return Result{}, err
	}
	res.OverviewPath = overviewPath

	if n <= FullJSONMaxPoints {
		jsonPath := stem + ".json"
		if err := writeFullJSON(jsonPath, channels); err != nil {
			return Result{}, err
		}
		res.JSONPath = jsonPath
	}

	return res, nil
}

func xColumnIndex(channels []Channel) (int, error) {
	for i, c := range channels {
		if c.IsX {
			return i, nil
		}
	}
	return 0, fmt.Errorf("binformat: no x channel present")
}

// writeBinary writes row-major [N, 1+K] float64 with x first, in the
// host's native byte order (spec.md §9 open question: cross-architecture
// portability is the deploying operator's responsibility).
func writeBinary(path string, channels []Channel, xIdx int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("binformat: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 1<<20)
	n := len(channels[xIdx].Data)

	row := make([]float64, len(channels))
	buf := make([]byte, 8*len(channels))
	for i := 0; i < n; i++ {
		row[0] = channels[xIdx].Data[i]
		col := 1
		for _, c := range channels {
			if c.IsX {
				continue
			}
			row[col] = c.Data[i]
			col++
		}
		for j, v := range row {
			binary.NativeEndian.PutUint64(buf[j*8:j*8+8], math.Float64bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("binformat: write row %d: %w", i, err)
		}
	}
	return w.Flush()
}

func buildMeta(channels []Channel, xIdx int, xType models.XType, xFormat string) Meta {
	n := int64(len(channels[xIdx].Data))

	chMeta := make([]ChannelMeta, 0, len(channels)-1)
	col := 1
	for _, c := range channels {
		if c.IsX {
			continue
		}
		chMeta = append(chMeta, ChannelMeta{Name: c.Name, Unit: c.Unit, Color: c.Color, Column: col})
		col++
	}

	xMin, xMax := minMax(channels[xIdx].Data)
	return Meta{
		Shape:       [2]int64{n, int64(len(channels))},
		TotalPoints: n,
		XColumn: XColumnMeta{
			Name:   channels[xIdx].Name,
			Unit:   channels[xIdx].Unit,
			Type:   string(xType),
			Format: xFormat,
			Min:    xMin,
			Max:    xMax,
		},
		Channels: chMeta,
	}
}

func writeOverviewFile(path string, channels []Channel, xIdx int, xType models.XType, xFormat string) error {
	x := channels[xIdx].Data
	var dataChannels [][]float64
	for _, c := range channels {
		if !c.IsX {
			dataChannels = append(dataChannels, c.Data)
		}
	}

	xOut, chOut, _, err := resample.Resample(x, dataChannels, OverviewTargetPoints)
	if err != nil {
		return fmt.Errorf("binformat: overview resample: %w", err)
	}

	ov := Overview{
		Meta: OverviewMeta{
			XType:          string(xType),
			XFormat:        xFormat,
			TotalPoints:    int64(len(x)),
			OverviewPoints: len(xOut),
		},
	}
	if len(x) > 0 {
		ov.Meta.XMin, ov.Meta.XMax = minMax(x)
	}

	ov.Data = append(ov.Data, OverviewChannel{X: true, Name: channels[xIdx].Name, Unit: channels[xIdx].Unit, Data: xOut})
	i := 0
	for _, c := range channels {
		if c.IsX {
			continue
		}
		ov.Data = append(ov.Data, OverviewChannel{Name: c.Name, Unit: c.Unit, Color: c.Color, Data: chOut[i]})
		i++
	}

	return WriteOverview(path, ov)
}

// JSONChannel is one entry in a full `.json` file written for small,
// below-BinaryFormatThreshold files — the same shape as an overview
// entry, minus the wrapping meta object.
type JSONChannel struct {
	X     bool      `json:"x"`
	Name  string    `json:"name"`
	Unit  string    `json:"unit,omitempty"`
	Color string    `json:"color,omitempty"`
	Data  []float64 `json:"data"`
}

func writeFullJSON(path string, channels []Channel) error {
	out := make([]JSONChannel, 0, len(channels))
	for _, c := range channels {
		out = append(out, JSONChannel{X: c.IsX, Name: c.Name, Unit: c.Unit, Color: c.Color, Data: c.Data})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("binformat: marshal full json: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("binformat: write full json %s: %w", path, err)
	}
	return nil
}

// ReadFullJSON loads a `.json` file written by Write for small files.
func ReadFullJSON(path string) ([]JSONChannel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("binformat: read full json %s: %w", path, err)
	}
	var out []JSONChannel
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("binformat: unmarshal full json %s: %w", path, err)
	}
	return out, nil
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
