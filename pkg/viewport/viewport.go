// Package viewport implements the Viewport Service (C8): given a file and
// an x-range, return exactly the points a chart needs at whatever
// resolution the caller asked for, drawing on the memory-mapped reader
// (C2) for binary-format files and a full in-memory scan for small
// JSON-only files, then handing both through the Resampler (C1).
//
// Grounded on original_source/hill_backend/routes/files.py's viewport
// endpoint and spec.md §4.8.
package viewport

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tsforge/tsforge/pkg/binformat"
	"github.com/tsforge/tsforge/pkg/models"
	"github.com/tsforge/tsforge/pkg/resample"
	"github.com/tsforge/tsforge/pkg/services"
)

// ErrNotParsed is returned when a viewport is requested for a file whose
// parse has not completed (or failed).
var ErrNotParsed = errors.New("viewport: file is not parsed")

// DefaultMaxPoints is used when a request omits max_points.
const DefaultMaxPoints = 2000

// Result carries everything handler_viewport.go needs to fill the
// header contract from spec.md §4.8 and write the response body.
type Result struct {
	TotalPoints    int64
	ReturnedPoints int64
	FullResolution bool
	NumColumns     int
	XMin           float64
	XMax           float64
	ChannelNames   []string
	XType          models.XType
	XFormat        string

	X        []float64
	Channels [][]float64
}

// Service answers viewport queries against the file registry.
type Service struct {
	files *services.FileService
}

// NewService wraps a FileService.
func NewService(files *services.FileService) *Service {
	return &Service{files: files}
}

// Query resolves file fileID's x window [xMin, xMax] at up to maxPoints
// points per channel (spec.md §4.8's get request). maxPoints <= 0 uses
// DefaultMaxPoints.
func (s *Service) Query(ctx context.Context, fileID string, xMin, xMax float64, maxPoints int) (*Result, error) {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}

	f, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.Parsing != models.ParsingParsed {
		return nil, fmt.Errorf("%w: file %s is %q", ErrNotParsed, fileID, f.Parsing)
	}

	var (
		x            []float64
		channels     [][]float64
		channelNames []string
	)

	if f.UseBinaryFormat {
		x, channels, channelNames, err = s.queryBinary(f, xMin, xMax)
	} else {
		x, channels, channelNames, err = s.queryJSON(f, xMin, xMax)
	}
	if err != nil {
		return nil, err
	}

	xOut, chOut, isFull, err := resample.Resample(x, channels, maxPoints)
	if err != nil {
		return nil, fmt.Errorf("viewport: resample: %w", err)
	}

	return &Result{
		TotalPoints:    f.TotalPoints,
		ReturnedPoints: int64(len(xOut)),
		FullResolution: isFull,
		NumColumns:     len(channelNames),
		XMin:           f.XMin,
		XMax:           f.XMax,
		ChannelNames:   channelNames,
		XType:          f.XType,
		XFormat:        f.XFormat,
		X:              xOut,
		Channels:       chOut,
	}, nil
}

// LoadFull returns the entire parsed dataset for fileID at full
// resolution, unresampled — used by the Plot-Tool Harness (C10), which
// needs raw indices to operate on rather than a chart-sized window.
func (s *Service) LoadFull(ctx context.Context, fileID string) (x []float64, names []string, channels [][]float64, err error) {
	f, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, nil, nil, err
	}
	if f.Parsing != models.ParsingParsed {
		return nil, nil, nil, fmt.Errorf("%w: file %s is %q", ErrNotParsed, fileID, f.Parsing)
	}

	if f.UseBinaryFormat {
		x, channels, names, err = s.queryBinary(f, f.XMin, f.XMax)
	} else {
		x, channels, names, err = s.queryJSON(f, f.XMin, f.XMax)
	}
	return x, names, channels, err
}

func (s *Service) queryBinary(f *models.File, xMin, xMax float64) (x []float64, channels [][]float64, names []string, err error) {
	reader, err := binformat.GetReader(f.BinaryPath, f.MetaPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("viewport: open reader: %w", err)
	}
	x, channels, _ = reader.GetSlice(xMin, xMax)
	return x, channels, reader.Meta().ChannelNames(), nil
}

func (s *Service) queryJSON(f *models.File, xMin, xMax float64) (x []float64, channels [][]float64, names []string, err error) {
	cols, err := binformat.ReadFullJSON(f.JSONPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("viewport: read json: %w", err)
	}

	xIdx := -1
	for i, c := range cols {
		if c.X {
			xIdx = i
			break
		}
	}
	if xIdx == -1 {
		return nil, nil, nil, fmt.Errorf("viewport: %s has no x column", f.JSONPath)
	}

	fullX := cols[xIdx].Data
	lo := sort.Search(len(fullX), func(i int) bool { return fullX[i] >= xMin })
	hi := sort.Search(len(fullX), func(i int) bool { return fullX[i] > xMax })
	if hi < lo {
		hi = lo
	}

	x = append([]float64(nil), fullX[lo:hi]...)
	names = make([]string, 0, len(cols)-1)
	for i, c := range cols {
		if i == xIdx {
			continue
		}
		channels = append(channels, append([]float64(nil), c.Data[lo:hi]...))
		names = append(names, c.Name)
	}
	return x, channels, names, nil
}
