package binformat

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"golang.org/x/sys/unix"
)

// Reader mmaps one .bin file and serves slices against its meta. Grounded
// on original_source's MemoryMappedDataReader (np.memmap + np.searchsorted),
// ported to golang.org/x/sys/unix.Mmap since Go has no numpy-equivalent
// view type.
type Reader struct {
	meta Meta
	data []byte // the raw mmap
	rows int64
	cols int64
}

var (
	readerCacheMu sync.Mutex
	readerCache   = map[string]*Reader{}
)

// GetReader returns the process-wide cached Reader for binPath, opening
// and mmap'ing it on first use. Entries are immutable once constructed
// (spec.md §5's "Reader cache ... entries are immutable once constructed").
func GetReader(binPath, metaPath string) (*Reader, error) {
	readerCacheMu.Lock()
	defer readerCacheMu.Unlock()

	if r, ok := readerCache[binPath]; ok {
		return r, nil
	}

	meta, err := ReadMeta(metaPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(binPath)
	if err != nil {
		return nil, fmt.Errorf("binformat: open %s: %w", binPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("binformat: stat %s: %w", binPath, err)
	}

	wantBytes := meta.Shape[0] * meta.Shape[1] * 8
	if info.Size() < wantBytes {
		return nil, fmt.Errorf("binformat: %s is %d bytes, meta expects at least %d", binPath, info.Size(), wantBytes)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("binformat: %s is empty", binPath)
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("binformat: mmap %s: %w", binPath, err)
	}

	r := &Reader{
		meta: meta,
		data: mapped,
		rows: meta.Shape[0],
		cols: meta.Shape[1],
	}
	readerCache[binPath] = r
	return r, nil
}

// ClearReaderCache releases every cached mapping. Intended for tests and
// for operators rotating a file's binary artifact out from under a live
// process.
func ClearReaderCache() {
	readerCacheMu.Lock()
	defer readerCacheMu.Unlock()
	for path, r := range readerCache {
		_ = r.Close()
		delete(readerCache, path)
	}
}

// Close unmaps the reader's view. Safe to call once; callers sharing a
// cached Reader should not call this directly — use ClearReaderCache.
func (r *Reader) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	return err
}

// Meta exposes the reader's sidecar metadata.
func (r *Reader) Meta() Meta {
	return r.meta
}

func (r *Reader) cell(row, col int64) float64 {
	off := (row*r.cols + col) * 8
	return math.Float64frombits(binary.NativeEndian.Uint64(r.data[off : off+8]))
}

func (r *Reader) xAt(row int64) float64 {
	return r.cell(row, 0)
}

// GetSlice implements spec.md §4.2's get_slice: binary-search the x
// column for [lower_bound(xMin), upper_bound(xMax)], clamp to [0,N], and
// return a copy of rows [lo:hi] split into x and K channel slices, plus
// the original row count hi-lo.
func (r *Reader) GetSlice(xMin, xMax float64) (x []float64, channels [][]float64, count int64) {
	lo := int64(sort.Search(int(r.rows), func(i int) bool { return r.xAt(int64(i)) >= xMin }))
	hi := int64(sort.Search(int(r.rows), func(i int) bool { return r.xAt(int64(i)) > xMax }))

	if lo < 0 {
		lo = 0
	}
	if hi > r.rows {
		hi = r.rows
	}
	if lo > hi {
		lo = hi
	}

	n := hi - lo
	x = make([]float64, n)
	k := r.cols - 1
	channels = make([][]float64, k)
	for c := range channels {
		channels[c] = make([]float64, n)
	}

	for i := int64(0); i < n; i++ {
		row := lo + i
		x[i] = r.cell(row, 0)
		for c := int64(0); c < k; c++ {
			channels[c][i] = r.cell(row, c+1)
		}
	}
	return x, channels, n
}

// GetFullData returns every row as x plus K channels, the same shape
// GetSlice produces, for callers that need the whole file (e.g. building
// an overview from an already-written binary).
func (r *Reader) GetFullData() (x []float64, channels [][]float64) {
	x, channels, _ = r.GetSlice(math.Inf(-1), math.Inf(1))
	return x, channels
}
