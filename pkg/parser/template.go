// Package parser implements the template-driven file parser (C3) and its
// time-format autodetection (C4), grounded on original_source's
// hill_workers/parsing.py and workers/file_parser.py.
package parser

import "fmt"

// FileType selects which decoder Parse dispatches to.
type FileType string

const (
	FileTypeCSV  FileType = ".csv"
	FileTypeXLS  FileType = ".xls"
	FileTypeXLSX FileType = ".xlsx"
)

// ColumnSelector resolves to a column either by explicit index
// ("col:N") or by regex match against the header row, per spec.md §4.3's
// x-axis/channel resolution order.
type ColumnSelector struct {
	// Raw is the template's literal selector string, e.g. "col:3" or a
	// regex like "^Pressure.*".
	Raw string
}

// ColIndex returns the 0-based column index and true if Raw is a "col:N"
// literal.
func (s ColumnSelector) ColIndex() (int, bool) {
	const prefix = "col:"
	if len(s.Raw) <= len(prefix) || s.Raw[:len(prefix)] != prefix {
		return 0, false
	}
	n := 0
	for _, r := range s.Raw[len(prefix):] {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// XSpec describes how to resolve and interpret the x column.
type XSpec struct {
	Selector ColumnSelector
	UseIndex bool
	IsTime   bool
	// Format is a user-provided Go reference layout (e.g.
	// "2006-01-02 15:04:05"); empty means autodetect (C4). Values the
	// layout cannot parse fall back to dateparse.ParseAny.
	Format string
	Name   string
	Unit   string
}

// ChannelSpec describes one data channel to extract.
type ChannelSpec struct {
	ChannelName string
	Selector    ColumnSelector
	Mandatory   bool
	Color       string
	Unit        string
}

// Template is the parse recipe spec.md §4.3 takes as input, alongside a
// raw file path.
type Template struct {
	FileType  FileType
	SheetName string
	HeadRow   int
	SkipRow   int
	X         XSpec
	Channels  []ChannelSpec
}

// Column is one resolved output column: either the x axis (X=true) or a
// named data channel.
type Column struct {
	X     bool
	Name  string
	Unit  string
	Color string
	Data  []float64
}

// Error codes named in spec.md §4.3/§4.4/§7, surfaced as sentinel error
// values so callers can errors.Is against them.
var (
	ErrNonNumericX      = fmt.Errorf("parser: x column is not numeric")
	ErrTimeParseFailure = fmt.Errorf("parser: could not parse x column as time")
	ErrChannelMissing   = fmt.Errorf("parser: mandatory channel missing")
	ErrNoDataRows       = fmt.Errorf("parser: skipRow leaves no data rows")
)

// sheet is the decoder-agnostic intermediate form every file type
// decoder (csv.go/excel.go) produces: a header row plus the data rows
// below it, already past headRow+skipRow.
type sheet struct {
	header []string
	rows   [][]string
}
