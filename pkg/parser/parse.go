package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tsforge/tsforge/pkg/models"
)

// Parse implements spec.md §4.3: open the raw file per FileType, resolve
// the x column and every requested channel per the template, and return
// an ordered column list with x first.
func Parse(rawPath string, tpl Template) ([]Column, models.XType, string, error) {
	var sh sheet
	var err error

	switch tpl.FileType {
	case FileTypeCSV:
		sh, err = readCSV(rawPath, tpl.HeadRow, tpl.SkipRow)
	case FileTypeXLSX:
		sh, err = readXLSX(rawPath, tpl.SheetName, tpl.HeadRow, tpl.SkipRow)
	case FileTypeXLS:
		sh, err = readXLS(rawPath, tpl.SheetName, tpl.HeadRow, tpl.SkipRow)
	default:
		return nil, "", "", fmt.Errorf("parser: unsupported file type %q", tpl.FileType)
	}
	if err != nil {
		return nil, "", "", err
	}

	xCol, xType, xFormat, err := resolveX(sh, tpl.X)
	if err != nil {
		return nil, "", "", err
	}

	out := []Column{xCol}
	for _, cs := range tpl.Channels {
		col, ok, err := resolveChannel(sh, cs)
		if err != nil {
			return nil, "", "", err
		}
		if !ok {
			continue // optional channel absent: skip silently
		}
		out = append(out, col)
	}

	return out, xType, xFormat, nil
}

func resolveX(sh sheet, spec XSpec) (Column, models.XType, string, error) {
	n := len(sh.rows)

	if spec.UseIndex {
		data := make([]float64, n)
		for i := range data {
			data[i] = float64(i)
		}
		return Column{X: true, Name: orDefault(spec.Name, "index"), Unit: spec.Unit, Data: data}, models.XTypeNumeric, "", nil
	}

	colIdx, ok := resolveColumn(sh, spec.Selector)
	if !ok {
		return Column{}, "", "", fmt.Errorf("%w: x selector %q matched no column", ErrChannelMissing, spec.Selector.Raw)
	}
	raw := extractColumn(sh, colIdx)

	if !spec.IsTime {
		data, err := parseNumeric(raw)
		if err != nil {
			return Column{}, "", "", fmt.Errorf("%w: %v", ErrNonNumericX, err)
		}
		return Column{X: true, Name: orDefault(spec.Name, sh.header[colIdx]), Unit: spec.Unit, Data: data}, models.XTypeNumeric, "", nil
	}

	data, format, err := parseTimeColumn(raw, spec.Format)
	if err != nil {
		return Column{}, "", "", err
	}
	col := Column{X: true, Name: orDefault(spec.Name, sh.header[colIdx]), Unit: spec.Unit, Data: data}
	return col, models.XTypeTimestamp, format, nil
}

func resolveChannel(sh sheet, spec ChannelSpec) (Column, bool, error) {
	colIdx, ok := resolveColumn(sh, spec.Selector)
	if !ok {
		if spec.Mandatory {
			return Column{}, false, fmt.Errorf("%w: channel %q", ErrChannelMissing, spec.ChannelName)
		}
		return Column{}, false, nil
	}

	raw := extractColumn(sh, colIdx)
	data, err := parseNumeric(raw)
	if err != nil {
		if spec.Mandatory {
			return Column{}, false, fmt.Errorf("parser: channel %q is not numeric: %w", spec.ChannelName, err)
		}
		return Column{}, false, nil
	}

	return Column{Name: spec.ChannelName, Unit: spec.Unit, Color: spec.Color, Data: data}, true, nil
}

// resolveColumn implements the col:/regex resolution order shared by X
// and channel selectors: an explicit "col:N" index wins, otherwise match
// the header row by anchored regex.
func resolveColumn(sh sheet, sel ColumnSelector) (int, bool) {
	if idx, ok := sel.ColIndex(); ok {
		if idx >= 0 && idx < len(sh.header) {
			return idx, true
		}
		return 0, false
	}

	re, err := regexp.Compile(sel.Raw)
	if err != nil {
		// Not a valid regex: fall back to an exact, case-sensitive match.
		for i, h := range sh.header {
			if h == sel.Raw {
				return i, true
			}
		}
		return 0, false
	}
	for i, h := range sh.header {
		if loc := re.FindStringIndex(h); loc != nil && loc[0] == 0 && loc[1] == len(h) {
			return i, true
		}
	}
	return 0, false
}

func extractColumn(sh sheet, colIdx int) []string {
	out := make([]string, len(sh.rows))
	for i, row := range sh.rows {
		if colIdx < len(row) {
			out[i] = strings.TrimSpace(row[colIdx])
		}
	}
	return out
}

func parseNumeric(raw []string) ([]float64, error) {
	out := make([]float64, len(raw))
	for i, s := range raw {
		if s == "" {
			out[i] = 0
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %q: %w", i, s, err)
		}
		out[i] = v
	}
	return out, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
