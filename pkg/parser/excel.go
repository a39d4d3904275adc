package parser

import (
	"fmt"

	"github.com/extrame/xls"
	"github.com/qax-os/excelize/v2"
)

// readXLSX decodes a modern spreadsheet with excelize, the idiomatic Go
// choice for OOXML (.xlsx) — no pack repo parses spreadsheets, so this is
// an out-of-pack ecosystem pick (see DESIGN.md).
func readXLSX(path, sheetName string, headRow, skipRow int) (sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return sheet{}, fmt.Errorf("parser: open xlsx %s: %w", path, err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return sheet{}, fmt.Errorf("parser: read xlsx sheet %q: %w", sheetName, err)
	}

	return sheetFromRows(rows, headRow, skipRow)
}

// readXLS decodes a legacy BIFF8 (.xls) workbook with extrame/xls, the
// library the rest of the pack's .xls-handling code reaches for.
func readXLS(path, sheetName string, headRow, skipRow int) (sheet, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return sheet{}, fmt.Errorf("parser: open xls %s: %w", path, err)
	}

	var ws *xls.WorkSheet
	if sheetName != "" {
		ws = wb.GetSheet(sheetIndexByName(wb, sheetName))
	} else {
		ws = wb.GetSheet(0)
	}
	if ws == nil {
		return sheet{}, fmt.Errorf("parser: sheet %q not found in %s", sheetName, path)
	}

	var all [][]string
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			all = append(all, nil)
			continue
		}
		var cells []string
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		all = append(all, cells)
	}

	return sheetFromRows(all, headRow, skipRow)
}

func sheetIndexByName(wb *xls.WorkBook, name string) int {
	for i := 0; i < wb.NumSheets(); i++ {
		if ws := wb.GetSheet(i); ws != nil && ws.Name == name {
			return i
		}
	}
	return 0
}
