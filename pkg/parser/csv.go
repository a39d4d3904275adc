package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// readCSV decodes a delimited text file with encoding/csv — no additional
// nuance (quoting, escaping) beyond what the stdlib reader already
// handles, so there's no ecosystem library to reach for here.
func readCSV(path string, headRow, skipRow int) (sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return sheet{}, fmt.Errorf("parser: open csv %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var all [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sheet{}, fmt.Errorf("parser: read csv %s: %w", path, err)
		}
		all = append(all, rec)
	}

	return sheetFromRows(all, headRow, skipRow)
}

func sheetFromRows(all [][]string, headRow, skipRow int) (sheet, error) {
	if headRow < 0 || headRow >= len(all) {
		return sheet{}, fmt.Errorf("parser: headRow %d out of range (%d rows)", headRow, len(all))
	}
	header := all[headRow]
	dataStart := headRow + 1 + skipRow
	if dataStart >= len(all) {
		return sheet{}, fmt.Errorf("%w: headRow %d + skipRow %d leaves no rows (%d rows total)",
			ErrNoDataRows, headRow, skipRow, len(all))
	}
	return sheet{header: header, rows: all[dataStart:]}, nil
}
