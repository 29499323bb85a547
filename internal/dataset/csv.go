package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// ReadCSV decodes headered CSV content into a Frame. Columns named in
// floatColumns are parsed as float64; everything else is read as string.
// An empty cell is a null in either case. Mapping tables in the registry
// are small, so the whole file is materialized.
func ReadCSV(r io.Reader, floatColumns map[string]bool) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv content is empty, expected a header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	strs := make([][]string, len(header))
	floats := make([][]float64, len(header))
	valids := make([][]bool, len(header))

	row := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", row, err)
		}
		for i, name := range header {
			cell := rec[i]
			if cell == "" {
				strs[i] = append(strs[i], "")
				floats[i] = append(floats[i], 0)
				valids[i] = append(valids[i], false)
				continue
			}
			if floatColumns[name] {
				v, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, fmt.Errorf("csv row %d, column %q: invalid numeric value %q: %w", row, name, cell, err)
				}
				floats[i] = append(floats[i], v)
				strs[i] = append(strs[i], "")
			} else {
				strs[i] = append(strs[i], cell)
				floats[i] = append(floats[i], 0)
			}
			valids[i] = append(valids[i], true)
		}
		row++
	}

	cols := make([]*Column, len(header))
	for i, name := range header {
		if floatColumns[name] {
			cols[i] = NewFloatColumn(name, floats[i], valids[i])
		} else {
			cols[i] = NewStringColumn(name, strs[i], valids[i])
		}
	}
	return NewFrame(cols...)
}
