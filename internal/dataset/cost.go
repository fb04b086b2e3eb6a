package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CostOptions locate the cost vector. In a workbook the costs are Count cells
// of row Row starting at column Column (both zero based) on Sheet, or on the
// first sheet when Sheet is empty. A CSV holds the costs as a single row or a
// single column, optionally after a header.
type CostOptions struct {
	Sheet  string
	Row    int
	Column int
	Count  int
}

func LoadCost(path string, opts CostOptions) ([]float64, error) {
	var (
		cost []float64
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		cost, err = loadWorkbookCost(path, opts)
	default:
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		cost, err = ReadCostCSV(f, opts.Count)
	}
	if err != nil {
		return nil, fmt.Errorf("load cost %s: %w", path, err)
	}
	return cost, nil
}

func loadWorkbookCost(path string, opts CostOptions) ([]float64, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer book.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = book.GetSheetName(0)
	}
	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if opts.Row < 0 || opts.Row >= len(rows) {
		return nil, fmt.Errorf("%w: sheet %q has no row %d", ErrMalformedDataset, sheet, opts.Row)
	}
	row := rows[opts.Row]
	end := len(row)
	if opts.Count > 0 {
		end = opts.Column + opts.Count
	}
	if opts.Column < 0 || end > len(row) || end <= opts.Column {
		return nil, fmt.Errorf("%w: row %d has %d cells, need columns %d..%d",
			ErrMalformedDataset, opts.Row, len(row), opts.Column, end-1)
	}

	cost := make([]float64, 0, end-opts.Column)
	for j := opts.Column; j < end; j++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d column %d: invalid cost %q", ErrMalformedDataset, opts.Row, j, row[j])
		}
		cost = append(cost, v)
	}
	return cost, nil
}

// ReadCostCSV reads every numeric cell in order. A first record containing a
// non-numeric cell is skipped as a header. count > 0 requires exactly that
// many values.
func ReadCostCSV(in io.Reader, count int) ([]float64, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	cost := make([]float64, 0, count)
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read cost line %d: %w", line, err)
		}
		if blankRecord(record) {
			continue
		}
		values, err := parseFloats(record)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedDataset, line, err)
		}
		cost = append(cost, values...)
	}
	if len(cost) == 0 {
		return nil, fmt.Errorf("%w: no cost values", ErrMalformedDataset)
	}
	if count > 0 && len(cost) != count {
		return nil, fmt.Errorf("%w: got %d costs, want %d", ErrMalformedDataset, len(cost), count)
	}
	return cost, nil
}

func parseFloats(record []string) ([]float64, error) {
	values := make([]float64, 0, len(record))
	for _, cell := range record {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cost %q", cell)
		}
		values = append(values, v)
	}
	return values, nil
}
