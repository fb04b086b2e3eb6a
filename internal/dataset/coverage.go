package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var ErrMalformedDataset = errors.New("malformed dataset")

// Shape is the client x facility size of a single-column coverage file. A
// zero Shape reads the file as a grid with one row per client.
type Shape struct {
	Clients    int
	Facilities int
}

func (s Shape) flat() bool {
	return s.Clients > 0 && s.Facilities > 0
}

func LoadCoverage(path string, shape Shape) ([][]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	coverage, err := ReadCoverage(f, shape)
	if err != nil {
		return nil, fmt.Errorf("load coverage %s: %w", path, err)
	}
	return coverage, nil
}

// ReadCoverage parses a coverage matrix. With a flat Shape the input is one
// value per line after a header line, filled row by row. Otherwise each
// record is one client row; a leading non-numeric record is treated as a
// header.
func ReadCoverage(in io.Reader, shape Shape) ([][]bool, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if shape.flat() {
		return readFlatCoverage(reader, shape)
	}
	return readGridCoverage(reader)
}

func readFlatCoverage(reader *csv.Reader, shape Shape) ([][]bool, error) {
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty coverage file", ErrMalformedDataset)
		}
		return nil, fmt.Errorf("read coverage header: %w", err)
	}

	want := shape.Clients * shape.Facilities
	values := make([]bool, 0, want)
	line := 2
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read coverage line %d: %w", line, err)
		}
		if blankRecord(record) {
			line++
			continue
		}
		if len(record) != 1 {
			return nil, fmt.Errorf("%w: line %d has %d fields, want 1", ErrMalformedDataset, line, len(record))
		}
		v, err := parseCell(record[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedDataset, line, err)
		}
		values = append(values, v)
		line++
	}
	if len(values) != want {
		return nil, fmt.Errorf("%w: got %d values, shape %dx%d needs %d",
			ErrMalformedDataset, len(values), shape.Clients, shape.Facilities, want)
	}

	coverage := make([][]bool, shape.Clients)
	for i := range coverage {
		coverage[i] = values[i*shape.Facilities : (i+1)*shape.Facilities : (i+1)*shape.Facilities]
	}
	return coverage, nil
}

func readGridCoverage(reader *csv.Reader) ([][]bool, error) {
	coverage := make([][]bool, 0, 512)
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read coverage line %d: %w", line, err)
		}
		if blankRecord(record) {
			continue
		}

		row := make([]bool, len(record))
		for j, cell := range record {
			v, err := parseCell(cell)
			if err != nil {
				if len(coverage) == 0 && line == 1 {
					row = nil
					break
				}
				return nil, fmt.Errorf("%w: line %d column %d: %v", ErrMalformedDataset, line, j+1, err)
			}
			row[j] = v
		}
		if row != nil {
			coverage = append(coverage, row)
		}
	}
	if len(coverage) == 0 {
		return nil, fmt.Errorf("%w: no coverage rows", ErrMalformedDataset)
	}
	return coverage, nil
}

func parseCell(raw string) (bool, error) {
	cell := strings.TrimSpace(raw)
	if b, err := strconv.ParseBool(cell); err == nil {
		return b, nil
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return false, fmt.Errorf("invalid coverage value %q", raw)
	}
	return f != 0, nil
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
