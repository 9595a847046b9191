package telemetry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// unnamedIndexColumns are the headers an exported dataframe index carries.
var unnamedIndexColumns = map[string]bool{
	"":           true,
	"Unnamed: 0": true,
	TimeColumn:   true,
}

// LoadCSV reads a telemetry table. The first column holds the timestamp; an
// unnamed index column is treated as "Time (ns)".
func LoadCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry file: %w", err)
	}
	defer file.Close()

	table, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("read telemetry %s: %w", path, err)
	}
	return table, nil
}

// ReadCSV parses a telemetry table from r.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty telemetry input")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)
	first := strings.TrimSpace(strings.TrimPrefix(header[0], "\ufeff"))
	if !unnamedIndexColumns[first] {
		return nil, fmt.Errorf("first column %q is not a timestamp column", header[0])
	}

	table, err := NewTable(header[1:])
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(header)-1)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		ts, err := parseTimestamp(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for i, cell := range record[1:] {
			v, err := parseValue(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, header[i+1], err)
			}
			values[i] = v
		}
		if err := table.Append(ts, values); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return table, nil
}

// parseValue reads a numeric cell. A blank cell is a missing value and reads
// as NaN, matching how dataframes export NaN.
func parseValue(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

// parseTimestamp accepts integer nanoseconds; float notation is accepted when
// the value is integral (pandas writes "1e9" style values for some indexes).
func parseTimestamp(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ts, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	if f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return 0, fmt.Errorf("timestamp %q is not an integral nanosecond value", raw)
	}
	return int64(f), nil
}

// WriteCSV writes a table in the layout LoadCSV reads: an unnamed leading
// timestamp column followed by the data columns.
func WriteCSV(path string, table *Table) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create telemetry directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create telemetry file: %w", err)
	}
	defer func() {
		closeErr := file.Close()
		if err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	writer := csv.NewWriter(file)
	header := append([]string{""}, table.columns...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(header))
	for i := range table.times {
		record[0] = strconv.FormatInt(table.times[i], 10)
		for j, v := range table.values[i] {
			record[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
