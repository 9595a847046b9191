package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/identification"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/telemetry"
)

// Table holds the mode labels of one example: one row per truth timestamp,
// one column per fault family result key.
type Table struct {
	times   []int64
	keys    []string
	columns map[string][]string
}

// NewTable creates a table over the truth timestamps.
func NewTable(times []int64) *Table {
	return &Table{
		times:   append([]int64(nil), times...),
		columns: make(map[string][]string),
	}
}

// TableFor creates a table over the timestamps of a truth trace.
func TableFor(truth *telemetry.Table) *Table {
	times := make([]int64, truth.Len())
	for i := range times {
		times[i] = truth.Time(i)
	}
	return &Table{times: times, columns: make(map[string][]string)}
}

// SetColumn stores the labels of one family. The sequence must cover the
// table timestamps exactly.
func (t *Table) SetColumn(key string, seq identification.ModeSequence) error {
	if key == "" {
		return fmt.Errorf("result key is required")
	}
	if len(seq) != len(t.times) {
		return fmt.Errorf("%s: %d labels for %d timestamps", key, len(seq), len(t.times))
	}
	for i, entry := range seq {
		if entry.Time != t.times[i] {
			return fmt.Errorf("%s: row %d is at %d ns, table expects %d ns", key, i, entry.Time, t.times[i])
		}
	}
	if _, exists := t.columns[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.columns[key] = seq.Labels()
	return nil
}

// Keys returns the result keys in insertion order.
func (t *Table) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.times)
}

// Times returns a copy of the row timestamps.
func (t *Table) Times() []int64 {
	return append([]int64(nil), t.times...)
}

// Column returns the labels of one key.
func (t *Table) Column(key string) ([]string, bool) {
	col, ok := t.columns[key]
	return col, ok
}

// Sequence rebuilds the mode sequence of one key.
func (t *Table) Sequence(key string) (identification.ModeSequence, bool) {
	col, ok := t.columns[key]
	if !ok {
		return nil, false
	}
	seq := make(identification.ModeSequence, len(col))
	for i, label := range col {
		seq[i] = identification.ModeEntry{Time: t.times[i], Label: label}
	}
	return seq, true
}

// WriteCSV writes <dir>/<exampleID>.csv and returns its path.
func (t *Table) WriteCSV(dir, exampleID string) (path string, err error) {
	if exampleID == "" {
		return "", fmt.Errorf("example id is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	path = filepath.Join(dir, exampleID+".csv")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create results file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close results file: %w", cerr)
		}
	}()

	if err := t.Write(file); err != nil {
		return "", err
	}
	return path, nil
}

// Write encodes the table as CSV with a "Time (ns)" index column.
func (t *Table) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	header := append([]string{telemetry.TimeColumn}, t.keys...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write results header: %w", err)
	}
	record := make([]string, len(header))
	for i, ts := range t.times {
		record[0] = strconv.FormatInt(ts, 10)
		for j, key := range t.keys {
			record[j+1] = t.columns[key][i]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write results row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// LoadCSV reads a results file written by WriteCSV.
func LoadCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("results file %s is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read results header: %w", err)
	}
	if first := strings.TrimSpace(header[0]); first != telemetry.TimeColumn && first != "" {
		return nil, fmt.Errorf("results file %s: first column %q is not %q", path, header[0], telemetry.TimeColumn)
	}

	table := &Table{keys: append([]string(nil), header[1:]...), columns: make(map[string][]string)}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read results row: %w", err)
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse results timestamp %q: %w", record[0], err)
		}
		table.times = append(table.times, ts)
		for j, key := range table.keys {
			table.columns[key] = append(table.columns[key], record[j+1])
		}
	}
	return table, nil
}
