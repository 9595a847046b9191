package attribution

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// FaultsFile is the fault injection log stored next to a truth trace.
const FaultsFile = "faults.csv"

// FaultEvent is one injected fault of a truth simulation.
type FaultEvent struct {
	Name    string
	Message string
	TimeS   float64
}

// TimeNS returns the injection time in nanoseconds.
func (e FaultEvent) TimeNS() int64 {
	return int64(math.Round(e.TimeS * 1e9))
}

// LoadFaultLog reads the fault injection log of a truth simulation. The file
// carries at least the columns "name", "message" and "time [s]".
func LoadFaultLog(path string) ([]FaultEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fault log: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fault log header: %w", err)
	}

	col := map[string]int{"name": -1, "message": -1, "time [s]": -1}
	for i, h := range header {
		if _, ok := col[strings.TrimSpace(h)]; ok {
			col[strings.TrimSpace(h)] = i
		}
	}
	for name, idx := range col {
		if idx < 0 {
			return nil, fmt.Errorf("fault log %s has no %q column", path, name)
		}
	}

	events := make([]FaultEvent, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read fault log row: %w", err)
		}
		field := func(name string) string {
			if idx := col[name]; idx < len(record) {
				return strings.TrimSpace(record[idx])
			}
			return ""
		}
		ts, err := strconv.ParseFloat(field("time [s]"), 64)
		if err != nil {
			return nil, fmt.Errorf("parse fault time %q: %w", field("time [s]"), err)
		}
		events = append(events, FaultEvent{Name: field("name"), Message: field("message"), TimeS: ts})
	}
	return events, nil
}
