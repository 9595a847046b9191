package faultreplay

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/attribution"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/simdb"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/telemetry"
)

// Layout is where WriteDatabase placed the generated files.
type Layout struct {
	SimDir    string
	TruthPath string
	FaultsLog string
}

// WriteDatabase writes <root>/sims/<mode>/telemetry.csv and
// <root>/truth/<example>/{telemetry.csv,faults.csv}.
func WriteDatabase(root string, db *Database) (Layout, error) {
	layout := Layout{
		SimDir:    filepath.Join(root, "sims"),
		TruthPath: filepath.Join(root, "truth", db.ExampleID, simdb.TelemetryFile),
		FaultsLog: filepath.Join(root, "truth", db.ExampleID, attribution.FaultsFile),
	}
	for _, m := range db.Modes {
		if err := telemetry.WriteCSV(filepath.Join(layout.SimDir, m.Dir, simdb.TelemetryFile), m.Table); err != nil {
			return Layout{}, fmt.Errorf("write simulation %s: %w", m.Dir, err)
		}
	}
	if err := telemetry.WriteCSV(layout.TruthPath, db.Truth); err != nil {
		return Layout{}, fmt.Errorf("write truth: %w", err)
	}
	if err := writeFaultLog(layout.FaultsLog, db.Faults); err != nil {
		return Layout{}, err
	}
	return layout, nil
}

func writeFaultLog(path string, events []attribution.FaultEvent) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create fault log: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close fault log: %w", cerr)
		}
	}()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"", "name", "message", "time [s]"}); err != nil {
		return fmt.Errorf("write fault log header: %w", err)
	}
	for i, ev := range events {
		record := []string{strconv.Itoa(i), ev.Name, ev.Message, strconv.FormatFloat(ev.TimeS, 'g', -1, 64)}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write fault log row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
