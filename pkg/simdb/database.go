package simdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/identification"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/measurement"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/telemetry"
)

// TelemetryFile is the trajectory file every simulation directory carries.
const TelemetryFile = "telemetry.csv"

// NominalMarker identifies the nominal simulation directory.
const NominalMarker = "Nominal"

// Mode is one simulated operating mode of the database.
type Mode struct {
	Dir   string // directory name, e.g. "PanelAngleFault.stuck.0.3"
	Path  string
	Table *telemetry.Table
}

// Database is a loaded simulation database, modes sorted by directory name.
type Database struct {
	Root  string
	Modes []Mode
}

// Discover loads every immediate sub-directory of dir as one simulated mode.
func Discover(dir string) (*Database, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read simulation database: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("simulation database %s has no mode directories", dir)
	}
	sort.Strings(names)

	db := &Database{Root: dir, Modes: make([]Mode, 0, len(names))}
	for _, name := range names {
		path := filepath.Join(dir, name, TelemetryFile)
		table, err := telemetry.LoadCSV(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("simulation %s has no %s: %w", name, TelemetryFile, err)
			}
			return nil, err
		}
		db.Modes = append(db.Modes, Mode{Dir: name, Path: path, Table: table})
	}
	return db, nil
}

// Trajectories selects the hypothesis bank of one family: the nominal
// simulation plus every directory carrying the family's marker, named by the
// family's namer. A label produced twice keeps its first position and the
// data of the last directory.
func (db *Database) Trajectories(family measurement.Family, log logrus.FieldLogger) []identification.Trajectory {
	if log == nil {
		log = logrus.StandardLogger()
	}
	namer := NamerFor(family)

	out := make([]identification.Trajectory, 0)
	position := make(map[string]int)
	source := make(map[string]string)
	for _, mode := range db.Modes {
		var label string
		switch {
		case strings.Contains(mode.Dir, family.DirMarker):
			label = namer(mode.Dir)
		case strings.Contains(mode.Dir, NominalMarker):
			label = identification.NominalMode
		default:
			continue
		}

		if idx, dup := position[label]; dup {
			log.WithFields(logrus.Fields{
				"family":    family.Slug,
				"label":     label,
				"directory": mode.Dir,
				"replaces":  source[label],
			}).Warn("duplicate hypothesis label, keeping the later simulation")
			out[idx].Table = mode.Table
			source[label] = mode.Dir
			continue
		}
		position[label] = len(out)
		source[label] = mode.Dir
		out = append(out, identification.Trajectory{Name: label, Table: mode.Table})
	}
	return out
}

// Dirs returns the mode directory names.
func (db *Database) Dirs() []string {
	out := make([]string, len(db.Modes))
	for i, m := range db.Modes {
		out[i] = m.Dir
	}
	return out
}
