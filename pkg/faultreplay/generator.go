package faultreplay

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/attribution"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/measurement"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/simdb"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/telemetry"
)

// NominalDir is the directory name of the generated nominal simulation.
const NominalDir = "NominalSimulation"

// Options shape a generated database.
type Options struct {
	Steps     int   // truth and trajectory length
	StepNS    int64 // sample period
	OnsetStep int   // first faulty sample
	// Separation is the fault offset in units of the family noise σ.
	Separation float64
	// Truth names the simulation copied as truth; empty selects the nominal one.
	Truth string
	// TruthNoise adds Gaussian noise of TruthNoise·σ to every truth column.
	TruthNoise float64
	Seed       uint64
	ExampleID  string
}

// DefaultOptions returns a two minute trace sampled at 1 Hz with a fault at 60 s.
func DefaultOptions() Options {
	return Options{
		Steps:      120,
		StepNS:     1_000_000_000,
		OnsetStep:  60,
		Separation: 10,
		Seed:       1,
		ExampleID:  "example_1",
	}
}

// Database is a generated simulation database plus a truth example.
type Database struct {
	Modes     []simdb.Mode
	ExampleID string
	TruthDir  string
	Truth     *telemetry.Table
	Faults    []attribution.FaultEvent
}

// variant is one fault simulation of a family.
type variant struct {
	dir     string
	column  int
	sigmas  float64
	event   string
	message string
}

var variants = map[string][]variant{
	"css": {
		{"CssSignalFault.CSSFAULT_OFF.1", 0, -1, "cssSignal", "CSSFAULT_OFF on sensors [1]"},
		{"CssSignalFault.CSSFAULT_STUCK_MAX.2", 1, 2, "cssSignal", "CSSFAULT_STUCK_MAX on sensors [2]"},
		{"CssSignalFault.CSSFAULT_RAND.3", 2, 3, "cssSignal", "CSSFAULT_RAND on sensors [3]"},
	},
	"rw_encoder": {
		{"RwEncoderFault.SIGNAL_OFF.1", 0, -1, "RwEncoder", "SIGNAL_OFF RW1"},
		{"RwEncoderFault.SIGNAL_STUCK.2", 1, 1, "RwEncoder", "SIGNAL_STUCK RW2"},
	},
	"rw_friction": {
		{"RwFrictionFault.10x.1", 0, 2, "RwFriction", "RW1 friction 10x"},
		{"RwFrictionFault.5x.2", 1, 1, "RwFriction", "RW2 friction 5x"},
	},
	"panel_deployment": {
		{"PanelDeploymentFault.0.5", 0, -1, "deployment", "panel stuck at 50%"},
		{"PanelDeploymentFault.0.75", 1, -1, "deployment", "panel stuck at 75%"},
	},
	"panel_angle": {
		{"PanelAngleFault.stuck.0.3", 0, 1, "panelAng", "panel angle stuck near 0.3 rad"},
		{"PanelAngleFault.negative.0.3", 0, -1, "panelAng", "panel angle stuck near -0.3 rad"},
	},
	"panel_efficiency": {
		{"PanelEfficiencyFault.0.7", 0, -1, "panelEfficiency", "efficiency reduced to 70%"},
	},
	"battery_capacity": {
		{"BatteryCapacityFault.0.8", 0, -1, "batteryCapacity", "capacity reduced to 80%"},
	},
	"power_sink": {
		{"PowerSinkFault.1.5", 0, 1, "powerSink", "sink at 150% of nominal"},
		{"PowerSinkFault.0.5", 0, -1, "powerSink", "sink at 50% of nominal"},
	},
}

// levels are typical magnitudes of each telemetry column.
var levels = map[string]float64{
	"css":              0.5,
	"rw_encoder":       100,
	"rw_friction":      0.01,
	"panel_deployment": 1.2,
	"panel_angle":      1.2,
	"panel_efficiency": 10,
	"battery_capacity": 5000,
	"power_sink":       2,
}

// FaultDirs lists the fault simulation directories generated for a family.
func FaultDirs(family measurement.Family) []string {
	vs := variants[family.Slug]
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.dir
	}
	return out
}

// Generate builds a deterministic database covering the given families. Every
// simulation carries the union of the families' columns; a fault simulation
// departs from nominal by Separation·σ on one column after the onset.
func Generate(families []measurement.Family, opts Options) (*Database, error) {
	if len(families) == 0 {
		return nil, fmt.Errorf("at least one family is required")
	}
	if opts.Steps < 1 {
		return nil, fmt.Errorf("steps must be >= 1")
	}
	if opts.StepNS <= 0 {
		return nil, fmt.Errorf("step period must be > 0")
	}
	if opts.OnsetStep < 0 || opts.OnsetStep >= opts.Steps {
		return nil, fmt.Errorf("onset step %d outside [0,%d)", opts.OnsetStep, opts.Steps)
	}
	if opts.Separation <= 0 {
		return nil, fmt.Errorf("separation must be > 0")
	}
	if opts.ExampleID == "" {
		opts.ExampleID = DefaultOptions().ExampleID
	}

	columns, owner := unionColumns(families)
	nominal, err := nominalTable(columns, owner, opts)
	if err != nil {
		return nil, err
	}

	db := &Database{
		ExampleID: opts.ExampleID,
		Modes:     []simdb.Mode{{Dir: NominalDir, Table: nominal}},
	}
	events := map[string]attribution.FaultEvent{}
	for _, family := range families {
		vs, ok := variants[family.Slug]
		if !ok {
			return nil, fmt.Errorf("no fault variants for family %q", family.Slug)
		}
		sigma := math.Sqrt(family.NoiseScale)
		for _, v := range vs {
			col := family.Columns[v.column%family.Dimension()]
			table, err := faultTable(nominal, col, v.sigmas*opts.Separation*sigma, opts.OnsetStep)
			if err != nil {
				return nil, err
			}
			db.Modes = append(db.Modes, simdb.Mode{Dir: v.dir, Table: table})
			events[v.dir] = attribution.FaultEvent{
				Name:    v.event,
				Message: v.message,
				TimeS:   float64(int64(opts.OnsetStep)*opts.StepNS) / 1e9,
			}
		}
	}
	sort.Slice(db.Modes, func(i, j int) bool { return db.Modes[i].Dir < db.Modes[j].Dir })

	truthDir := opts.Truth
	if truthDir == "" {
		truthDir = NominalDir
	}
	var source *telemetry.Table
	for _, m := range db.Modes {
		if m.Dir == truthDir {
			source = m.Table
		}
	}
	if source == nil {
		return nil, fmt.Errorf("truth simulation %q is not part of the database", truthDir)
	}
	db.TruthDir = truthDir
	db.Truth, err = noisyCopy(source, families, opts)
	if err != nil {
		return nil, err
	}
	if ev, ok := events[truthDir]; ok {
		db.Faults = []attribution.FaultEvent{ev}
	}
	return db, nil
}

// unionColumns returns every measurement column once, in family order, and
// the family slug that first claimed it.
func unionColumns(families []measurement.Family) ([]string, map[string]string) {
	owner := make(map[string]string)
	var columns []string
	for _, f := range families {
		for _, col := range f.Columns {
			if _, seen := owner[col]; seen {
				continue
			}
			owner[col] = f.Slug
			columns = append(columns, col)
		}
	}
	return columns, owner
}

func nominalTable(columns []string, owner map[string]string, opts Options) (*telemetry.Table, error) {
	table, err := telemetry.NewTable(columns)
	if err != nil {
		return nil, err
	}
	row := make([]float64, len(columns))
	for k := 0; k < opts.Steps; k++ {
		for c, col := range columns {
			level := levels[owner[col]]
			if level == 0 {
				level = 1
			}
			phase := float64(c) * math.Pi / 7
			row[c] = level * (1 + 0.1*math.Sin(2*math.Pi*float64(k)/float64(opts.Steps)+phase))
		}
		if err := table.Append(int64(k)*opts.StepNS, row); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func faultTable(nominal *telemetry.Table, column string, offset float64, onset int) (*telemetry.Table, error) {
	columns := nominal.Columns()
	target := -1
	for i, c := range columns {
		if c == column {
			target = i
		}
	}
	if target < 0 {
		return nil, fmt.Errorf("column %q not generated", column)
	}
	table, err := telemetry.NewTable(columns)
	if err != nil {
		return nil, err
	}
	row := make([]float64, len(columns))
	for k := 0; k < nominal.Len(); k++ {
		r := nominal.Row(k)
		for i, c := range columns {
			row[i], _ = r.Value(c)
		}
		if k >= onset {
			row[target] += offset
		}
		if err := table.Append(r.Time(), row); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// noisyCopy copies source, adding seeded Gaussian noise scaled per family σ.
func noisyCopy(source *telemetry.Table, families []measurement.Family, opts Options) (*telemetry.Table, error) {
	columns := source.Columns()
	sigma := make([]float64, len(columns))
	if opts.TruthNoise > 0 {
		byColumn := make(map[string]float64)
		for _, f := range families {
			for _, col := range f.Columns {
				if _, ok := byColumn[col]; !ok {
					byColumn[col] = math.Sqrt(f.NoiseScale) * opts.TruthNoise
				}
			}
		}
		for i, col := range columns {
			sigma[i] = byColumn[col]
		}
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	table, err := telemetry.NewTable(columns)
	if err != nil {
		return nil, err
	}
	row := make([]float64, len(columns))
	for k := 0; k < source.Len(); k++ {
		r := source.Row(k)
		for i, c := range columns {
			row[i], _ = r.Value(c)
			if sigma[i] > 0 {
				row[i] += rng.NormFloat64() * sigma[i]
			}
		}
		if err := table.Append(r.Time(), row); err != nil {
			return nil, err
		}
	}
	return table, nil
}
