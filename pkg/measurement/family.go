package measurement

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/telemetry"
)

// Family is the configuration record of one fault family: which telemetry
// columns form its measurement vector and how noisy that vector is assumed to be.
type Family struct {
	Slug      string   // config and CLI identifier, e.g. "panel_angle"
	Name      string   // human readable, e.g. "Panel Angle"
	Key       string   // results column, e.g. "PANEL_ANGLE_ID"
	DirMarker string   // substring identifying this family's fault simulation directories
	Columns   []string // measurement columns, in vector order

	// NoiseScale multiplies the identity to form the measurement noise covariance R.
	NoiseScale float64
	// ProcessScale multiplies the identity to form the process covariance Px.
	ProcessScale float64
}

// Dimension returns the measurement dimension d.
func (f Family) Dimension() int {
	return len(f.Columns)
}

// Validate checks that the family can drive an identification run.
func (f Family) Validate() error {
	if f.Slug == "" {
		return fmt.Errorf("family slug is required")
	}
	if f.Dimension() == 0 {
		return fmt.Errorf("family %s has no measurement columns", f.Slug)
	}
	seen := make(map[string]bool, len(f.Columns))
	for _, col := range f.Columns {
		if seen[col] {
			return fmt.Errorf("family %s lists column %q twice", f.Slug, col)
		}
		seen[col] = true
	}
	if f.NoiseScale < 0 || f.ProcessScale < 0 {
		return fmt.Errorf("family %s has a negative covariance scale", f.Slug)
	}
	return nil
}

// Project maps one telemetry row onto the family's measurement vector.
func (f Family) Project(row telemetry.Row) ([]float64, error) {
	out := make([]float64, len(f.Columns))
	for i, col := range f.Columns {
		v, err := row.Value(col)
		if err != nil {
			return nil, fmt.Errorf("project %s measurement: %w", f.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

// MissingColumns lists the family columns the table does not carry.
func (f Family) MissingColumns(table *telemetry.Table) []string {
	var missing []string
	for _, col := range f.Columns {
		if !table.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// WithOverrides returns a copy of f with non-nil scales replaced.
func (f Family) WithOverrides(noiseScale, processScale *float64) Family {
	out := f
	out.Columns = append([]string(nil), f.Columns...)
	if noiseScale != nil {
		out.NoiseScale = *noiseScale
	}
	if processScale != nil {
		out.ProcessScale = *processScale
	}
	return out
}

// Lookup finds a built-in family by slug, result key or display name (case-insensitive).
func Lookup(name string) (Family, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, f := range Builtin() {
		if strings.ToLower(f.Slug) == want || strings.ToLower(f.Key) == want || strings.ToLower(f.Name) == want {
			return f, true
		}
	}
	return Family{}, false
}

// Select resolves a list of family names; an empty list selects every built-in
// family. The result keeps built-in order.
func Select(names []string) ([]Family, error) {
	all := Builtin()
	if len(names) == 0 {
		return all, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		f, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown fault family %q (known: %s)", name, strings.Join(Slugs(), ", "))
		}
		wanted[f.Slug] = true
	}
	out := make([]Family, 0, len(wanted))
	for _, f := range all {
		if wanted[f.Slug] {
			out = append(out, f)
		}
	}
	return out, nil
}

// Slugs lists the built-in family slugs in sorted order.
func Slugs() []string {
	all := Builtin()
	out := make([]string, 0, len(all))
	for _, f := range all {
		out = append(out, f.Slug)
	}
	sort.Strings(out)
	return out
}
