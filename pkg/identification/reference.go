package identification

import (
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/measurement"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/telemetry"
)

// ReferenceIndex maps a timestamp to the measurement vector a hypothesis expects.
// It is immutable once built.
type ReferenceIndex struct {
	dim    int
	byTime map[int64][]float64
}

// NewReferenceIndex projects every row of a simulated trajectory. A later row
// with the same timestamp replaces an earlier one.
func NewReferenceIndex(family measurement.Family, trajectory *telemetry.Table) (*ReferenceIndex, error) {
	if trajectory == nil || trajectory.Len() == 0 {
		return nil, configErrorf("empty %s trajectory", family.Name)
	}
	if missing := family.MissingColumns(trajectory); len(missing) > 0 {
		return nil, configErrorf("%s trajectory has %d of %d measurement columns, missing %q",
			family.Name, family.Dimension()-len(missing), family.Dimension(), missing)
	}

	byTime := make(map[int64][]float64, trajectory.Len())
	for i := 0; i < trajectory.Len(); i++ {
		row := trajectory.Row(i)
		vec, err := family.Project(row)
		if err != nil {
			return nil, configErrorf("%v", err)
		}
		byTime[row.Time()] = vec
	}
	return &ReferenceIndex{dim: family.Dimension(), byTime: byTime}, nil
}

// Lookup returns the expected vector at an exact timestamp. Callers must not
// modify the returned slice.
func (r *ReferenceIndex) Lookup(timeNS int64) ([]float64, bool) {
	vec, ok := r.byTime[timeNS]
	return vec, ok
}

// Len returns the number of distinct timestamps.
func (r *ReferenceIndex) Len() int {
	return len(r.byTime)
}

// Dimension returns the vector dimension.
func (r *ReferenceIndex) Dimension() int {
	return r.dim
}
