package semconv

// Span and metric attribute names shared by the identification pipeline.
const (
	AttrExampleID        = "mbfid.example.id"
	AttrFamily           = "mbfid.family"
	AttrFamilyDimension  = "mbfid.family.dimension"
	AttrHypothesisCount  = "mbfid.hypothesis.count"
	AttrGateThreshold    = "mbfid.gate.threshold"
	AttrGateNormalize    = "mbfid.gate.normalization"
	AttrTruthRows        = "mbfid.truth.rows"
	AttrUnknownSteps     = "mbfid.result.unknown_steps"
	AttrDegenerateSteps  = "mbfid.result.degenerate_steps"
	AttrModeTransitions  = "mbfid.result.transitions"
	AttrFinalLabel       = "mbfid.result.final_label"
	AttrSkippedFamilies  = "mbfid.run.skipped_families"
	AttrDatabaseDir      = "mbfid.simdb.dir"
)

// TracerName is the instrumentation scope used for all pipeline spans.
const TracerName = "mbfid/identification"
