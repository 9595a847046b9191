package identification

const (
	// NominalMode is the distinguished no-fault hypothesis name.
	NominalMode = "Nominal"
	// UnknownMode is emitted when no hypothesis is consistent with the data.
	UnknownMode = "Unknown Mode"
)

// Verdict is one hypothesis' gate outcome for the current step.
type Verdict struct {
	Hypothesis string
	Outcome
}

// ModeArbiter turns the verdicts of one step into a single label. Its only state
// is the previously emitted label.
type ModeArbiter struct {
	last    string
	emitted bool
}

// Decide emits the label for one step. Verdicts must be given in bank order,
// which is also the tie-break order:
//
//   - no consistent hypothesis: UnknownMode
//   - exactly one: that hypothesis
//   - several: the first candidate with the smallest distance, unless the
//     previously emitted label is a candidate at that same distance, in which
//     case the previous label is repeated.
func (a *ModeArbiter) Decide(verdicts []Verdict) string {
	label := a.decide(verdicts)
	a.last = label
	a.emitted = true
	return label
}

func (a *ModeArbiter) decide(verdicts []Verdict) string {
	best := -1
	candidates := 0
	for i, v := range verdicts {
		if !v.Consistent {
			continue
		}
		candidates++
		if best < 0 || v.Distance < verdicts[best].Distance {
			best = i
		}
	}

	switch candidates {
	case 0:
		return UnknownMode
	case 1:
		return verdicts[best].Hypothesis
	}

	if a.emitted {
		for _, v := range verdicts {
			if v.Consistent && v.Hypothesis == a.last && v.Distance == verdicts[best].Distance {
				return a.last
			}
		}
	}
	return verdicts[best].Hypothesis
}

// Last returns the previously emitted label, if any.
func (a *ModeArbiter) Last() (string, bool) {
	return a.last, a.emitted
}

// Reset returns the arbiter to its initial state.
func (a *ModeArbiter) Reset() {
	a.last = ""
	a.emitted = false
}
