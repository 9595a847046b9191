package attribution

import (
	"sort"
	"strings"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/identification"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/schema"
)

// Matcher reports whether a label identifies the injected fault.
type Matcher func(label string) bool

// MatchAll matches labels containing every given substring.
func MatchAll(substrings ...string) Matcher {
	return func(label string) bool {
		for _, s := range substrings {
			if !strings.Contains(label, s) {
				return false
			}
		}
		return true
	}
}

// DetectionStats scores whether any fault was flagged. Samples before
// faultTimeNS are negatives and correct only when labelled exactly "Nominal";
// later samples are positives and correct for any other label.
func DetectionStats(seq identification.ModeSequence, faultTimeNS int64) schema.RateReport {
	return score(seq, faultTimeNS,
		func(label string) bool { return label == identification.NominalMode },
		func(label string) bool { return label != identification.NominalMode },
	)
}

// IdentificationStats scores whether the injected fault was named. Negatives
// are correct when the label mentions "Nominal"; positives when match accepts it.
func IdentificationStats(seq identification.ModeSequence, faultTimeNS int64, match Matcher) schema.RateReport {
	return score(seq, faultTimeNS,
		func(label string) bool { return strings.Contains(label, identification.NominalMode) },
		match,
	)
}

// score counts confusion outcomes. Latency is the number of missed positive
// samples before the last correct one.
func score(seq identification.ModeSequence, faultTimeNS int64, negative, positive Matcher) schema.RateReport {
	var r schema.RateReport
	var n, p, missed int
	counts := make(map[string]int)
	for _, entry := range seq {
		if entry.Time < faultTimeNS {
			n++
			if negative(entry.Label) {
				r.TN++
			} else {
				r.FP++
			}
			continue
		}
		p++
		if positive(entry.Label) {
			r.TP++
			r.Latency = missed
		} else {
			r.FN++
			missed++
		}
		counts[entry.Label]++
	}

	if p > 0 {
		r.TPR = float64(r.TP) / float64(p)
		r.FNR = float64(r.FN) / float64(p)
	}
	if n > 0 {
		r.FPR = float64(r.FP) / float64(n)
		r.TNR = float64(r.TN) / float64(n)
	}
	r.Dominant = dominant(counts)
	return r
}

// dominant returns the most frequent label, ties broken alphabetically, or
// "Nominal" when no positive sample exists.
func dominant(counts map[string]int) string {
	if len(counts) == 0 {
		return identification.NominalMode
	}
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	best := labels[0]
	for _, label := range labels[1:] {
		if counts[label] > counts[best] {
			best = label
		}
	}
	return best
}
