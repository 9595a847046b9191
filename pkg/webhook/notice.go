package webhook

import (
	"time"

	"github.com/google/uuid"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/identification"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/results"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/schema"
)

// Notices lists one notice per fault label a run emitted, in family order and
// then by first appearance. Nominal and unknown labels are not notices.
func Notices(summary schema.RunSummary, table *results.Table) []schema.FaultNotice {
	var out []schema.FaultNotice
	for _, fam := range summary.Families {
		seq, ok := table.Sequence(fam.Key)
		if !ok {
			continue
		}
		index := make(map[string]int)
		for _, entry := range seq {
			if entry.Label == identification.NominalMode || entry.Label == identification.UnknownMode {
				continue
			}
			if i, seen := index[entry.Label]; seen {
				out[i].Steps++
				continue
			}
			index[entry.Label] = len(out)
			out = append(out, schema.FaultNotice{
				NoticeID:    noticeID(summary.RunID, fam.Key, entry.Label),
				RunID:       summary.RunID,
				ExampleID:   summary.ExampleID,
				Key:         fam.Key,
				Family:      fam.Family,
				Label:       entry.Label,
				OnsetNS:     entry.Time,
				Steps:       1,
				Persistent:  entry.Label == fam.FinalLabel,
				GeneratedAt: summary.GeneratedAt,
			})
		}
	}
	return out
}

// noticeID is stable for a run, result key and label so receivers can dedupe.
func noticeID(runID, key, label string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mbfid:"+runID+"/"+key+"/"+label)).String()
}

func onsetString(n schema.FaultNotice) string {
	return time.Duration(n.OnsetNS).String()
}
