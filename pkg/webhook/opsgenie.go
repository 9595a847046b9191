package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/schema"
)

// Opsgenie Alert API payload.
type opsgeniePayload struct {
	Message     string            `json:"message"`
	Alias       string            `json:"alias"`
	Description string            `json:"description"`
	Priority    string            `json:"priority"`
	Source      string            `json:"source"`
	Tags        []string          `json:"tags"`
	Details     map[string]string `json:"details"`
	Entity      string            `json:"entity"`
}

// BuildOpsgeniePayload formats a FaultNotice as an Opsgenie alert.
func BuildOpsgeniePayload(n schema.FaultNotice) ([]byte, string, error) {
	priority := "P3"
	if n.Persistent {
		priority = "P2"
	}

	payload := opsgeniePayload{
		Message:     fmt.Sprintf("[%s] %s", n.ExampleID, n.Label),
		Alias:       n.NoticeID,
		Description: fmt.Sprintf("Family: %s\nOnset: %s\nSteps: %d\nPersistent: %t", n.Family, onsetString(n), n.Steps, n.Persistent),
		Priority:    priority,
		Source:      "mbfid-toolkit",
		Tags:        []string{"mbfid", n.Family, n.ExampleID},
		Details: map[string]string{
			"run_id":   n.RunID,
			"key":      n.Key,
			"label":    n.Label,
			"onset_ns": fmt.Sprintf("%d", n.OnsetNS),
		},
		Entity: fmt.Sprintf("%s/%s", n.ExampleID, n.Key),
	}

	data, err := json.Marshal(payload)
	return data, "application/json", err
}
