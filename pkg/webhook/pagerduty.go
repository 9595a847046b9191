package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/schema"
)

// PagerDuty Events API v2 payload.
type pagerDutyPayload struct {
	RoutingKey  string         `json:"routing_key"`
	EventAction string         `json:"event_action"`
	DedupKey    string         `json:"dedup_key"`
	Payload     pdEventPayload `json:"payload"`
}

type pdEventPayload struct {
	Summary       string            `json:"summary"`
	Source        string            `json:"source"`
	Severity      string            `json:"severity"`
	Timestamp     string            `json:"timestamp"`
	Component     string            `json:"component"`
	Group         string            `json:"group"`
	CustomDetails map[string]string `json:"custom_details"`
}

// BuildPagerDutyPayload formats a FaultNotice as a PagerDuty Events v2 trigger.
// Faults still identified at the end of the trace are critical.
func BuildPagerDutyPayload(n schema.FaultNotice) ([]byte, string, error) {
	severity := "warning"
	if n.Persistent {
		severity = "critical"
	}

	payload := pagerDutyPayload{
		EventAction: "trigger",
		DedupKey:    n.NoticeID,
		Payload: pdEventPayload{
			Summary:   fmt.Sprintf("[%s] %s identified at %s", n.ExampleID, n.Label, onsetString(n)),
			Source:    fmt.Sprintf("mbfid/%s", n.ExampleID),
			Severity:  severity,
			Timestamp: n.GeneratedAt.Format("2006-01-02T15:04:05.000+0000"),
			Component: n.Family,
			Group:     n.Key,
			CustomDetails: map[string]string{
				"run_id":     n.RunID,
				"label":      n.Label,
				"onset_ns":   fmt.Sprintf("%d", n.OnsetNS),
				"steps":      fmt.Sprintf("%d", n.Steps),
				"persistent": fmt.Sprintf("%t", n.Persistent),
			},
		},
	}

	data, err := json.Marshal(payload)
	return data, "application/json", err
}
