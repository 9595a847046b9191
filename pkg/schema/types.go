package schema

import "time"

// RunSummary is the machine-readable record of one identification run.
type RunSummary struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	ExampleID   string          `json:"example_id"`
	TruthPath   string          `json:"truth_path"`
	SimDir      string          `json:"sim_dir"`
	Steps       int             `json:"steps"`
	ResultsPath string          `json:"results_path,omitempty"`
	Families    []FamilySummary `json:"families"`
	Skipped     []string        `json:"skipped_families,omitempty"`
}

// FamilySummary describes the run of one fault family.
type FamilySummary struct {
	Key             string         `json:"key"`
	Family          string         `json:"family"`
	Dimension       int            `json:"dimension"`
	Threshold       float64        `json:"threshold"`
	Normalization   string         `json:"normalization"`
	Hypotheses      []string       `json:"hypotheses"`
	LabelCounts     map[string]int `json:"label_counts"`
	UnknownSteps    int            `json:"unknown_steps"`
	DegenerateSteps int            `json:"degenerate_steps"`
	Transitions     int            `json:"transitions"`
	FinalLabel      string         `json:"final_label"`
}

// EvaluationReport is the post-hoc statistics record of one example and family.
type EvaluationReport struct {
	ExampleID      string     `json:"example_id"`
	Key            string     `json:"key"`
	TrueFault      string     `json:"true_fault"`
	FaultTimeNS    int64      `json:"fault_time_ns"`
	Detection      RateReport `json:"detection"`
	Identification RateReport `json:"identification"`
	Correct        bool       `json:"correct"`
}

// RateReport carries the confusion counts and rates of one statistic.
type RateReport struct {
	TP       int     `json:"tp"`
	TN       int     `json:"tn"`
	FP       int     `json:"fp"`
	FN       int     `json:"fn"`
	TPR      float64 `json:"tpr"`
	FNR      float64 `json:"fnr"`
	FPR      float64 `json:"fpr"`
	TNR      float64 `json:"tnr"`
	Latency  int     `json:"latency_steps"`
	Dominant string  `json:"dominant_label"`
}

// FaultNotice announces a fault identified by a run.
type FaultNotice struct {
	NoticeID    string    `json:"notice_id"`
	RunID       string    `json:"run_id"`
	ExampleID   string    `json:"example_id"`
	Key         string    `json:"key"`
	Family      string    `json:"family"`
	Label       string    `json:"label"`
	OnsetNS     int64     `json:"onset_ns"`
	Steps       int       `json:"steps"`
	Persistent  bool      `json:"persistent"`
	GeneratedAt time.Time `json:"generated_at"`
}
