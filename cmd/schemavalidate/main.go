package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/schema"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/toolkitcfg"
)

type check struct {
	name string
	run  func() error
}

var version = "dev"

func main() {
	if len(os.Args) == 2 && (os.Args[1] == "--version" || os.Args[1] == "version") {
		fmt.Println(version)
		return
	}

	configPath := flag.String("config", filepath.Join(projectRoot(), "config", "mbfid.yaml"), "toolkit config to validate")
	summaryPath := flag.String("summary", "", "run summary JSONL to validate")
	reportsPath := flag.String("reports", "", "evaluation reports JSON to validate")
	schemaPath := flag.String("schema", "", "external JSON schema; requires --payload")
	payloadPath := flag.String("payload", "", "JSON document validated against --schema")
	flag.Parse()

	checks := []check{
		{name: "embedded contract compile", run: schema.CompileContracts},
		{name: "contract sample payloads", run: validateContractSamples},
		{name: "toolkit config schema", run: func() error { return validateConfigDocument(*configPath) }},
		{name: "toolkit config loader", run: func() error { return validateConfigLoader(*configPath) }},
	}
	if *summaryPath != "" {
		checks = append(checks, check{name: "run summaries " + *summaryPath, run: func() error { return validateSummaries(*summaryPath) }})
	}
	if *reportsPath != "" {
		checks = append(checks, check{name: "evaluation reports " + *reportsPath, run: func() error { return validateReports(*reportsPath) }})
	}
	if *schemaPath != "" || *payloadPath != "" {
		checks = append(checks, check{name: "external schema", run: func() error { return validateExternal(*schemaPath, *payloadPath) }})
	}

	for _, c := range checks {
		if err := c.run(); err != nil {
			fmt.Fprintf(os.Stderr, "schema validation failed (%s): %v\n", c.name, err)
			os.Exit(1)
		}
		fmt.Printf("ok: %s\n", c.name)
	}
}

func validateContractSamples() error {
	now := time.Now().UTC()
	summary := schema.RunSummary{
		RunID:       uuid.NewString(),
		GeneratedAt: now,
		ExampleID:   "example_1",
		TruthPath:   "truth/example_1/telemetry.csv",
		SimDir:      "sims",
		Steps:       40,
		Families: []schema.FamilySummary{{
			Key:           "CSS_ID",
			Family:        "CSS",
			Dimension:     8,
			Threshold:     1.6,
			Normalization: "none",
			Hypotheses:    []string{"Nominal", "CSS[1] Is Off"},
			LabelCounts:   map[string]int{"Nominal": 30, "CSS[1] Is Off": 10},
			Transitions:   1,
			FinalLabel:    "CSS[1] Is Off",
		}},
	}
	if err := schema.ValidateRunSummary(summary); err != nil {
		return err
	}

	reports := []schema.EvaluationReport{{
		ExampleID:   "example_1",
		Key:         "CSS_ID",
		TrueFault:   "CSS[1] Is Off",
		FaultTimeNS: 10_000_000_000,
		Detection:   schema.RateReport{TP: 30, TN: 10, TPR: 1, TNR: 1, Latency: 1},
		Identification: schema.RateReport{
			TP: 27, FN: 3, TPR: 0.9, FNR: 0.1,
			Dominant: "CSS[1] Is Off",
		},
		Correct: true,
	}}
	return schema.ValidateEvaluationReports(reports)
}

func validateConfigDocument(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read toolkit config %s: %w", path, err)
	}
	var payload interface{}
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse toolkit yaml %s: %w", path, err)
	}
	return schema.ValidateContract(schema.ToolkitConfigSchema, normalizeYAML(payload))
}

func validateConfigLoader(path string) error {
	if _, err := toolkitcfg.Load(path); err != nil {
		return fmt.Errorf("load toolkit config %s: %w", path, err)
	}
	return nil
}

func validateSummaries(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open summaries: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var payload interface{}
		if err := json.Unmarshal(scanner.Bytes(), &payload); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := schema.ValidateContract(schema.RunSummarySchema, payload); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}

func validateReports(path string) error {
	payload, err := readJSON(path)
	if err != nil {
		return err
	}
	return schema.ValidateContract(schema.EvaluationReportSchema, payload)
}

func validateExternal(schemaPath, payloadPath string) error {
	if schemaPath == "" || payloadPath == "" {
		return fmt.Errorf("--schema and --payload must be given together")
	}
	payload, err := readJSON(payloadPath)
	if err != nil {
		return err
	}
	return schema.ValidateAgainstSchema(schemaPath, payload)
}

func readJSON(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var payload interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return payload, nil
}

func normalizeYAML(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, value := range x {
			out[k] = normalizeYAML(value)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, value := range x {
			out[fmt.Sprint(k)] = normalizeYAML(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i := range x {
			out[i] = normalizeYAML(x[i])
		}
		return out
	default:
		return x
	}
}

func projectRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
}
