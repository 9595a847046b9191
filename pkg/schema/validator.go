package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed contracts/*.schema.json
var contracts embed.FS

// Embedded contract names.
const (
	RunSummarySchema       = "contracts/run-summary.schema.json"
	EvaluationReportSchema = "contracts/evaluation-report.schema.json"
	ToolkitConfigSchema    = "contracts/toolkit-config.schema.json"
)

// Contracts lists the embedded contract names.
func Contracts() []string {
	return []string{RunSummarySchema, EvaluationReportSchema, ToolkitConfigSchema}
}

// CompileContracts checks that every embedded contract is a valid schema.
func CompileContracts() error {
	for _, name := range Contracts() {
		data, err := contracts.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read embedded schema %s: %w", name, err)
		}
		if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data)); err != nil {
			return fmt.Errorf("compile schema %s: %w", name, err)
		}
	}
	return nil
}

// ValidateAgainstSchema validates an arbitrary payload against a JSON schema file.
func ValidateAgainstSchema(schemaPath string, payload interface{}) error {
	schemaBytes, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("read schema %s: %w", schemaPath, err)
	}
	return validate(schemaBytes, payload)
}

// ValidateRunSummary validates a summary against the embedded contract.
func ValidateRunSummary(summary RunSummary) error {
	return ValidateContract(RunSummarySchema, summary)
}

// ValidateEvaluationReports validates a report list against the embedded contract.
func ValidateEvaluationReports(reports []EvaluationReport) error {
	return ValidateContract(EvaluationReportSchema, reports)
}

// ValidateContract validates any payload against a named embedded contract.
func ValidateContract(name string, payload interface{}) error {
	schemaBytes, err := contracts.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read embedded schema %s: %w", name, err)
	}
	return validate(schemaBytes, payload)
}

func validate(schemaBytes []byte, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewBytesLoader(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	errors := make([]string, 0, len(result.Errors()))
	for _, issue := range result.Errors() {
		errors = append(errors, issue.String())
	}
	return fmt.Errorf("payload failed schema validation: %s", strings.Join(errors, "; "))
}
