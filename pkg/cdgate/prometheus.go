package cdgate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// MetricsThresholds are the pass criteria over identification metrics
// scraped from the mbfid textfile export.
type MetricsThresholds struct {
	MaxUnknownRatio    float64
	MaxDegenerateRatio float64
	MaxRunErrors       float64
}

// PrometheusQuerier abstracts Prometheus instant query API.
type PrometheusQuerier interface {
	Query(ctx context.Context, query string) (float64, error)
}

// HTTPQuerier queries Prometheus via its HTTP API.
type HTTPQuerier struct {
	BaseURL string
	Client  *http.Client
}

// promResponse is the Prometheus instant query JSON envelope.
type promResponse struct {
	Status string   `json:"status"`
	Data   promData `json:"data"`
}

type promData struct {
	ResultType string       `json:"resultType"`
	Result     []promResult `json:"result"`
}

type promResult struct {
	Value [2]interface{} `json:"value"` // [timestamp, "value_string"]
}

// Query executes a Prometheus instant query and returns the scalar result.
func (q *HTTPQuerier) Query(ctx context.Context, query string) (float64, error) {
	u, err := url.Parse(q.BaseURL)
	if err != nil {
		return 0, fmt.Errorf("parse prometheus url: %w", err)
	}
	u.Path = "/api/v1/query"
	u.RawQuery = url.Values{"query": {query}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	client := q.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("prometheus query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("prometheus returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var pr promResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return 0, fmt.Errorf("unmarshal prometheus response: %w", err)
	}
	if pr.Status != "success" {
		return 0, fmt.Errorf("prometheus query status: %s", pr.Status)
	}
	if len(pr.Data.Result) == 0 {
		return 0, fmt.Errorf("prometheus query returned no results for: %s", query)
	}

	valueStr, ok := pr.Data.Result[0].Value[1].(string)
	if !ok {
		return 0, fmt.Errorf("unexpected value type in prometheus result")
	}
	val, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse prometheus value %q: %w", valueStr, err)
	}
	return val, nil
}

// DefaultQueries returns the PromQL query of each metrics gate check.
func DefaultQueries() map[string]string {
	return map[string]string{
		MetricUnknownRatio:    `sum(mbfid_labels_total{label="Unknown Mode"}) / sum(mbfid_steps_total)`,
		MetricDegenerateRatio: `sum(mbfid_degenerate_covariance_total) / sum(mbfid_steps_total * on(family) mbfid_hypotheses)`,
		MetricRunErrors:       `sum(mbfid_run_errors_total) or vector(0)`,
	}
}

// EvaluateMetricsGate queries Prometheus for identification metrics and
// evaluates thresholds.
func EvaluateMetricsGate(ctx context.Context, querier PrometheusQuerier, thresholds MetricsThresholds) Result {
	result := Result{
		Pass:      true,
		Timestamp: time.Now().UTC(),
	}

	queries := DefaultQueries()
	checks := []struct {
		metric    string
		threshold float64
	}{
		{MetricUnknownRatio, thresholds.MaxUnknownRatio},
		{MetricDegenerateRatio, thresholds.MaxDegenerateRatio},
		{MetricRunErrors, thresholds.MaxRunErrors},
	}

	for _, check := range checks {
		val, err := querier.Query(ctx, queries[check.metric])
		if err != nil {
			result.Error = fmt.Sprintf("query %s failed: %v", check.metric, err)
			result.Pass = false
			return result
		}
		if val > check.threshold {
			result.Pass = false
			result.Violations = append(result.Violations, Violation{
				Metric:    check.metric,
				Threshold: check.threshold,
				Actual:    val,
			})
		}
	}
	return result
}
