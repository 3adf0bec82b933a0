package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestStorekeepAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "storekeep.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read alert file: %v", err)
	}

	var spec alertSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		t.Fatalf("failed to unmarshal alert file: %v", err)
	}
	if len(spec.Groups) != 1 || spec.Groups[0].Name != "storekeep" {
		t.Fatalf("expected a single storekeep group, got %+v", spec.Groups)
	}

	expected := map[string]struct {
		severity string
		metric   string
	}{
		"HighErrorRate":                  {severity: "critical", metric: "storekeep_http_requests_total"},
		"TransactionPersistenceFailures": {severity: "critical", metric: "storekeep_transactions_recorded_total"},
		"JobFailures":                    {severity: "warning", metric: "storekeep_jobs_failures_total"},
	}

	rules := spec.Groups[0].Rules
	if len(rules) != len(expected) {
		t.Fatalf("expected %d rules, got %d", len(expected), len(rules))
	}
	for _, rule := range rules {
		want, ok := expected[rule.Alert]
		if !ok {
			t.Fatalf("unexpected rule %q", rule.Alert)
		}
		if rule.Labels["severity"] != want.severity {
			t.Fatalf("rule %s severity mismatch: %s", rule.Alert, rule.Labels["severity"])
		}
		if !strings.Contains(rule.Expr, want.metric) {
			t.Fatalf("rule %s must query %s: %s", rule.Alert, want.metric, rule.Expr)
		}
		if !strings.HasPrefix(rule.Annotations["runbook"], "docs/runbook.md#") {
			t.Fatalf("rule %s runbook mismatch: %s", rule.Alert, rule.Annotations["runbook"])
		}
		if rule.Annotations["summary"] == "" || rule.Annotations["description"] == "" {
			t.Fatalf("rule %s must include summary and description annotations", rule.Alert)
		}
		if rule.For == "" {
			t.Fatalf("rule %s must define a hold duration", rule.Alert)
		}
	}
}
