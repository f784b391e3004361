package alert

import (
	"fmt"

	"github.com/auto-dns/docker-metrics-stream/internal/config"
	"github.com/auto-dns/docker-metrics-stream/internal/domain"
)

type comparison func(value, threshold float64) bool

var operators = map[string]comparison{
	">":  func(v, t float64) bool { return v > t },
	">=": func(v, t float64) bool { return v >= t },
	"<":  func(v, t float64) bool { return v < t },
	"<=": func(v, t float64) bool { return v <= t },
	"==": func(v, t float64) bool { return v == t },
}

type rule struct {
	name      string
	metric    string
	compare   comparison
	threshold float64
	severity  domain.Severity
}

// ThresholdEvaluator raises an alert for every rule whose metric crosses its threshold.
type ThresholdEvaluator struct {
	rules []rule
}

// NewThresholdEvaluator compiles the configured rules. Rule metrics are matched against sanitized keys.
func NewThresholdEvaluator(cfg *config.AlertsConfig) (*ThresholdEvaluator, error) {
	rules := make([]rule, 0, len(cfg.Rules))
	for i, r := range cfg.Rules {
		op := r.Operator
		if op == "" {
			op = ">"
		}
		compare, ok := operators[op]
		if !ok {
			return nil, fmt.Errorf("alert rule %d: unsupported operator %q", i, r.Operator)
		}
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("%s%s%g", r.Metric, op, r.Threshold)
		}
		rules = append(rules, rule{
			name:      name,
			metric:    domain.SanitizeMetricKey(r.Metric),
			compare:   compare,
			threshold: r.Threshold,
			severity:  parseSeverity(r.Severity),
		})
	}
	return &ThresholdEvaluator{rules: rules}, nil
}

// Check evaluates every rule against m. Rules whose metric is missing or not numeric are skipped.
func (e *ThresholdEvaluator) Check(m domain.Metrics) ([]domain.Alert, error) {
	alerts := []domain.Alert{}
	for _, r := range e.rules {
		v, ok := m.Float(r.metric)
		if !ok || !r.compare(v, r.threshold) {
			continue
		}
		alerts = append(alerts, domain.Alert{
			Rule:      r.name,
			Metric:    r.metric,
			Value:     v,
			Threshold: r.threshold,
			Severity:  r.severity,
		})
	}
	return alerts, nil
}

func parseSeverity(s string) domain.Severity {
	switch domain.Severity(s) {
	case domain.SeverityInfo, domain.SeverityCritical:
		return domain.Severity(s)
	default:
		return domain.SeverityWarning
	}
}
