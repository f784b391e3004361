package domain

import "fmt"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a rule that matched a snapshot's metrics.
type Alert struct {
	Rule      string   `json:"rule"`
	Metric    string   `json:"metric"`
	Value     float64  `json:"value"`
	Threshold float64  `json:"threshold"`
	Severity  Severity `json:"severity"`
}

func (a Alert) Render() string {
	return fmt.Sprintf("[%s] %s: %s=%g (threshold %g)", a.Severity, a.Rule, a.Metric, a.Value, a.Threshold)
}
