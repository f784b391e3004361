package collector

import "fmt"

// WorkloadMetricsError means one workload's metrics could not be fetched or decoded.
// The workload is left out of the batch; the others are unaffected.
type WorkloadMetricsError struct {
	Workload string
	Endpoint string
	Err      error
}

func (e *WorkloadMetricsError) Error() string {
	return fmt.Sprintf("fetch metrics for %s from %s: %v", e.Workload, e.Endpoint, e.Err)
}

func (e *WorkloadMetricsError) Unwrap() error {
	return e.Err
}

func NewWorkloadMetricsError(workload, endpoint string, err error) *WorkloadMetricsError {
	return &WorkloadMetricsError{Workload: workload, Endpoint: endpoint, Err: err}
}

// AlertEvaluationError means the alert evaluator failed, panicked or timed out for one snapshot.
// The snapshot is still part of the batch.
type AlertEvaluationError struct {
	Workload string
	Err      error
}

func (e *AlertEvaluationError) Error() string {
	return fmt.Sprintf("evaluate alerts for %s: %v", e.Workload, e.Err)
}

func (e *AlertEvaluationError) Unwrap() error {
	return e.Err
}

func NewAlertEvaluationError(workload string, err error) *AlertEvaluationError {
	return &AlertEvaluationError{Workload: workload, Err: err}
}
