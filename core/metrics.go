package core

import (
	"context"
	"strings"
)

const metricPrefix = "bunq."

// OperationCounterName is the counter recorded once per observed operation,
// tagged with its outcome.
func OperationCounterName(operation string) string {
	return metricPrefix + normalizeOperation(operation) + ".total"
}

// OperationDurationName is the latency histogram of an operation, in
// milliseconds.
func OperationDurationName(operation string) string {
	return metricPrefix + normalizeOperation(operation) + ".duration_ms"
}

// NopMetricsRecorder drops every sample. It is the default recorder.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// operationTags are the low cardinality tags attached to operation metrics:
// the operation, its outcome and the account or card it concerned.
func operationTags(operation, status string, fields map[string]any) map[string]string {
	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range []string{"account_id", "card_id"} {
		value, ok := fields[key].(string)
		if value = strings.TrimSpace(value); ok && value != "" {
			tags[key] = value
		}
	}
	return tags
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
