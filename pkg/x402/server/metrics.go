package server

import (
	"context"
	"time"

	"github.com/code-payments/x402-resource-server/pkg/metrics"
)

const (
	paidRequestEventName       = "X402PaidRequest"
	settlementAnomalyEventName = "X402SettlementAnomaly"

	paidRequestLatencyMetricName = "X402/PaidRequest/Latency"
	outcomeCountMetricPrefix     = "X402/Outcome/"
)

func recordPaidRequestEvent(ctx context.Context, resourceId string, resp *Response, latency time.Duration) {
	metrics.RecordEvent(ctx, paidRequestEventName, map[string]interface{}{
		"resource":    resourceId,
		"outcome":     string(resp.Outcome),
		"reason":      resp.Reason,
		"status_code": resp.StatusCode,
		"latency_ms":  int(latency / time.Millisecond),
	})
	metrics.RecordCount(ctx, outcomeCountMetricPrefix+string(resp.Outcome), 1)
	metrics.RecordDuration(ctx, paidRequestLatencyMetricName, latency)
}

func recordSettlementAnomalyEvent(ctx context.Context, resourceId, key string, err error) {
	metrics.RecordEvent(ctx, settlementAnomalyEventName, map[string]interface{}{
		"resource": resourceId,
		"key":      key,
		"error":    err.Error(),
	})
}
