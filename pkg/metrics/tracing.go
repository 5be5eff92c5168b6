package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// MethodTracer traces a single method call as a segment of the request's
// transaction. A nil tracer is valid and does nothing.
type MethodTracer struct {
	ctx   context.Context
	name  string
	start time.Time

	txn *newrelic.Transaction
	seg *newrelic.Segment
}

// TraceMethodCall starts a segment for a method call. Calls outside of a
// transaction return a nil tracer.
func TraceMethodCall(ctx context.Context, structOrPackageName, methodName string) *MethodTracer {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return nil
	}

	name := structOrPackageName + " " + methodName
	return &MethodTracer{
		ctx:   ctx,
		name:  name,
		start: time.Now(),
		txn:   txn,
		seg:   txn.StartSegment(name),
	}
}

// AddAttribute adds a key-value pair to the segment
func (t *MethodTracer) AddAttribute(key string, value interface{}) {
	t.AddAttributes(map[string]interface{}{key: value})
}

// AddAttributes adds a set of key-value pairs to the segment
func (t *MethodTracer) AddAttributes(attributes map[string]interface{}) {
	if t == nil {
		return
	}

	for key, value := range attributes {
		t.seg.AddAttribute(key, value)
	}
}

// OnError notices err on the transaction and tags the segment with it
func (t *MethodTracer) OnError(err error) {
	if t == nil || err == nil {
		return
	}

	t.seg.AddAttribute("error", err.Error())
	t.txn.NoticeError(err)
}

// End completes the segment and records the call's latency as
// Method/<struct or package>/<method>/Latency
func (t *MethodTracer) End() {
	if t == nil {
		return
	}

	t.seg.End()
	RecordDuration(t.ctx, latencyMetricName(t.name), time.Since(t.start))
}

func latencyMetricName(name string) string {
	return "Method/" + strings.ReplaceAll(name, " ", "/") + "/Latency"
}
