package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestRecording_NoApplication(t *testing.T) {
	ctx := NewContext(context.Background(), nil)

	assert.NotPanics(t, func() {
		RecordCount(ctx, "count", 1)
		RecordDuration(ctx, "duration", time.Second)
		RecordEvent(ctx, "event", map[string]interface{}{"key": "value"})
	})

	tracer := TraceMethodCall(ctx, "metrics", "Test")
	assert.Nil(t, tracer)
	assert.NotPanics(t, func() {
		tracer.AddAttribute("key", "value")
		tracer.OnError(context.Canceled)
		tracer.End()
	})
}

func TestWrapHTTPHandler_NoApplication(t *testing.T) {
	var called bool
	handler := WrapHTTPHandler(nil, "/test", func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestLatencyMetricName(t *testing.T) {
	assert.Equal(t, "Method/x402/replay/Reserve/Latency", latencyMetricName("x402/replay Reserve"))
}

func TestSummarizeEntry(t *testing.T) {
	entry := logrus.NewEntry(logrus.StandardLogger())
	entry.Message = "failure settling"
	assert.Equal(t, "failure settling", summarizeEntry(entry))

	entry = entry.WithError(errors.New("timeout")).WithField("resource", "flight")
	entry.Message = "failure settling"
	assert.Equal(t, `message="failure settling", error="timeout", data={"resource":"flight"}`, summarizeEntry(entry))

	entry = logrus.NewEntry(logrus.StandardLogger()).WithField("callback", func() {})
	entry.Message = "unserializable"
	assert.Equal(t, `message="unserializable", error=<nil>, data=[callback]`, summarizeEntry(entry))
}
