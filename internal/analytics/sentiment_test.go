package analytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
  "name": "Fear and Greed Index",
  "data": [
    {"value": "20", "value_classification": "Extreme Fear", "timestamp": "1756598400", "time_until_update": "3600"},
    {"value": "25", "value_classification": "Extreme Fear", "timestamp": "1756512000"},
    {"value": "31", "value_classification": "Fear", "timestamp": "1756425600"}
  ],
  "metadata": {"error": null}
}`

func TestParseSentimentPayload(t *testing.T) {
	now := time.Now()
	data, next, err := parseSentimentPayload([]byte(samplePayload), now)
	require.NoError(t, err)

	assert.Equal(t, 20, data.Value)
	assert.Equal(t, "Extreme Fear", data.Classification)
	assert.Len(t, data.History, 3)
	assert.Equal(t, 31, data.History[2].Value)
	assert.Equal(t, now.Add(time.Hour), next)

	// Latest reading of 20 sits in the extreme fear band.
	assert.Equal(t, "BUY", data.Signal.Signal)
	assert.Equal(t, "HIGH", data.Signal.RiskLevel)

	// Values fall 31 -> 25 -> 20 oldest to newest.
	assert.Equal(t, "Strongly Declining", data.Trend.Direction)
	assert.Equal(t, 20, data.Trend.Min)
	assert.Equal(t, 31, data.Trend.Max)
	assert.InDelta(t, 25.33, data.Trend.Average, 0.01)
}

func TestParseSentimentPayloadErrors(t *testing.T) {
	_, _, err := parseSentimentPayload([]byte(`{"data": [], "metadata": {"error": null}}`), time.Now())
	assert.Error(t, err)

	_, _, err = parseSentimentPayload([]byte(`{"data": [{"value": "1"}], "metadata": {"error": "rate limited"}}`), time.Now())
	assert.ErrorContains(t, err, "rate limited")

	_, _, err = parseSentimentPayload([]byte(`not json`), time.Now())
	assert.Error(t, err)
}

func TestSentimentSignalBands(t *testing.T) {
	tests := []struct {
		value  int
		signal string
		risk   string
	}{
		{10, "BUY", "HIGH"},
		{25, "BUY", "HIGH"},
		{30, "WEAK_BUY", "MEDIUM"},
		{45, "WEAK_BUY", "MEDIUM"},
		{50, "NEUTRAL", "LOW"},
		{55, "NEUTRAL", "LOW"},
		{60, "WEAK_SELL", "MEDIUM"},
		{74, "WEAK_SELL", "MEDIUM"},
		{75, "SELL", "HIGH"},
		{95, "SELL", "HIGH"},
	}
	for _, tt := range tests {
		got := sentimentSignal(tt.value)
		assert.Equal(t, tt.signal, got.Signal, "value %d", tt.value)
		assert.Equal(t, tt.risk, got.RiskLevel, "value %d", tt.value)
		assert.Greater(t, got.Confidence, 0, "value %d", tt.value)
	}
}

func TestRefreshIfStaleFetchesOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	svc := NewSentimentService(srv.URL)
	_, ok := svc.Get()
	assert.False(t, ok)

	svc.RefreshIfStale(context.Background())
	data, ok := svc.Get()
	require.True(t, ok)
	assert.Equal(t, 20, data.Value)
	assert.Empty(t, data.Error)

	// Cached: a second call within the update window does not refetch.
	svc.RefreshIfStale(context.Background())
	assert.Equal(t, int32(1), hits.Load())
}

func TestRefreshFailureBacksOff(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc := NewSentimentService(srv.URL)
	svc.RefreshIfStale(context.Background())

	data, ok := svc.Get()
	require.True(t, ok)
	assert.NotEmpty(t, data.Error)
	assert.Zero(t, data.Value)

	// Error result is cached until the backoff passes.
	svc.RefreshIfStale(context.Background())
	assert.Equal(t, int32(1), hits.Load())
}
