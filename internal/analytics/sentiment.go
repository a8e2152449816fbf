// Package analytics provides read-only market context: crowd sentiment from
// the alternative.me Fear & Greed index and statistics over historical trade
// data. Nothing here places orders.
package analytics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"tranche/internal/logger"

	"github.com/tidwall/gjson"
)

const (
	sentimentErrorBackoff   = 2 * time.Minute
	sentimentFallbackUpdate = 12 * time.Hour
)

// SentimentPoint is one daily index reading.
type SentimentPoint struct {
	Value          int       `json:"value"`
	Classification string    `json:"classification"`
	Timestamp      time.Time `json:"timestamp"`
}

// SentimentSignal is the advisory read of the current index level. It never
// drives order placement.
type SentimentSignal struct {
	Signal     string `json:"signal"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
	RiskLevel  string `json:"risk_level"`
}

// SentimentTrend summarizes the recent window of readings.
type SentimentTrend struct {
	PeriodDays int     `json:"period_days"`
	Average    float64 `json:"average"`
	Min        int     `json:"min"`
	Max        int     `json:"max"`
	StdDev     float64 `json:"std_dev"`
	Direction  string  `json:"direction"`
}

// SentimentData is the cached snapshot served to callers.
type SentimentData struct {
	Value          int              `json:"value"`
	Classification string           `json:"classification"`
	Timestamp      time.Time        `json:"timestamp"`
	History        []SentimentPoint `json:"history"`
	Trend          SentimentTrend   `json:"trend"`
	Signal         SentimentSignal  `json:"signal"`
	LastUpdate     time.Time        `json:"last_update"`
	Error          string           `json:"error,omitempty"`
}

// SentimentService fetches and caches the Fear & Greed index. Fetches are
// lazy: callers invoke RefreshIfStale before Get, and failures back off
// instead of hammering the endpoint.
type SentimentService struct {
	endpoint string
	client   *http.Client

	mu         sync.RWMutex
	data       SentimentData
	nextUpdate time.Time
	refreshMu  sync.Mutex
}

func NewSentimentService(endpoint string) *SentimentService {
	return &SentimentService{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Get returns the cached snapshot and whether a fetch has completed yet.
func (s *SentimentService) Get() (SentimentData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data, !s.data.LastUpdate.IsZero()
}

// RefreshIfStale fetches fresh data when the cached snapshot has expired.
// Concurrent callers coalesce into a single fetch.
func (s *SentimentService) RefreshIfStale(ctx context.Context) {
	now := time.Now()
	s.mu.RLock()
	next := s.nextUpdate
	last := s.data.LastUpdate
	s.mu.RUnlock()
	if !last.IsZero() && now.Before(next) {
		return
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.RLock()
	next = s.nextUpdate
	last = s.data.LastUpdate
	s.mu.RUnlock()
	if !last.IsZero() && now.Before(next) {
		return
	}
	if err := s.refresh(ctx); err != nil {
		logger.Warnf("sentiment refresh failed: %v", err)
	}
}

func (s *SentimentService) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		s.setError(err)
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		s.setError(err)
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("unexpected status %s", resp.Status)
		s.setError(err)
		return err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		s.setError(err)
		return err
	}

	data, next, err := parseSentimentPayload(body, time.Now())
	if err != nil {
		s.setError(err)
		return err
	}
	s.setData(data, next)
	return nil
}

func parseSentimentPayload(body []byte, now time.Time) (SentimentData, time.Time, error) {
	root := gjson.ParseBytes(body)
	if meta := root.Get("metadata.error"); meta.Exists() && meta.Type != gjson.Null {
		return SentimentData{}, time.Time{}, fmt.Errorf("api error: %s", meta.String())
	}
	items := root.Get("data").Array()
	if len(items) == 0 {
		return SentimentData{}, time.Time{}, fmt.Errorf("api data empty")
	}

	points := make([]SentimentPoint, 0, len(items))
	for _, item := range items {
		value := item.Get("value")
		if !value.Exists() || strings.TrimSpace(value.String()) == "" {
			continue
		}
		var ts time.Time
		if sec := item.Get("timestamp").Int(); sec > 0 {
			ts = time.Unix(sec, 0).UTC()
		}
		points = append(points, SentimentPoint{
			Value:          int(value.Int()),
			Classification: strings.TrimSpace(item.Get("value_classification").String()),
			Timestamp:      ts,
		})
	}
	if len(points) == 0 {
		return SentimentData{}, time.Time{}, fmt.Errorf("api data invalid")
	}

	next := now.Add(sentimentFallbackUpdate)
	if secs := items[0].Get("time_until_update").Int(); secs > 0 {
		next = now.Add(time.Duration(secs) * time.Second)
	}

	latest := points[0]
	data := SentimentData{
		Value:          latest.Value,
		Classification: latest.Classification,
		Timestamp:      latest.Timestamp,
		History:        points,
		Trend:          sentimentTrend(points),
		Signal:         sentimentSignal(latest.Value),
		LastUpdate:     now,
	}
	return data, next, nil
}

// sentimentTrend summarizes the fetched window. History arrives newest first,
// so the slope is computed over the reversed series.
func sentimentTrend(points []SentimentPoint) SentimentTrend {
	trend := SentimentTrend{
		PeriodDays: len(points),
		Min:        points[0].Value,
		Max:        points[0].Value,
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[len(points)-1-i] = float64(p.Value)
		if p.Value < trend.Min {
			trend.Min = p.Value
		}
		if p.Value > trend.Max {
			trend.Max = p.Value
		}
	}
	trend.Average = mean(values)
	trend.StdDev = stdDev(values, trend.Average)
	trend.Direction = trendDirection(slope(values))
	return trend
}

func trendDirection(s float64) string {
	switch {
	case s > 1:
		return "Strongly Improving"
	case s > 0.5:
		return "Improving"
	case s > -0.5:
		return "Stable"
	case s > -1:
		return "Declining"
	default:
		return "Strongly Declining"
	}
}

// sentimentSignal maps the index level onto an advisory signal. Extreme fear
// reads as a contrarian buy, extreme greed as a sell.
func sentimentSignal(value int) SentimentSignal {
	switch {
	case value <= 25:
		confidence := 90 - value*2
		if confidence > 90 {
			confidence = 90
		}
		return SentimentSignal{
			Signal:     "BUY",
			Confidence: confidence,
			Reasoning:  "extreme fear indicates potential oversold conditions",
			RiskLevel:  "HIGH",
		}
	case value <= 45:
		return SentimentSignal{
			Signal:     "WEAK_BUY",
			Confidence: 60,
			Reasoning:  "fear sentiment suggests a potential buying opportunity",
			RiskLevel:  "MEDIUM",
		}
	case value >= 75:
		confidence := value
		if confidence > 90 {
			confidence = 90
		}
		return SentimentSignal{
			Signal:     "SELL",
			Confidence: confidence,
			Reasoning:  "extreme greed indicates potential overbought conditions",
			RiskLevel:  "HIGH",
		}
	case value >= 56:
		return SentimentSignal{
			Signal:     "WEAK_SELL",
			Confidence: 50,
			Reasoning:  "greed sentiment suggests caution",
			RiskLevel:  "MEDIUM",
		}
	default:
		return SentimentSignal{
			Signal:     "NEUTRAL",
			Confidence: 30,
			Reasoning:  "neutral sentiment provides no clear direction",
			RiskLevel:  "LOW",
		}
	}
}

func (s *SentimentService) setError(err error) {
	now := time.Now()
	s.setData(SentimentData{LastUpdate: now, Error: err.Error()}, now.Add(sentimentErrorBackoff))
}

func (s *SentimentService) setData(data SentimentData, next time.Time) {
	s.mu.Lock()
	s.data = data
	s.nextUpdate = next
	s.mu.Unlock()
}
