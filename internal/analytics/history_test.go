package analytics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHistory(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadHistoryParsesRows(t *testing.T) {
	h, err := LoadHistory(writeHistory(t, `price,quantity,side,timestamp
50000,0.5,BUY,2026-08-01T10:00:00Z
51000,0.25,SELL,2026-08-02T10:00:00Z
bad,0.1,BUY,2026-08-03T10:00:00Z
49000,1.0,buy,2026-08-04T10:00:00Z
`))
	require.NoError(t, err)
	require.False(t, h.Empty())
	// The unparsable price row is dropped.
	assert.Len(t, h.records, 3)
	assert.Equal(t, "BUY", h.records[2].Side)
	assert.False(t, h.records[0].Timestamp.IsZero())
}

func TestLoadHistoryMissingFileIsEmpty(t *testing.T) {
	h, err := LoadHistory(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.True(t, h.Empty())

	h, err = LoadHistory("")
	require.NoError(t, err)
	assert.True(t, h.Empty())
}

func TestLoadHistoryRejectsMissingColumns(t *testing.T) {
	_, err := LoadHistory(writeHistory(t, "open,close\n1,2\n"))
	assert.ErrorContains(t, err, "price")

	_, err = LoadHistory(writeHistory(t, "price,size\n1,2\n"))
	assert.ErrorContains(t, err, "quantity")
}

func TestPriceStatistics(t *testing.T) {
	h, err := LoadHistory(writeHistory(t, `price,quantity,side
100,1,BUY
200,1,SELL
300,1,BUY
400,1,SELL
`))
	require.NoError(t, err)

	stats := h.PriceStatistics()
	assert.Equal(t, 250.0, stats.Mean)
	assert.Equal(t, 250.0, stats.Median)
	assert.Equal(t, 100.0, stats.Min)
	assert.Equal(t, 400.0, stats.Max)
	assert.Equal(t, 4, stats.TradeCount)
	// Fewer rows than the SMA window: volatility falls back to stddev/mean.
	assert.Zero(t, stats.SMA)
	assert.InDelta(t, stats.StdDev/stats.Mean, stats.Volatility, 1e-9)
}

func TestPriceStatisticsUsesSMAOverLongSeries(t *testing.T) {
	var b strings.Builder
	b.WriteString("price,quantity\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "%d,1\n", 100+i)
	}
	h, err := LoadHistory(writeHistory(t, b.String()))
	require.NoError(t, err)

	stats := h.PriceStatistics()
	// SMA(20) over the last window 120..139.
	assert.InDelta(t, 129.5, stats.SMA, 1e-9)
	assert.Greater(t, stats.Volatility, 0.0)
}

func TestVolumeStatistics(t *testing.T) {
	h, err := LoadHistory(writeHistory(t, `price,quantity,side
100,2,BUY
100,1,BUY
100,1,SELL
100,4,BUY
`))
	require.NoError(t, err)

	stats := h.VolumeStatistics()
	assert.Equal(t, 8.0, stats.TotalVolume)
	assert.Equal(t, 2.0, stats.AvgTradeSize)
	assert.Equal(t, 4.0, stats.MaxTradeSize)
	assert.Equal(t, 7.0, stats.BuyVolume)
	assert.Equal(t, 1.0, stats.SellVolume)
	assert.Equal(t, 3.0, stats.BuySellRatio)
}

func TestSupportResistanceClustersAroundTradedLevels(t *testing.T) {
	var b strings.Builder
	b.WriteString("price,quantity\n")
	// Heavy clusters at 100 and 200, thin coverage between.
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "%.2f,1\n", 100+float64(i%3)*0.1)
	}
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "%.2f,1\n", 200+float64(i%3)*0.1)
	}
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "%.2f,1\n", 110+float64(i)*4)
	}
	h, err := LoadHistory(writeHistory(t, b.String()))
	require.NoError(t, err)

	sr := h.SupportResistance()
	require.NotEmpty(t, sr.Support)
	require.NotEmpty(t, sr.Resistance)
	assert.LessOrEqual(t, len(sr.Support), 3)
	assert.LessOrEqual(t, len(sr.Resistance), 3)
	// The dense clusters should surface near 100 and 200.
	assert.InDelta(t, 100, sr.Support[0], 10)
	assert.InDelta(t, 200, sr.Resistance[len(sr.Resistance)-1], 10)
}

func TestInsightsOnEmptyAnalyzer(t *testing.T) {
	h := &HistoryAnalyzer{}
	insights := h.Insights()
	assert.Zero(t, insights.TotalRecords)
	assert.NotEmpty(t, insights.Recommendations)
}

func TestInsightsRecommendations(t *testing.T) {
	high := recommendations(PriceStatistics{Volatility: 0.2}, VolumeStatistics{})
	assert.Contains(t, high[0], "high volatility")

	low := recommendations(PriceStatistics{Volatility: 0.01}, VolumeStatistics{BuySellRatio: 2})
	assert.Len(t, low, 2)

	flat := recommendations(PriceStatistics{Volatility: 0.05}, VolumeStatistics{BuySellRatio: 1})
	assert.Contains(t, flat[0], "standard risk management")
}
