package analytics

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"tranche/internal/logger"

	"github.com/markcheno/go-talib"
)

const smaPeriod = 20

// TradeRecord is one historical execution loaded from CSV.
type TradeRecord struct {
	Price     float64
	Quantity  float64
	ValueUSD  float64
	Side      string
	Timestamp time.Time
}

// PriceStatistics summarizes executed prices.
type PriceStatistics struct {
	Mean       float64 `json:"mean"`
	Median     float64 `json:"median"`
	StdDev     float64 `json:"std_dev"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Pct25      float64 `json:"pct_25"`
	Pct75      float64 `json:"pct_75"`
	SMA        float64 `json:"sma"`
	Volatility float64 `json:"volatility"`
	TradeCount int     `json:"trade_count"`
}

// VolumeStatistics summarizes executed quantity, split by side.
type VolumeStatistics struct {
	TotalVolume  float64 `json:"total_volume"`
	AvgTradeSize float64 `json:"avg_trade_size"`
	MaxTradeSize float64 `json:"max_trade_size"`
	BuyVolume    float64 `json:"buy_volume"`
	SellVolume   float64 `json:"sell_volume"`
	BuyCount     int     `json:"buy_count"`
	SellCount    int     `json:"sell_count"`
	BuySellRatio float64 `json:"buy_sell_ratio"`
}

// SupportResistance holds clustered price levels below and above the median.
type SupportResistance struct {
	Support    []float64 `json:"support"`
	Resistance []float64 `json:"resistance"`
}

// HistoryInsights is the full analysis served to callers.
type HistoryInsights struct {
	Prices            PriceStatistics   `json:"prices"`
	Volume            VolumeStatistics  `json:"volume"`
	SupportResistance SupportResistance `json:"support_resistance"`
	Recommendations   []string          `json:"recommendations"`
	TotalRecords      int               `json:"total_records"`
}

// HistoryAnalyzer computes statistics over a CSV of past executions. The file
// is loaded once; an empty or missing file yields empty insights.
type HistoryAnalyzer struct {
	records []TradeRecord
}

// LoadHistory reads the CSV at path. Expected columns: price, quantity and
// optionally value_usd, side, timestamp (RFC 3339). Header names are matched
// case-insensitively; rows without a parsable price and quantity are dropped.
func LoadHistory(path string) (*HistoryAnalyzer, error) {
	if strings.TrimSpace(path) == "" {
		return &HistoryAnalyzer{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("history file %s not found, analytics run empty", path)
			return &HistoryAnalyzer{}, nil
		}
		return nil, fmt.Errorf("opening history file failed: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading history file failed: %w", err)
	}
	if len(rows) < 2 {
		return &HistoryAnalyzer{}, nil
	}

	col := make(map[string]int)
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	priceIdx, ok := col["price"]
	if !ok {
		return nil, fmt.Errorf("history file has no price column")
	}
	qtyIdx, ok := col["quantity"]
	if !ok {
		return nil, fmt.Errorf("history file has no quantity column")
	}

	records := make([]TradeRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		price := cell(row, priceIdx)
		qty := cell(row, qtyIdx)
		if price <= 0 || qty <= 0 {
			continue
		}
		rec := TradeRecord{Price: price, Quantity: qty}
		if i, ok := col["value_usd"]; ok {
			rec.ValueUSD = cell(row, i)
		}
		if i, ok := col["side"]; ok && i < len(row) {
			rec.Side = strings.ToUpper(strings.TrimSpace(row[i]))
		}
		if i, ok := col["timestamp"]; ok && i < len(row) {
			if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(row[i])); err == nil {
				rec.Timestamp = ts
			}
		}
		records = append(records, rec)
	}
	logger.Infof("loaded %d historical trade records from %s", len(records), path)
	return &HistoryAnalyzer{records: records}, nil
}

func cell(row []string, idx int) float64 {
	if idx >= len(row) {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
	if err != nil {
		return 0
	}
	return v
}

func (h *HistoryAnalyzer) Empty() bool { return len(h.records) == 0 }

// Insights runs the full analysis.
func (h *HistoryAnalyzer) Insights() HistoryInsights {
	if h.Empty() {
		return HistoryInsights{
			Recommendations: []string{"no historical data available, use standard risk management"},
		}
	}
	prices := h.PriceStatistics()
	volume := h.VolumeStatistics()
	return HistoryInsights{
		Prices:            prices,
		Volume:            volume,
		SupportResistance: h.SupportResistance(),
		Recommendations:   recommendations(prices, volume),
		TotalRecords:      len(h.records),
	}
}

func (h *HistoryAnalyzer) PriceStatistics() PriceStatistics {
	if h.Empty() {
		return PriceStatistics{}
	}
	prices := make([]float64, len(h.records))
	for i, r := range h.records {
		prices[i] = r.Price
	}
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	avg := mean(prices)
	stats := PriceStatistics{
		Mean:       avg,
		Median:     percentile(sorted, 0.5),
		StdDev:     stdDev(prices, avg),
		Min:        sorted[0],
		Max:        sorted[len(sorted)-1],
		Pct25:      percentile(sorted, 0.25),
		Pct75:      percentile(sorted, 0.75),
		TradeCount: len(prices),
	}
	if len(prices) >= smaPeriod {
		smaSeries := talib.Sma(prices, smaPeriod)
		stats.SMA = smaSeries[len(smaSeries)-1]
		devSeries := talib.StdDev(prices, smaPeriod, 1.0)
		if last := devSeries[len(devSeries)-1]; stats.SMA > 0 {
			stats.Volatility = last / stats.SMA
		}
	} else if avg > 0 {
		stats.Volatility = stats.StdDev / avg
	}
	return stats
}

func (h *HistoryAnalyzer) VolumeStatistics() VolumeStatistics {
	if h.Empty() {
		return VolumeStatistics{}
	}
	var stats VolumeStatistics
	for _, r := range h.records {
		stats.TotalVolume += r.Quantity
		if r.Quantity > stats.MaxTradeSize {
			stats.MaxTradeSize = r.Quantity
		}
		switch r.Side {
		case "BUY":
			stats.BuyVolume += r.Quantity
			stats.BuyCount++
		case "SELL":
			stats.SellVolume += r.Quantity
			stats.SellCount++
		}
	}
	stats.AvgTradeSize = stats.TotalVolume / float64(len(h.records))
	if stats.SellCount > 0 {
		stats.BuySellRatio = float64(stats.BuyCount) / float64(stats.SellCount)
	} else if stats.BuyCount > 0 {
		stats.BuySellRatio = math.Inf(1)
	}
	return stats
}

// SupportResistance clusters executed prices into bins and reports the most
// traded levels, split around the median into support (below) and resistance
// (at or above). At most three levels each side.
func (h *HistoryAnalyzer) SupportResistance() SupportResistance {
	prices := make([]float64, len(h.records))
	for i, r := range h.records {
		prices[i] = r.Price
	}
	numBins := len(prices) / 10
	if numBins > 50 {
		numBins = 50
	}
	if numBins < 5 {
		return SupportResistance{}
	}
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi <= lo {
		return SupportResistance{}
	}

	binWidth := (hi - lo) / float64(numBins)
	counts := make([]int, numBins)
	for _, p := range prices {
		idx := int((p - lo) / binWidth)
		if idx >= numBins {
			idx = numBins - 1
		}
		counts[idx]++
	}

	// Keep the top fifth of bins by frequency.
	sortedCounts := append([]int(nil), counts...)
	sort.Ints(sortedCounts)
	threshold := sortedCounts[len(sortedCounts)*4/5]

	median := percentile(sorted, 0.5)
	var out SupportResistance
	for i, c := range counts {
		if c < threshold {
			continue
		}
		level := lo + (float64(i)+0.5)*binWidth
		if level < median {
			out.Support = append(out.Support, level)
		} else {
			out.Resistance = append(out.Resistance, level)
		}
	}
	if len(out.Support) > 3 {
		out.Support = out.Support[len(out.Support)-3:]
	}
	if len(out.Resistance) > 3 {
		out.Resistance = out.Resistance[:3]
	}
	return out
}

func recommendations(prices PriceStatistics, volume VolumeStatistics) []string {
	var recs []string
	if prices.Volatility > 0.1 {
		recs = append(recs, "high volatility detected, consider stop-loss orders and TWAP for large orders")
	} else if prices.Volatility > 0 && prices.Volatility < 0.02 {
		recs = append(recs, "low volatility, grid trading may be effective")
	}
	if volume.BuySellRatio > 1.5 {
		recs = append(recs, "strong buying pressure observed")
	} else if volume.BuySellRatio > 0 && volume.BuySellRatio < 0.67 {
		recs = append(recs, "strong selling pressure observed")
	}
	if len(recs) == 0 {
		recs = append(recs, "no strong pattern detected, use standard risk management")
	}
	return recs
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64, avg float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - avg
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// percentile interpolates linearly over a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

// slope is the least-squares slope of values over their index.
func slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
