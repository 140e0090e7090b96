package services

import (
	"math"
	"sort"

	"cuentas/internal/core"
)

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

const (
	SeasonalitySeasonal     Seasonality = "seasonal"
	SeasonalityStable       Seasonality = "stable"
	SeasonalityInsufficient Seasonality = "insufficient_data"
)

type (
	Trend       string
	Seasonality string

	// CategoryStats summarizes one category's spending over the rolling
	// analysis window. Monetary figures are float64: the statistics feed
	// heuristics, not ledgers.
	CategoryStats struct {
		Total          float64            `json:"total"`
		Count          int                `json:"count"`
		Mean           float64            `json:"mean"`
		Median         float64            `json:"median"`
		StdDev         float64            `json:"stdDev"`
		Last3MonthsAvg float64            `json:"last3MonthsAvg"`
		Last6MonthsAvg float64            `json:"last6MonthsAvg"`
		Trend          Trend              `json:"trend"`
		Seasonality    Seasonality        `json:"seasonality"`
		MonthlySpend   map[string]float64 `json:"monthlySpend"`
		DistinctMonths int                `json:"distinctMonths"`
	}
)

// Trend compares the recent three-month average against the average of all
// earlier months; moves beyond ±15% count as a trend.
const trendThreshold = 0.15

// Seasonality needs at least this many distinct months and a deviation
// above 30% of the mean.
const (
	seasonalityMinMonths = 6
	seasonalityThreshold = 0.30
)

// AnalyzeSpending computes per-category statistics over the rolling window
// ending at ref. Only computable expenses from non-excluded accounts count,
// keyed by the category's canonical spelling. Absent months are skipped,
// never treated as zero.
func (e *Engine) AnalyzeSpending(snap core.Snapshot, ref core.Month) map[string]CategoryStats {
	txs := dedupTransactions(dropExcludedAccounts(snap.Transactions, snap.ExcludedAccountIDs()))

	windowStart := ref
	for i := 0; i < e.cfg.HistoryMonths-1; i++ {
		windowStart = prevMonth(windowStart)
	}

	type bucket struct {
		amounts []float64
		months  map[core.Month]float64
	}
	buckets := make(map[string]*bucket)

	for _, tx := range txs {
		if tx.Kind != core.Expense || !tx.Computable {
			continue
		}
		m := core.MonthOf(tx.Date)
		if monthBefore(m, windowStart) || monthBefore(ref, m) {
			continue
		}
		key := core.ParseCategory(tx.Category).String()
		b := buckets[key]
		if b == nil {
			b = &bucket{months: make(map[core.Month]float64)}
			buckets[key] = b
		}
		amount := tx.Amount.InexactFloat64()
		b.amounts = append(b.amounts, amount)
		b.months[m] += amount
	}

	stats := make(map[string]CategoryStats, len(buckets))
	for key, b := range buckets {
		s := CategoryStats{
			Count:          len(b.amounts),
			MonthlySpend:   make(map[string]float64, len(b.months)),
			DistinctMonths: len(b.months),
		}
		for _, a := range b.amounts {
			s.Total += a
		}
		s.Mean = s.Total / float64(s.Count)
		s.Median = median(b.amounts)
		s.StdDev = populationStdDev(b.amounts, s.Mean)
		s.Last3MonthsAvg = trailingAverage(b.months, ref, 3)
		s.Last6MonthsAvg = trailingAverage(b.months, ref, 6)
		s.Trend = monthlyTrend(b.months)
		s.Seasonality = seasonality(b.months)
		for m, v := range b.months {
			s.MonthlySpend[m.String()] = v
		}
		stats[key] = s
	}
	return stats
}

func prevMonth(m core.Month) core.Month {
	if m.Month == 1 {
		return core.Month{Year: m.Year - 1, Month: 12}
	}
	return core.Month{Year: m.Year, Month: m.Month - 1}
}

func monthBefore(a, b core.Month) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	return a.Month < b.Month
}

// trailingAverage averages the last n calendar months ending at ref,
// counting only months that actually have spending.
func trailingAverage(months map[core.Month]float64, ref core.Month, n int) float64 {
	var sum float64
	var count int
	m := ref
	for i := 0; i < n; i++ {
		if v, ok := months[m]; ok {
			sum += v
			count++
		}
		m = prevMonth(m)
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// monthlyTrend compares the average of the most recent three observed
// months against the average of all earlier observed months.
func monthlyTrend(months map[core.Month]float64) Trend {
	keys := sortedMonths(months)
	if len(keys) < 2 {
		return TrendStable
	}
	split := len(keys) - 3
	if split <= 0 {
		return TrendStable
	}
	var recent, earlier float64
	for _, m := range keys[split:] {
		recent += months[m]
	}
	recent /= float64(len(keys) - split)
	for _, m := range keys[:split] {
		earlier += months[m]
	}
	earlier /= float64(split)
	if earlier == 0 {
		return TrendStable
	}
	change := (recent - earlier) / earlier
	switch {
	case change > trendThreshold:
		return TrendIncreasing
	case change < -trendThreshold:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func seasonality(months map[core.Month]float64) Seasonality {
	if len(months) < seasonalityMinMonths {
		return SeasonalityInsufficient
	}
	var sum float64
	for _, v := range months {
		sum += v
	}
	mean := sum / float64(len(months))
	if mean == 0 {
		return SeasonalityStable
	}
	var maxDev float64
	for _, v := range months {
		if dev := math.Abs(v-mean) / mean; dev > maxDev {
			maxDev = dev
		}
	}
	if maxDev > seasonalityThreshold {
		return SeasonalitySeasonal
	}
	return SeasonalityStable
}

func sortedMonths(months map[core.Month]float64) []core.Month {
	keys := make([]core.Month, 0, len(months))
	for m := range months {
		keys = append(keys, m)
	}
	sort.Slice(keys, func(i, j int) bool { return monthBefore(keys[i], keys[j]) })
	return keys
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func populationStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
