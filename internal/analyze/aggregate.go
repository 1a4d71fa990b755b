package analyze

import (
	"sort"
	"time"
)

// TypeMetrics is the per-item-type slice of the overall metrics.
type TypeMetrics struct {
	Total           int
	Responded       int
	WithinOneDay    int
	RespondedRate   float64
	WithinOneDayPct float64
}

// DurationStats are descriptive statistics over response durations in hours.
type DurationStats struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	Median float64
}

// OverallMetrics is the run-level aggregate across all records.
type OverallMetrics struct {
	Issues TypeMetrics
	Pulls  TypeMetrics
	Hours  DurationStats
}

// WeeklySummary is the aggregate for one creation week. Weeks exist only when
// at least one record falls in them.
type WeeklySummary struct {
	WeekStart       time.Time
	Total           int
	WithinOneDay    int
	WithinOneDayPct float64
}

// Overall partitions records by type and computes counts, rates, and duration
// statistics. Empty partitions yield 0 rates, never NaN.
func Overall(records []*Record) OverallMetrics {
	metrics := OverallMetrics{}
	var hours []float64
	for _, record := range records {
		target := &metrics.Issues
		if record.Type == TypePull {
			target = &metrics.Pulls
		}
		target.Total++
		if record.Responded() {
			target.Responded++
			if record.WithinOneDay {
				target.WithinOneDay++
			}
		}
		if record.Hours != nil {
			hours = append(hours, *record.Hours)
		}
	}

	finalizeRates(&metrics.Issues)
	finalizeRates(&metrics.Pulls)
	metrics.Hours = durationStats(hours)
	return metrics
}

// Weekly groups records by creation week, ordered ascending by week start.
func Weekly(records []*Record) []WeeklySummary {
	byWeek := make(map[time.Time]*WeeklySummary)
	for _, record := range records {
		summary, ok := byWeek[record.WeekStart]
		if !ok {
			summary = &WeeklySummary{WeekStart: record.WeekStart}
			byWeek[record.WeekStart] = summary
		}
		summary.Total++
		if record.WithinOneDay {
			summary.WithinOneDay++
		}
	}

	summaries := make([]WeeklySummary, 0, len(byWeek))
	for _, summary := range byWeek {
		summary.WithinOneDayPct = percentage(summary.WithinOneDay, summary.Total)
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].WeekStart.Before(summaries[j].WeekStart)
	})
	return summaries
}

func finalizeRates(metrics *TypeMetrics) {
	metrics.RespondedRate = percentage(metrics.Responded, metrics.Total)
	metrics.WithinOneDayPct = percentage(metrics.WithinOneDay, metrics.Total)
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func durationStats(hours []float64) DurationStats {
	if len(hours) == 0 {
		return DurationStats{}
	}

	sorted := make([]float64, len(hours))
	copy(sorted, hours)
	sort.Float64s(sorted)

	sum := 0.0
	for _, value := range sorted {
		sum += value
	}

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return DurationStats{
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   sum / float64(len(sorted)),
		Median: median,
	}
}
