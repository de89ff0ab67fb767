package report

import (
	"time"

	"hesab/internal/core"
)

// DefaultTrendsWindow is how many months back the trends analysis reaches
// when the caller does not say otherwise.
const DefaultTrendsWindow = 12

// MonthlyFlow is the income and expense total of one month.
type MonthlyFlow struct {
	Income   core.Money `json:"income"`
	Expenses core.Money `json:"expenses"`
}

// MonthGrowth is the month-over-month change of net profit. GrowthRate is
// nil for the first month and for any month whose predecessor netted zero.
type MonthGrowth struct {
	Month      string     `json:"month"`
	NetProfit  core.Money `json:"net_profit"`
	GrowthRate *float64   `json:"growth_rate"`
}

// TrendsReport analyses monthly movement over a trailing window.
type TrendsReport struct {
	MonthlyData    map[string]MonthlyFlow `json:"monthly_data"`
	GrowthRates    []MonthGrowth          `json:"growth_rates"`
	AnalysisPeriod ReportPeriod           `json:"analysis_period"`
}

// Trends buckets the trailing window months of the snapshot monthly and
// derives growth rates of net profit between consecutive months. Months
// without transactions appear with zero flows, keeping the growth sequence
// continuous.
func Trends(s Snapshot, windowMonths int, now time.Time) TrendsReport {
	if windowMonths <= 0 {
		windowMonths = DefaultTrendsWindow
	}
	end := core.DateOf(now)
	start := core.DateOf(now.AddDate(0, -windowMonths, 0))

	var windowed Snapshot
	for _, t := range s {
		if inRange(t.Date, start, end) {
			windowed = append(windowed, t)
		}
	}

	buckets := BucketByPeriod(windowed, core.Monthly)

	monthly := make(map[string]MonthlyFlow, len(buckets))
	growth := make([]MonthGrowth, 0, len(buckets))
	var prev *PeriodBucket
	for i := range buckets {
		b := buckets[i]
		monthly[b.Period] = MonthlyFlow{Income: b.Income, Expenses: b.Expenses}

		var rate *float64
		if prev != nil {
			rate = GrowthRate(b.NetFlow, prev.NetFlow)
		}
		growth = append(growth, MonthGrowth{
			Month:      b.Period,
			NetProfit:  b.NetFlow,
			GrowthRate: rate,
		})
		prev = &buckets[i]
	}

	return TrendsReport{
		MonthlyData:    monthly,
		GrowthRates:    growth,
		AnalysisPeriod: ReportPeriod{StartDate: start, EndDate: end},
	}
}
