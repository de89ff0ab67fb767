package report

import "hesab/internal/core"

// CashFlowReport is the bucketed flow of money at a chosen granularity.
type CashFlowReport struct {
	PeriodType   core.Period    `json:"period_type"`
	CashFlow     []PeriodBucket `json:"cash_flow"`
	TotalPeriods int            `json:"total_periods"`
	FinalBalance core.Money     `json:"final_balance"`
}

// CashFlow wraps BucketByPeriod. An empty snapshot yields zero buckets and
// a zero final balance.
func CashFlow(s Snapshot, period core.Period) CashFlowReport {
	buckets := BucketByPeriod(s, period)

	var final core.Money
	if len(buckets) > 0 {
		final = buckets[len(buckets)-1].RunningBalance
	}

	return CashFlowReport{
		PeriodType:   period,
		CashFlow:     buckets,
		TotalPeriods: len(buckets),
		FinalBalance: final,
	}
}
