package report

import "hesab/internal/core"

// ReportPeriod echoes the requested date range back to the caller.
type ReportPeriod struct {
	StartDate core.Date `json:"start_date"`
	EndDate   core.Date `json:"end_date"`
}

// ProfitLossReport summarizes income against expenses over a date range.
type ProfitLossReport struct {
	Period            ReportPeriod          `json:"period"`
	TotalIncome       core.Money            `json:"total_income"`
	TotalExpenses     core.Money            `json:"total_expenses"`
	NetProfit         core.Money            `json:"net_profit"`
	ProfitMargin      float64               `json:"profit_margin"`
	IncomeByCategory  map[string]core.Money `json:"income_by_category"`
	ExpenseByCategory map[string]core.Money `json:"expense_by_category"`
	TransactionCount  int                   `json:"transaction_count"`
}

// ProfitLoss builds a profit and loss report over [start, end] inclusive.
// Zero endpoints leave the range unbounded on that side.
func ProfitLoss(s Snapshot, start, end core.Date) ProfitLossReport {
	income := Total(s, core.Income, start, end)
	expenses := Total(s, core.Expense, start, end)
	net := income.Sub(expenses)

	margin := 0.0
	if income.Cents > 0 {
		margin = float64(net.Cents) / float64(income.Cents) * 100
	}

	count := 0
	for _, t := range s {
		if inRange(t.Date, start, end) {
			count++
		}
	}

	return ProfitLossReport{
		Period:            ReportPeriod{StartDate: start, EndDate: end},
		TotalIncome:       income,
		TotalExpenses:     expenses,
		NetProfit:         net,
		ProfitMargin:      margin,
		IncomeByCategory:  GroupByCategory(s, core.Income, start, end),
		ExpenseByCategory: GroupByCategory(s, core.Expense, start, end),
		TransactionCount:  count,
	}
}
