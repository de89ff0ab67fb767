package report

import "hesab/internal/core"

// BalanceBreakdown is one side of the balance sheet.
type BalanceBreakdown struct {
	ByCategory map[string]core.Money `json:"by_category"`
	Total      core.Money            `json:"total"`
}

// BalanceSheetReport states assets against liabilities as of a date.
// Equity is derived, never stored, so the accounting identity
// assets − liabilities = equity holds by construction.
type BalanceSheetReport struct {
	AsOfDate     core.Date        `json:"as_of_date"`
	Assets       BalanceBreakdown `json:"assets"`
	Liabilities  BalanceBreakdown `json:"liabilities"`
	Equity       core.Money       `json:"equity"`
	BalanceCheck bool             `json:"balance_check"`
}

// BalanceSheet builds a balance sheet over transactions dated at or before
// asOf. Income transactions feed the asset side and expense transactions
// the liability side, each grouped by category.
func BalanceSheet(s Snapshot, asOf core.Date) BalanceSheetReport {
	assets := BalanceBreakdown{
		ByCategory: GroupByCategory(s, core.Income, core.Date{}, asOf),
		Total:      Total(s, core.Income, core.Date{}, asOf),
	}
	liabilities := BalanceBreakdown{
		ByCategory: GroupByCategory(s, core.Expense, core.Date{}, asOf),
		Total:      Total(s, core.Expense, core.Date{}, asOf),
	}
	equity := assets.Total.Sub(liabilities.Total)

	return BalanceSheetReport{
		AsOfDate:     asOf,
		Assets:       assets,
		Liabilities:  liabilities,
		Equity:       equity,
		BalanceCheck: assets.Total.Cents-liabilities.Total.Cents-equity.Cents == 0,
	}
}
