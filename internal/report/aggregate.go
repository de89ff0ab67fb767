// Package report implements the aggregation engine and the report builders.
//
// Everything here is a pure function over a Snapshot: a fixed, ordered view
// of the transaction set taken once per request. Same snapshot and
// parameters always produce the identical artifact. Missing data degrades
// to zero or nil values; no function in this package returns an error.
package report

import (
	"fmt"
	"time"

	"hesab/internal/core"
)

// Snapshot is an immutable view of the transaction set, ordered by date
// with ties broken by insertion order. Builders never mutate it.
type Snapshot []core.Transaction

// PeriodBucket aggregates one calendar unit of activity.
type PeriodBucket struct {
	Period         string     `json:"period"`
	Income         core.Money `json:"income"`
	Expenses       core.Money `json:"expenses"`
	NetFlow        core.Money `json:"net_flow"`
	RunningBalance core.Money `json:"running_balance"`
}

// inRange reports whether d falls within [from, to] inclusive. A zero
// endpoint means unbounded on that side.
func inRange(d core.Date, from, to core.Date) bool {
	if !from.IsZero() && d.Before(from.Time) {
		return false
	}
	if !to.IsZero() && d.After(to.Time) {
		return false
	}
	return true
}

// Total sums the amounts of transactions of the given type whose date falls
// within the inclusive range.
func Total(s Snapshot, typ core.TransactionType, from, to core.Date) core.Money {
	var cents int64
	for _, t := range s {
		if t.Type == typ && inRange(t.Date, from, to) {
			cents += t.Amount.Cents
		}
	}
	return core.Money{Cents: cents}
}

// GroupByCategory sums amounts per category for the given type and range.
// Categories with no matching transactions are absent from the result.
func GroupByCategory(s Snapshot, typ core.TransactionType, from, to core.Date) map[string]core.Money {
	sums := make(map[string]core.Money)
	for _, t := range s {
		if t.Type != typ || !inRange(t.Date, from, to) {
			continue
		}
		sums[t.Category] = sums[t.Category].Add(t.Amount)
	}
	return sums
}

// BucketByPeriod splits the snapshot into consecutive calendar buckets from
// the earliest to the latest transaction date. Periods without transactions
// still appear with zero income and expenses so the sequence stays
// chronologically continuous. RunningBalance accumulates NetFlow, seeded
// at zero.
func BucketByPeriod(s Snapshot, period core.Period) []PeriodBucket {
	if len(s) == 0 {
		return nil
	}

	type flow struct {
		income   int64
		expenses int64
	}
	sums := make(map[int64]*flow)
	for _, t := range s {
		key := periodStart(t.Date, period).Unix()
		f := sums[key]
		if f == nil {
			f = &flow{}
			sums[key] = f
		}
		if t.Type == core.Income {
			f.income += t.Amount.Cents
		} else {
			f.expenses += t.Amount.Cents
		}
	}

	// Snapshot ordering guarantees s[0] is earliest and s[len-1] latest.
	first := periodStart(s[0].Date, period)
	last := periodStart(s[len(s)-1].Date, period)

	var buckets []PeriodBucket
	var balance int64
	for cur := first; !cur.After(last); cur = nextPeriod(cur, period) {
		var income, expenses int64
		if f := sums[cur.Unix()]; f != nil {
			income, expenses = f.income, f.expenses
		}
		net := income - expenses
		balance += net
		buckets = append(buckets, PeriodBucket{
			Period:         periodLabel(cur, period),
			Income:         core.Money{Cents: income},
			Expenses:       core.Money{Cents: expenses},
			NetFlow:        core.Money{Cents: net},
			RunningBalance: core.Money{Cents: balance},
		})
	}
	return buckets
}

// GrowthRate returns the percentage change from prev to curr, or nil when
// prev is zero. The nil case is the documented undefined policy: a growth
// rate against a zero baseline is meaningless, never infinite.
func GrowthRate(curr, prev core.Money) *float64 {
	if prev.Cents == 0 {
		return nil
	}
	base := prev.Cents
	if base < 0 {
		base = -base
	}
	rate := float64(curr.Cents-prev.Cents) / float64(base) * 100
	return &rate
}

// periodStart truncates d to the first day of its period. Weeks start on
// Monday (ISO 8601).
func periodStart(d core.Date, period core.Period) time.Time {
	t := d.Time
	switch period {
	case core.Daily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case core.Weekly:
		weekday := int(t.Weekday())
		if weekday == 0 { // Sunday closes the ISO week
			weekday = 7
		}
		t = t.AddDate(0, 0, -(weekday - 1))
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case core.Yearly:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default: // monthly
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

func nextPeriod(start time.Time, period core.Period) time.Time {
	switch period {
	case core.Daily:
		return start.AddDate(0, 0, 1)
	case core.Weekly:
		return start.AddDate(0, 0, 7)
	case core.Yearly:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}

func periodLabel(start time.Time, period core.Period) string {
	switch period {
	case core.Daily:
		return start.Format("2006-01-02")
	case core.Weekly:
		year, week := start.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case core.Yearly:
		return start.Format("2006")
	default:
		return start.Format("2006-01")
	}
}
