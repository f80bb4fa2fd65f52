// Package usage describes embedding token usage reports.
package usage

import (
	"fmt"
	"time"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

// ParsePeriod validates a period name. Empty means PeriodDay.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodDay, nil
	case PeriodDay, PeriodMonth, PeriodTotal:
		return p, nil
	}
	return "", fmt.Errorf("unknown usage period %q", s)
}

// Bounds returns the UTC window of period that contains t. PeriodTotal has no bounds and
// returns zero times.
func Bounds(period Period, t time.Time) (start, end time.Time) {
	t = t.UTC()
	switch period {
	case PeriodDay:
		start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)
	case PeriodMonth:
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}
	return time.Time{}, time.Time{}
}

// Window is the token counter of one budget period.
type Window struct {
	Period Period
	Limit  int64 // 0 = unlimited
	Used   int64
	Start  time.Time
	End    time.Time
}

// NewWindow opens an empty window of period around now.
func NewWindow(period Period, limit int64, now time.Time) Window {
	start, end := Bounds(period, now)
	return Window{Period: period, Limit: limit, Start: start, End: end}
}

// Roll starts a fresh window when now has left the current one. Reports whether it rolled.
func (w *Window) Roll(now time.Time) bool {
	if w.End.IsZero() || now.Before(w.End) {
		return false
	}
	*w = NewWindow(w.Period, w.Limit, now)
	return true
}

// Remaining returns the tokens left, never negative. Unlimited windows return -1.
func (w Window) Remaining() int64 {
	if w.Limit <= 0 {
		return -1
	}
	return max(w.Limit-w.Used, 0)
}

// Exhausted reports whether a limited window has no tokens left.
func (w Window) Exhausted() bool {
	return w.Limit > 0 && w.Used >= w.Limit
}

// Budget is a token budget snapshot.
type Budget struct {
	TokensLimit     int64
	TokensRemaining int64
	IsExhausted     bool
	ResetsAt        int64 // unix millis, zero when the period has no end
}

// Report is the embedding token usage for one period.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	tokens      int64
	budget      Budget
}

// NewReport creates a usage report. start and end are unix millis.
func NewReport(period Period, start, end, tokens int64, b Budget) Report {
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		tokens:      tokens,
		budget:      b,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// Tokens returns the tokens consumed in the period.
func (r *Report) Tokens() int64 { return r.tokens }

// Budget returns the budget status.
func (r *Report) Budget() Budget { return r.budget }
