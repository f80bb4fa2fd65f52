package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/mongomap/internal/domain/usage"
)

// Service reports embedding token usage.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil when no budget is configured; reports then carry
// bounds and no counters.
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	var w domusage.Window
	if s.br != nil {
		w = s.br.Window(period)
	} else {
		w = domusage.NewWindow(period, 0, s.now())
	}

	b := domusage.Budget{
		TokensLimit: w.Limit,
		IsExhausted: w.Exhausted(),
		ResetsAt:    millis(w.End),
	}
	if w.Limit > 0 {
		b.TokensRemaining = w.Remaining()
	}
	return domusage.NewReport(period, millis(w.Start), millis(w.End), w.Used, b)
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
