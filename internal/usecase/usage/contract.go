package usage

import domusage "github.com/kailas-cloud/mongomap/internal/domain/usage"

// BudgetReader exposes the token windows of the embedding budget.
type BudgetReader interface {
	Window(period domusage.Period) domusage.Window
}
