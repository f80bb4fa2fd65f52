package embedding

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mongomap/internal/domain"
	domusage "github.com/kailas-cloud/mongomap/internal/domain/usage"
)

// BudgetAction defines behavior when token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject fails the search with domain.ErrEmbeddingQuotaExceeded.
	BudgetActionReject BudgetAction = "reject"
)

// persistTimeout bounds the write-through of one Record.
const persistTimeout = 2 * time.Second

// BudgetStore persists window counters. Add must be an atomic increment.
type BudgetStore interface {
	Add(ctx context.Context, provider string, w domusage.Window, tokens int64) error
	Load(ctx context.Context, provider string, w domusage.Window) (int64, error)
}

// BudgetLimits are the token caps of one provider. Zero means unlimited.
type BudgetLimits struct {
	Daily   int64
	Monthly int64
	Action  BudgetAction
}

// BudgetOption configures a BudgetTracker.
type BudgetOption func(*BudgetTracker)

// WithBudgetStore persists counters and seeds them from the store on creation.
func WithBudgetStore(s BudgetStore) BudgetOption {
	return func(b *BudgetTracker) { b.store = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) BudgetOption {
	return func(b *BudgetTracker) { b.now = now }
}

// BudgetTracker counts query embedding tokens in a daily and a monthly window. Allow only reads
// memory; Record updates memory and then writes the increment through to the store, so
// several replicas converge on restart rather than in real time.
type BudgetTracker struct {
	mu       sync.Mutex
	provider string
	action   BudgetAction
	day      domusage.Window
	month    domusage.Window
	store    BudgetStore
	now      func() time.Time
	logger   *zap.Logger
}

// NewBudgetTracker creates a tracker for provider and loads persisted counters when a store
// is given.
func NewBudgetTracker(
	ctx context.Context, provider string, limits BudgetLimits, logger *zap.Logger, opts ...BudgetOption,
) *BudgetTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.Action == "" {
		limits.Action = BudgetActionWarn
	}
	b := &BudgetTracker{
		provider: provider,
		action:   limits.Action,
		now:      time.Now,
		logger:   logger.With(zap.String("provider", provider)),
	}
	for _, o := range opts {
		o(b)
	}

	now := b.now()
	b.day = domusage.NewWindow(domusage.PeriodDay, limits.Daily, now)
	b.month = domusage.NewWindow(domusage.PeriodMonth, limits.Monthly, now)
	if b.store != nil {
		b.load(ctx)
	}
	return b
}

func (b *BudgetTracker) load(ctx context.Context) {
	for _, w := range []*domusage.Window{&b.day, &b.month} {
		used, err := b.store.Load(ctx, b.provider, *w)
		if err != nil {
			b.logger.Warn("Failed to load budget counter", zap.String("period", string(w.Period)), zap.Error(err))
			continue
		}
		w.Used = used
	}
	b.logger.Info("Budget loaded from store",
		zap.Int64("daily_used", b.day.Used),
		zap.Int64("monthly_used", b.month.Used),
	)
}

// Allow reports whether a new embedding request may run. It never touches the store.
func (b *BudgetTracker) Allow(_ context.Context) error {
	b.mu.Lock()
	b.rollLocked()
	day, month := b.day, b.month
	b.mu.Unlock()

	if !day.Exhausted() && !month.Exhausted() {
		return nil
	}
	if b.action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}
	b.logger.Warn("Token budget exceeded",
		zap.Int64("daily_used", day.Used),
		zap.Int64("daily_limit", day.Limit),
		zap.Int64("monthly_used", month.Used),
		zap.Int64("monthly_limit", month.Limit),
	)
	return nil
}

// Record adds consumed tokens to both windows and persists them. The write is detached from
// ctx cancellation so a cancelled search still gets its tokens counted.
func (b *BudgetTracker) Record(ctx context.Context, tokens int64) {
	if tokens <= 0 {
		return
	}
	b.mu.Lock()
	b.rollLocked()
	b.day.Used += tokens
	b.month.Used += tokens
	day, month := b.day, b.month
	b.mu.Unlock()

	if b.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	for _, w := range []domusage.Window{day, month} {
		if err := b.store.Add(ctx, b.provider, w, tokens); err != nil {
			b.logger.Warn("Failed to persist budget counter", zap.String("period", string(w.Period)), zap.Error(err))
		}
	}
}

// Window returns a snapshot of the period's counter. PeriodTotal reports the monthly counter
// without bounds.
func (b *BudgetTracker) Window(period domusage.Period) domusage.Window {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()

	switch period {
	case domusage.PeriodDay:
		return b.day
	case domusage.PeriodMonth:
		return b.month
	}
	w := b.month
	w.Period = domusage.PeriodTotal
	w.Start, w.End = time.Time{}, time.Time{}
	return w
}

func (b *BudgetTracker) rollLocked() {
	now := b.now()
	if b.day.Roll(now) {
		b.logger.Debug("Daily budget window rolled", zap.Time("start", b.day.Start))
	}
	if b.month.Roll(now) {
		b.logger.Debug("Monthly budget window rolled", zap.Time("start", b.month.Start))
	}
}
