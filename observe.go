package mongomap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Repository call outcomes. A missing document is a normal answer, not a failure.
const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeConflict = "conflict"
	outcomeInvalid  = "invalid"
	outcomeCanceled = "canceled"
	outcomeError    = "error"
)

type clientMetrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mongomap",
			Subsystem: "repository",
			Name:      "calls_total",
			Help:      "Repository calls by operation, collection and outcome.",
		}, []string{"operation", "collection", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mongomap",
			Subsystem: "repository",
			Name:      "call_duration_seconds",
			Help:      "Repository call latency including reference resolution.",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation", "collection"}),
	}
	if err := registerOrReuse(reg, &m.calls); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.latency); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers c or swaps in the collector already registered under its
// descriptor, so several clients can share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("mongomap: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("mongomap: metric registered with type %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer records repository calls. A nil observer, logger or metrics set is skipped.
type observer struct {
	logger  *zap.Logger
	metrics *clientMetrics
}

func newObserver(logger *zap.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newClientMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op, collection string, start time.Time, err error) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)
	outcome := outcomeOf(err)

	if o.metrics != nil {
		o.metrics.calls.WithLabelValues(op, collection, outcome).Inc()
		o.metrics.latency.WithLabelValues(op, collection).Observe(elapsed.Seconds())
	}
	if o.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("collection", collection),
		zap.Duration("elapsed", elapsed),
	}
	switch outcome {
	case outcomeOK, outcomeNotFound:
		o.logger.Debug("Repository call", append(fields, zap.String("outcome", outcome))...)
	case outcomeError:
		o.logger.Warn("Repository call failed", append(fields, zap.Error(err))...)
	default:
		o.logger.Info("Repository call rejected", append(fields, zap.String("outcome", outcome), zap.Error(err))...)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDocumentNotFound):
		return outcomeNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrIndexConflict):
		return outcomeConflict
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrInvalidMethod),
		errors.Is(err, ErrInvalidCriteria), errors.Is(err, ErrInvalidSearch), errors.Is(err, ErrEmptyID):
		return outcomeInvalid
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCanceled
	}
	return outcomeError
}
