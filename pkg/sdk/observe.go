package sdk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Outcome labels recorded per call.
const (
	outcomeOK          = "ok"
	outcomeClientError = "client_error" // 4xx from the server
	outcomeServerError = "server_error" // 5xx from the server
	outcomeTransport   = "transport"    // no response: dial, TLS, timeout, decode
	outcomeCanceled    = "canceled"
)

type sdkMetrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mongomap",
			Subsystem: "sdk",
			Name:      "calls_total",
			Help:      "Admin API calls made by the SDK, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mongomap",
			Subsystem: "sdk",
			Name:      "call_duration_seconds",
			Help:      "Admin API call latency as seen by the SDK.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.calls); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.latency); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers c, or points it at the collector already registered under the
// same descriptor so several clients can share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("mongomap sdk: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("mongomap sdk: metric registered with type %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer records one log line and one sample per call. A nil observer is a no-op.
type observer struct {
	logger  *zap.Logger
	metrics *sdkMetrics
}

func newObserver(logger *zap.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)
	outcome := classify(err)

	if o.metrics != nil {
		o.metrics.calls.WithLabelValues(op, outcome).Inc()
		o.metrics.latency.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if o.logger == nil {
		return
	}

	fields := []zap.Field{zap.String("op", op), zap.Duration("elapsed", elapsed)}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		fields = append(fields, zap.Int("status", apiErr.StatusCode), zap.String("code", apiErr.Code))
	}
	switch outcome {
	case outcomeOK:
		o.logger.Debug("mongomap call completed", fields...)
	case outcomeClientError, outcomeCanceled:
		o.logger.Info("mongomap call rejected", append(fields, zap.String("outcome", outcome), zap.Error(err))...)
	default:
		o.logger.Warn("mongomap call failed", append(fields, zap.String("outcome", outcome), zap.Error(err))...)
	}
}

func classify(err error) string {
	if err == nil {
		return outcomeOK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return outcomeCanceled
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 500 {
			return outcomeServerError
		}
		return outcomeClientError
	}
	return outcomeTransport
}
