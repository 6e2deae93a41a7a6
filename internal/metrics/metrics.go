package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ammpool/internal/model"
	"ammpool/internal/pool"
)

const (
	ResultApplied  = "applied"
	ResultReverted = "reverted"
)

// Metrics tracks simulation activity on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Events      *prometheus.CounterVec
	Operations  *prometheus.CounterVec
	Reverts     *prometheus.CounterVec
	Reserves    *prometheus.GaugeVec
	Pools       prometheus.Gauge
	OpDuration  *prometheus.HistogramVec
	FlushErrors prometheus.Counter
}

func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_events_total",
			Help:      "Number of pool events by pool and event name",
		}, []string{"pool", "event"}),
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Number of scenario operations by op and result",
		}, []string{"op", "result"}),
		Reverts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reverts_total",
			Help:      "Number of reverted operations by reason",
		}, []string{"reason"}),
		Reserves: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_reserve",
			Help:      "Last synced reserve by pool and side",
		}, []string{"pool", "side"}),
		Pools: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pools",
			Help:      "Number of pools created",
		}),
		OpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Operation latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"op"}),
		FlushErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_errors_total",
			Help:      "Number of failed storage write attempts",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HandleEvent counts events and tracks reserves from Sync.
func (m *Metrics) HandleEvent(_ context.Context, event model.PoolEvent) error {
	m.Events.WithLabelValues(event.Pool, event.EventName).Inc()
	switch data := event.Decoded.(type) {
	case model.SyncEventData:
		m.Reserves.WithLabelValues(event.Pool, "0").Set(parseFloat(data.Reserve0))
		m.Reserves.WithLabelValues(event.Pool, "1").Set(parseFloat(data.Reserve1))
	case model.PoolCreatedEventData:
		m.Pools.Inc()
	}
	return nil
}

// ObserveOperation records the outcome and latency of one scenario operation.
func (m *Metrics) ObserveOperation(op string, err error, elapsed time.Duration) {
	result := ResultApplied
	if err != nil {
		result = ResultReverted
		m.Reverts.WithLabelValues(Reason(err)).Inc()
	}
	m.Operations.WithLabelValues(op, result).Inc()
	m.OpDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// WriteTextfile exports the registry in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

var reasons = []struct {
	err  error
	name string
}{
	{pool.ErrReentrant, "reentrant"},
	{pool.ErrTransferFailed, "transfer_failed"},
	{pool.ErrInvalidAmount, "invalid_amount"},
	{pool.ErrInsufficientInitialLiquidity, "insufficient_initial_liquidity"},
	{pool.ErrInsufficientAmount0, "insufficient_amount0"},
	{pool.ErrInsufficientAmount1, "insufficient_amount1"},
	{pool.ErrInsufficientOutput, "insufficient_output"},
	{pool.ErrExcessiveInput, "excessive_input"},
	{pool.ErrInsufficientLiquidity, "insufficient_liquidity"},
	{pool.ErrInsufficientBalance, "insufficient_balance"},
	{pool.ErrInsufficientAllowance, "insufficient_allowance"},
	{pool.ErrAlreadyInitialized, "already_initialized"},
	{pool.ErrNotInitialized, "not_initialized"},
	{pool.ErrIdenticalAssets, "identical_assets"},
	{pool.ErrPoolExists, "pool_exists"},
	{pool.ErrZeroAddress, "zero_address"},
	{pool.ErrUnknownAsset, "unknown_asset"},
	{pool.ErrInvariantViolated, "invariant_violated"},
	{pool.ErrOverflow, "overflow"},
}

// Reason maps an operation error to a bounded label value.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.name
		}
	}
	return "other"
}

func parseFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}
