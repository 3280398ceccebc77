package service

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const MetricsSubsystem = "house"

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Commands handled, by command and status (ok, error).
	Commands metrics.Counter
	// Command latency in seconds, by command.
	CommandDuration metrics.Histogram
	// Auctions initiated but not yet settled.
	OpenAuctions metrics.Gauge
	// Registered users.
	Users           metrics.Gauge
	OrdersPlaced    metrics.Counter
	OrdersCancelled metrics.Counter
	OrdersClaimed   metrics.Counter
	Settlements     metrics.Counter
	// Journal or outbox writes that failed after a command succeeded,
	// by target.
	PersistFailures metrics.Counter
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		Commands: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "commands_total",
			Help:      "Commands handled, by command and status.",
		}, []string{"command", "status"}),
		CommandDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "command_duration_seconds",
			Help:      "Command latency in seconds.",
			Buckets:   stdprometheus.ExponentialBuckets(0.00005, 4, 10),
		}, []string{"command"}),
		OpenAuctions: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "open_auctions",
			Help:      "Auctions initiated but not yet settled.",
		}, []string{}),
		Users: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "users",
			Help:      "Registered users.",
		}, []string{}),
		OrdersPlaced: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "orders_placed_total",
			Help:      "Sell orders admitted to a queue.",
		}, []string{}),
		OrdersCancelled: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "orders_cancelled_total",
			Help:      "Sell orders cancelled and refunded.",
		}, []string{}),
		OrdersClaimed: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "orders_claimed_total",
			Help:      "Sell orders paid out after settlement.",
		}, []string{}),
		Settlements: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "settlements_total",
			Help:      "Auctions settled.",
		}, []string{}),
		PersistFailures: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "persist_failures_total",
			Help:      "Journal or outbox writes that failed.",
		}, []string{"target"}),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Commands:        discard.NewCounter(),
		CommandDuration: discard.NewHistogram(),
		OpenAuctions:    discard.NewGauge(),
		Users:           discard.NewGauge(),
		OrdersPlaced:    discard.NewCounter(),
		OrdersCancelled: discard.NewCounter(),
		OrdersClaimed:   discard.NewCounter(),
		Settlements:     discard.NewCounter(),
		PersistFailures: discard.NewCounter(),
	}
}
