package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	settlementCounter     *prometheus.CounterVec
	settlementDuration    prometheus.Histogram
	payoutsCounter        prometheus.Counter
	betCounter            *prometheus.CounterVec
	poolImbalanceCounter  *prometheus.CounterVec
	idempotencyCounter    *prometheus.CounterVec
	eventPublishCounter   *prometheus.CounterVec
	wsClientsGauge        prometheus.Gauge
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		settlementCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Market settlement attempts by result",
		}, []string{"result"})

		settlementDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "settlement_duration_seconds",
			Help:    "Wall time of a settlement transaction",
			Buckets: prometheus.DefBuckets,
		})

		payoutsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_payouts_total",
			Help: "Winning bets credited by settlement",
		})

		betCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bets_placed_total",
			Help: "Bets accepted by outcome",
		}, []string{"outcome"})

		poolImbalanceCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_imbalance_total",
			Help: "Reconciliation violations by check",
		}, []string{"check"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		eventPublishCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_publish_total",
			Help: "Market event publish attempts",
		}, []string{"type", "result"})

		wsClientsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Currently connected websocket clients",
		})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			settlementCounter,
			settlementDuration,
			payoutsCounter,
			betCounter,
			poolImbalanceCounter,
			idempotencyCounter,
			eventPublishCounter,
			wsClientsGauge,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// ObserveSettlement records one settlement attempt.
func ObserveSettlement(result string, payouts int, duration time.Duration) {
	if settlementCounter == nil {
		return
	}
	settlementCounter.WithLabelValues(result).Inc()
	settlementDuration.Observe(duration.Seconds())
	if payouts > 0 {
		payoutsCounter.Add(float64(payouts))
	}
}

func IncrementBetPlaced(outcome string) {
	if betCounter == nil {
		return
	}
	betCounter.WithLabelValues(outcome).Inc()
}

func IncrementPoolImbalance(check string) {
	if poolImbalanceCounter == nil {
		return
	}
	poolImbalanceCounter.WithLabelValues(check).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementEventPublish(eventType, result string) {
	if eventPublishCounter == nil {
		return
	}
	eventPublishCounter.WithLabelValues(eventType, result).Inc()
}

func AddWebsocketClients(delta int) {
	if wsClientsGauge == nil {
		return
	}
	wsClientsGauge.Add(float64(delta))
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
