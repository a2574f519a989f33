// Package observability exposes the Prometheus metrics of a running
// assistant. Every series lives under the swap_assistant namespace unless
// NewMetrics is given another.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "swap_assistant"

// Metrics groups the collectors by pipeline stage.
type Metrics struct {
	IntentsClassified *prometheus.CounterVec

	QuotesRequested *prometheus.CounterVec
	QuoteLatency    *prometheus.HistogramVec

	TransactionsBuilt  *prometheus.CounterVec
	BlockhashRefreshes prometheus.Counter

	SigningOutcomes     *prometheus.CounterVec
	SigningWait         *prometheus.HistogramVec
	SubmissionsTotal    *prometheus.CounterVec
	ConfirmationLatency *prometheus.HistogramVec

	AttemptsStarted  prometheus.Counter
	AttemptsFinished *prometheus.CounterVec
	AttemptsInFlight prometheus.Gauge
	FollowUpOffers   prometheus.Counter
	ActiveSessions   prometheus.Gauge

	RPCCallLatency      *prometheus.HistogramVec
	RPCFailovers        *prometheus.CounterVec
	AggregatorRequests  *prometheus.CounterVec
	TokenListFetches    *prometheus.CounterVec
	WSSubscriptionCount prometheus.Gauge
	WSReconnects        *prometheus.CounterVec

	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// factory registers collectors with the default registry under one namespace.
type factory string

func (ns factory) counter(subsystem, name, help string) prometheus.Counter {
	return promauto.NewCounter(prometheus.CounterOpts{
		Namespace: string(ns), Subsystem: subsystem, Name: name, Help: help,
	})
}

func (ns factory) counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: string(ns), Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func (ns factory) gauge(subsystem, name, help string) prometheus.Gauge {
	return promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: string(ns), Subsystem: subsystem, Name: name, Help: help,
	})
}

func (ns factory) histogram(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: string(ns), Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

var (
	walletWaitBuckets  = []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300}
	confirmWaitBuckets = []float64{0.5, 1, 2, 5, 10, 20, 30, 60}
)

// NewMetrics registers a full set of collectors. Registering the same
// namespace twice panics.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}
	f := factory(namespace)

	return &Metrics{
		IntentsClassified: f.counterVec("intent", "classified_total",
			"Chat messages by classified intent and the classifier that produced it", "intent", "classifier"),

		QuotesRequested: f.counterVec("quote", "requests_total",
			"Quote requests by source and outcome", "source", "outcome"),
		QuoteLatency: f.histogram("quote", "latency_seconds",
			"Quote request latency", nil, "source"),

		TransactionsBuilt: f.counterVec("build", "transactions_total",
			"Unsigned transaction builds by strategy and outcome", "strategy", "outcome"),
		BlockhashRefreshes: f.counter("build", "blockhash_refreshes_total",
			"Missing or stale blockhashes replaced before signing"),

		SigningOutcomes: f.counterVec("wallet", "signing_outcomes_total",
			"Signing requests by wallet kind and outcome", "wallet", "outcome"),
		SigningWait: f.histogram("wallet", "signing_wait_seconds",
			"Time spent waiting on the wallet", walletWaitBuckets, "wallet"),
		SubmissionsTotal: f.counterVec("submission", "transactions_total",
			"Submitted transactions by route and outcome", "route", "outcome"),
		ConfirmationLatency: f.histogram("submission", "confirmation_latency_seconds",
			"Time from submission to observed commitment", confirmWaitBuckets, "method"),

		AttemptsStarted: f.counter("attempt", "started_total",
			"Swap attempts created from a quote"),
		AttemptsFinished: f.counterVec("attempt", "finished_total",
			"Swap attempts by terminal status", "status"),
		AttemptsInFlight: f.gauge("attempt", "in_flight",
			"Attempts between confirmation and a terminal status"),
		FollowUpOffers: f.counter("attempt", "follow_up_offers_total",
			"Yield offers sent after a confirmed swap"),
		ActiveSessions: f.gauge("session", "active",
			"Connected wallet sessions"),

		RPCCallLatency: f.histogram("solana", "rpc_call_latency_seconds",
			"Solana JSON-RPC call latency", nil, "method"),
		RPCFailovers: f.counterVec("solana", "rpc_failovers_total",
			"RPC calls retried on the next endpoint", "method"),
		AggregatorRequests: f.counterVec("aggregator", "requests_total",
			"Aggregator API requests by endpoint and HTTP status", "endpoint", "status"),
		TokenListFetches: f.counterVec("tokens", "list_fetches_total",
			"Remote token list fetches by outcome", "outcome"),
		WSSubscriptionCount: f.gauge("solana", "ws_subscriptions",
			"Open signature subscriptions"),
		WSReconnects: f.counterVec("solana", "ws_reconnects_total",
			"WebSocket redial attempts by outcome", "outcome"),

		DBQueryDuration: f.histogram("database", "query_duration_seconds",
			"Store query duration", nil, "database", "operation"),
		DBQueryErrors: f.counterVec("database", "query_errors_total",
			"Store queries that returned an error", "database", "operation"),
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics backs the package-level recorders.
var DefaultMetrics = NewMetrics("")

func RecordIntent(intent, classifier string) {
	DefaultMetrics.IntentsClassified.WithLabelValues(intent, classifier).Inc()
}

func RecordQuote(source, outcome string, seconds float64) {
	DefaultMetrics.QuotesRequested.WithLabelValues(source, outcome).Inc()
	DefaultMetrics.QuoteLatency.WithLabelValues(source).Observe(seconds)
}

func RecordBuild(strategy, outcome string) {
	DefaultMetrics.TransactionsBuilt.WithLabelValues(strategy, outcome).Inc()
}

func RecordBlockhashRefresh() { DefaultMetrics.BlockhashRefreshes.Inc() }

// RecordSigning records how a signing request ended and how long the
// wallet took to answer.
func RecordSigning(wallet, outcome string, seconds float64) {
	DefaultMetrics.SigningOutcomes.WithLabelValues(wallet, outcome).Inc()
	DefaultMetrics.SigningWait.WithLabelValues(wallet).Observe(seconds)
}

func RecordSubmission(route, outcome string) {
	DefaultMetrics.SubmissionsTotal.WithLabelValues(route, outcome).Inc()
}

func RecordConfirmation(method string, seconds float64) {
	DefaultMetrics.ConfirmationLatency.WithLabelValues(method).Observe(seconds)
}

func RecordAttemptStarted() { DefaultMetrics.AttemptsStarted.Inc() }

func RecordAttemptFinished(status string) {
	DefaultMetrics.AttemptsFinished.WithLabelValues(status).Inc()
}

func UpdateAttemptsInFlight(delta float64) { DefaultMetrics.AttemptsInFlight.Add(delta) }

func RecordFollowUpOffer() { DefaultMetrics.FollowUpOffers.Inc() }

func UpdateActiveSessions(delta float64) { DefaultMetrics.ActiveSessions.Add(delta) }

func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

func RecordRPCFailover(method string) {
	DefaultMetrics.RPCFailovers.WithLabelValues(method).Inc()
}

func RecordAggregatorRequest(endpoint, status string) {
	DefaultMetrics.AggregatorRequests.WithLabelValues(endpoint, status).Inc()
}

func RecordTokenListFetch(outcome string) {
	DefaultMetrics.TokenListFetches.WithLabelValues(outcome).Inc()
}

func UpdateWSSubscriptions(delta float64) { DefaultMetrics.WSSubscriptionCount.Add(delta) }

// RecordWSReconnect counts a redial; ok reports whether it connected.
func RecordWSReconnect(ok bool) {
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	DefaultMetrics.WSReconnects.WithLabelValues(outcome).Inc()
}

// RecordDBQuery observes a store query and counts it as failed when err
// is set.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
