package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Total number of orders placed successfully",
	}, []string{"mode"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_failed_total",
		Help: "Total number of failed order placements",
	}, []string{"reason"})

	OrdersPartiallyPersistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_partially_persisted_total",
		Help: "Orders left Pending after a stock failure in sequential mode",
	})

	StockDecrementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_stock_decrement_latency_seconds",
		Help:    "Latency of the per-order stock decrement phase",
		Buckets: prometheus.DefBuckets,
	})

	StockDecrementsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_stock_decrements_failed_total",
		Help: "Total number of rejected stock decrements",
	}, []string{"reason"})

	ProductCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_product_cache_requests_total",
		Help: "Product cache lookups by result",
	}, []string{"result"})

	AuthAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_auth_attempts_total",
		Help: "Login and refresh attempts by operation and result",
	}, []string{"operation", "result"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_events_published_total",
		Help: "Domain events published by type and result",
	}, []string{"type", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
