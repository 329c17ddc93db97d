package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersReservedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_reserved_total",
		Help: "Total number of orders created in Reserved status",
	})

	StockAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_applied_total",
		Help: "Total number of orders whose inventory deduction committed",
	})

	StockApplyFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_apply_failed_total",
		Help: "Total number of failed stock applications",
	}, []string{"reason"})

	StockRestoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_restored_total",
		Help: "Total number of cancellations that credited inventory back",
	})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_paid_total",
		Help: "Total number of orders settled as Paid",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	OrdersAutoCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_auto_cancelled_total",
		Help: "Total number of reservations cancelled by the expiry sweeper",
	})

	ApplyStockLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "apply_stock_latency_seconds",
		Help:    "Latency of stock application transactions",
		Buckets: prometheus.DefBuckets,
	})

	SweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "expiry_sweep_runs_total",
		Help: "Total number of expiry sweeper runs",
	})

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
