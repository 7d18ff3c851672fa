package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "closet_transactions_recorded_total",
		Help: "Total number of staff ledger transactions recorded",
	}, []string{"direction"})

	ItemsMovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "closet_items_moved_total",
		Help: "Total number of item units added to or removed from stock",
	}, []string{"direction"})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "closet_orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "closet_orders_failed_total",
		Help: "Total number of failed order creations",
	}, []string{"reason"})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "closet_order_transitions_total",
		Help: "Total number of order status transitions",
	}, []string{"status"})

	OrdersMarkedLateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "closet_orders_marked_late_total",
		Help: "Total number of order rows promoted to late",
	})

	OrderCreateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "closet_order_create_latency_seconds",
		Help:    "Latency of order creation including stock reservation",
		Buckets: prometheus.DefBuckets,
	})

	CSVRowsImportedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "closet_csv_rows_imported_total",
		Help: "Total number of CSV rows imported",
	}, []string{"kind"})

	CSVImportsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "closet_csv_imports_failed_total",
		Help: "Total number of CSV imports that were rejected",
	}, []string{"kind"})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "closet_events_publish_failed_total",
		Help: "Total number of ledger events that could not be published",
	}, []string{"event_type"})

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
