// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BidsTotal counts bid attempts by result ("accepted" or a rejection reason).
	BidsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carauction",
			Name:      "bids_total",
			Help:      "Bid attempts by result",
		},
		[]string{"result"},
	)

	PlaceBidDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "carauction",
			Name:      "place_bid_duration_seconds",
			Help:      "Time spent placing a bid, lock wait included",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
	)

	CommitRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "carauction",
			Name:      "commit_retries_total",
			Help:      "Auction commits retried after a concurrent modification",
		},
	)

	AuctionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carauction",
			Name:      "auctions_closed_total",
			Help:      "Auctions that reached a terminal status",
		},
		[]string{"status"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carauction",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "carauction",
			Subsystem: "ws",
			Name:      "clients",
			Help:      "Connected websocket clients",
		},
	)
)
