package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	locationUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rallye_location_updates_total",
			Help: "Total number of group location updates",
		},
	)

	pointReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rallye_point_reports_total",
			Help: "Total number of point reports",
		},
		[]string{"result"}, // awarded, duplicate, ignored
	)

	roomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rallye_rooms_created_total",
			Help: "Total number of rooms created",
		},
	)

	roomSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rallye_room_subscribers_current",
			Help: "Current number of live event subscribers",
		},
	)

	eventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rallye_events_dropped_total",
			Help: "Events dropped because a subscriber was slow",
		},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rallye_http_request_duration_seconds",
			Help:    "Time spent serving HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)
