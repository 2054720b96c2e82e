package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusOK         = "ok"
	StatusError      = "error"
	StatusSuperseded = "superseded"
)

var (
	SlotFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotpager_slot_fetches_total",
			Help: "The total number of slot fetches issued by paginators",
		},
		[]string{"resource", "direction", "status"},
	)

	SlotFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotpager_slot_fetch_duration_seconds",
			Help:    "Duration of slot fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	ProbeRecordsTrimmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotpager_probe_records_trimmed_total",
			Help: "Number of boundary records dropped after proving an adjacent slot exists",
		},
		[]string{"resource"},
	)

	PageChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotpager_page_changes_total",
			Help: "In-slot page changes served from memory",
		},
		[]string{"resource"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotpager_active_browse_sessions",
			Help: "Number of browse sessions currently held in memory",
		},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotpager_upstream_requests_total",
			Help: "Requests sent by transports, by transport kind and outcome",
		},
		[]string{"transport", "status"},
	)
)
