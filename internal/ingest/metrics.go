package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the ingest-path counters. Write failures are counted here so
// that the loop's log-and-continue policy never loses them silently.
type Metrics struct {
	FramesReceived  prometheus.Counter
	ParseFailures   prometheus.Counter
	EventsPersisted prometheus.Counter
	WriteFailures   prometheus.Counter
	QueueDrops      prometheus.Counter
}

// NewMetrics creates and registers the ingest counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatlog_frames_received_total",
			Help: "Raw frames received from the feed.",
		}),
		ParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatlog_parse_failures_total",
			Help: "Frames that failed classification.",
		}),
		EventsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatlog_events_persisted_total",
			Help: "Canonical events written to the store.",
		}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatlog_write_failures_total",
			Help: "Store writes that failed.",
		}),
		QueueDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatlog_queue_drops_total",
			Help: "Frames dropped because the ingest queue was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.FramesReceived, m.ParseFailures, m.EventsPersisted,
			m.WriteFailures, m.QueueDrops)
	}
	return m
}
