package session

import "github.com/prometheus/client_golang/prometheus"

// metrics are the Prometheus counters/histograms a session reports.
// Grounded on teleport's component-scoped prometheus registration
// style (one package-level set of collectors, registered once, shared
// across every session instance).
type metrics struct {
	packetsSent     prometheus.Counter
	packetsReceived prometheus.Counter
	packetsDropped  *prometheus.CounterVec
	handshakeTime   prometheus.Histogram
	flowBlocked     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qcore",
			Subsystem: "session",
			Name:      "packets_sent_total",
			Help:      "Datagrams successfully sealed and handed to the caller for transmission.",
		}),
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qcore",
			Subsystem: "session",
			Name:      "packets_received_total",
			Help:      "Datagrams successfully decoded and applied.",
		}),
		packetsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcore",
			Subsystem: "session",
			Name:      "packets_dropped_total",
			Help:      "Datagrams dropped during inbound processing, labeled by reason.",
		}, []string{"reason"}),
		handshakeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qcore",
			Subsystem: "session",
			Name:      "handshake_duration_seconds",
			Help:      "Time from handshake start to forward-secure keys installed.",
			Buckets:   prometheus.DefBuckets,
		}),
		flowBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qcore",
			Subsystem: "session",
			Name:      "flow_control_blocked_total",
			Help:      "Inbound STREAM frames rejected for exceeding a flow-control window.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.packetsSent, m.packetsReceived, m.packetsDropped, m.handshakeTime, m.flowBlocked)
	}
	return m
}
