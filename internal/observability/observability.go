// Package observability wires up structured logging and Prometheus
// metrics, the ambient stack the original project covered with its own
// Log() helper and buffer.cc's ProfileData() string dump.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// NewLogger returns a zerolog.Logger writing human-readable console
// output at the given level (one of zerolog's level name strings).
func NewLogger(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(console).Level(lvl).With().Timestamp().Logger()
}

// Metrics is the set of collectors every buffer reports into,
// registered once per process and labelled per-document/per-collaborator
// at observation time.
type Metrics struct {
	BufferVersion      *prometheus.GaugeVec
	CollaboratorAge    *prometheus.GaugeVec
	CommandsIntegrated *prometheus.CounterVec
	ActiveBuffers      prometheus.Gauge
}

// NewMetrics constructs and registers Metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BufferVersion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "annotext",
			Name:      "buffer_version",
			Help:      "Current CRDT integration version per open buffer.",
		}, []string{"filename"}),
		CollaboratorAge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "annotext",
			Name:      "collaborator_last_activity_seconds",
			Help:      "Seconds since a collaborator's last change/request/response.",
		}, []string{"filename", "collaborator", "kind"}),
		CommandsIntegrated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "annotext",
			Name:      "commands_integrated_total",
			Help:      "CRDT commands integrated, by command tag.",
		}, []string{"filename", "tag"}),
		ActiveBuffers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "annotext",
			Name:      "active_buffers",
			Help:      "Number of currently open buffers.",
		}),
	}
	reg.MustRegister(m.BufferVersion, m.CollaboratorAge, m.CommandsIntegrated, m.ActiveBuffers)
	return m
}
