package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "audiochat"

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns a Prometheus HTTP handler bound to the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Recorder holds the client's collectors.
type Recorder struct {
	datagramsSent     *prometheus.CounterVec
	datagramsReceived *prometheus.CounterVec
	authFailures      *prometheus.CounterVec
	disconnects       prometheus.Counter
	reconnects        prometheus.Counter
	bufferTrims       *prometheus.CounterVec
	trimmedBytes      *prometheus.CounterVec
	callState         *prometheus.GaugeVec
	transfers         *prometheus.CounterVec
	transferBytes     *prometheus.CounterVec
	handshakes        *prometheus.CounterVec
	contactsOnline    prometheus.Gauge
}

// NewRecorder registers the collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		datagramsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_sent_total",
			Help:      "Audio channel datagrams sent by frame kind.",
		}, []string{"kind"}),
		datagramsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_received_total",
			Help:      "Audio channel datagrams received by frame kind.",
		}, []string{"kind"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authentication_failures_total",
			Help:      "Framed messages dropped for failing authentication, by channel.",
		}, []string{"channel"}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_disconnects_total",
			Help:      "Transitions from connected to disconnected.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_reconnects_total",
			Help:      "Transitions from disconnected back to connected.",
		}),
		bufferTrims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jitter_buffer_trims_total",
			Help:      "Times a jitter buffer exceeded the latency bound and was trimmed.",
		}, []string{"direction"}),
		trimmedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jitter_buffer_trimmed_bytes_total",
			Help:      "Audio bytes dropped by jitter buffer trims.",
		}, []string{"direction"}),
		callState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "call_state",
			Help:      "1 for the current call state, 0 otherwise.",
		}, []string{"state"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_transfers_total",
			Help:      "Finished file transfers by direction and result.",
		}, []string{"direction", "result"}),
		transferBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_transfer_bytes_total",
			Help:      "Plaintext bytes moved by file transfers.",
		}, []string{"direction"}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Control channel handshakes by kind and result.",
		}, []string{"kind", "result"}),
		contactsOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "contacts_online",
			Help:      "Contacts whose liveness probe currently succeeds.",
		}),
	}
	reg.MustRegister(
		r.datagramsSent,
		r.datagramsReceived,
		r.authFailures,
		r.disconnects,
		r.reconnects,
		r.bufferTrims,
		r.trimmedBytes,
		r.callState,
		r.transfers,
		r.transferBytes,
		r.handshakes,
		r.contactsOnline,
	)
	return r
}

func (r *Recorder) DatagramSent(kind string) {
	if r == nil {
		return
	}
	r.datagramsSent.WithLabelValues(kind).Inc()
}

func (r *Recorder) DatagramReceived(kind string) {
	if r == nil {
		return
	}
	r.datagramsReceived.WithLabelValues(kind).Inc()
}

func (r *Recorder) AuthFailure(channel string) {
	if r == nil {
		return
	}
	r.authFailures.WithLabelValues(channel).Inc()
}

func (r *Recorder) Disconnect() {
	if r == nil {
		return
	}
	r.disconnects.Inc()
}

func (r *Recorder) Reconnect() {
	if r == nil {
		return
	}
	r.reconnects.Inc()
}

func (r *Recorder) BufferTrim(direction string, dropped int) {
	if r == nil {
		return
	}
	r.bufferTrims.WithLabelValues(direction).Inc()
	r.trimmedBytes.WithLabelValues(direction).Add(float64(dropped))
}

// CallState marks state as current.
func (r *Recorder) CallState(state string) {
	if r == nil {
		return
	}
	r.callState.Reset()
	r.callState.WithLabelValues(state).Set(1)
}

func (r *Recorder) Transfer(direction, result string, bytes uint64) {
	if r == nil {
		return
	}
	r.transfers.WithLabelValues(direction, result).Inc()
	r.transferBytes.WithLabelValues(direction).Add(float64(bytes))
}

func (r *Recorder) Handshake(kind, result string) {
	if r == nil {
		return
	}
	r.handshakes.WithLabelValues(kind, result).Inc()
}

func (r *Recorder) ContactsOnline(n int) {
	if r == nil {
		return
	}
	r.contactsOnline.Set(float64(n))
}
