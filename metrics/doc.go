// Package metrics exports call, transfer and handshake counters to Prometheus.
//
// A [Recorder] registers its collectors on a caller-supplied registry. All
// methods are safe on a nil *Recorder, so components can be built without
// metrics in tests.
package metrics
