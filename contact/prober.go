package contact

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// ProbeInterval is the pause between liveness probes.
	ProbeInterval = time.Second

	// ProbeTimeout bounds each probe connection.
	ProbeTimeout = 5 * time.Second
)

// DialFunc opens a connection; it matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// StatusFunc is called when a contact goes online or offline.
type StatusFunc func(c *Contact, online bool)

// Prober periodically checks whether a contact's control port accepts
// connections.
type Prober struct {
	contact  *Contact
	interval time.Duration
	dial     DialFunc
	onChange StatusFunc

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithInterval overrides ProbeInterval.
func WithInterval(d time.Duration) ProberOption {
	return func(p *Prober) { p.interval = d }
}

// WithDialer overrides how probes connect.
func WithDialer(dial DialFunc) ProberOption {
	return func(p *Prober) { p.dial = dial }
}

// WithStatusFunc registers a callback for online/offline transitions.
func WithStatusFunc(fn StatusFunc) ProberOption {
	return func(p *Prober) { p.onChange = fn }
}

// StartProber launches a liveness loop for c that runs until ctx is cancelled
// or Stop is called.
func StartProber(ctx context.Context, c *Contact, opts ...ProberOption) *Prober {
	dialer := &net.Dialer{Timeout: ProbeTimeout}
	p := &Prober{
		contact:  c,
		interval: ProbeInterval,
		dial:     dialer.DialContext,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)

	logrus.WithFields(logrus.Fields{
		"function": "StartProber",
		"nickname": c.Nickname,
		"addr":     c.Addr(),
		"interval": p.interval,
	}).Debug("Liveness probe started")

	return p
}

func (p *Prober) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.probe(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dial(probeCtx, "tcp", p.contact.Addr())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if p.contact.markOffline() {
			logrus.WithFields(logrus.Fields{
				"function": "Prober.probe",
				"nickname": p.contact.Nickname,
				"error":    err.Error(),
			}).Debug("Contact went offline")
			p.notify(false)
		}
		return
	}
	elapsed := time.Since(start)
	conn.Close()

	if p.contact.markOnline(elapsed) {
		logrus.WithFields(logrus.Fields{
			"function":   "Prober.probe",
			"nickname":   p.contact.Nickname,
			"latency_ms": elapsed.Milliseconds(),
		}).Debug("Contact came online")
		p.notify(true)
	}
}

func (p *Prober) notify(online bool) {
	if p.onChange != nil {
		p.onChange(p.contact, online)
	}
}

// Stop cancels the loop and waits for it to exit.
func (p *Prober) Stop() {
	p.once.Do(func() {
		p.cancel()
		<-p.done
	})
}

// Done is closed once the loop has exited.
func (p *Prober) Done() <-chan struct{} {
	return p.done
}
