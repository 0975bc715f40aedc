package contact

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// SecretSize is the length of a shared secret in bytes.
const SecretSize = 16

// MaxNicknameLength bounds nicknames, which double as file names in JSONStore.
const MaxNicknameLength = 64

// TimeProvider abstracts time for deterministic tests.
type TimeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time { return time.Now() }

var defaultTimeProvider TimeProvider = realTimeProvider{}

// Contact is a peer reachable at a fixed host and control port.
type Contact struct {
	Nickname string
	Host     string
	Port     uint16

	secret []byte

	online    atomic.Bool
	latencyMs atomic.Int64

	mu           sync.RWMutex
	lastSeen     time.Time
	timeProvider TimeProvider
}

// New creates a contact after validating its nickname, address and secret.
func New(nickname, host string, port uint16, secret string) (*Contact, error) {
	return NewWithTimeProvider(nickname, host, port, secret, defaultTimeProvider)
}

// NewWithTimeProvider creates a contact with a custom time provider.
func NewWithTimeProvider(nickname, host string, port uint16, secret string, tp TimeProvider) (*Contact, error) {
	if err := ValidateNickname(nickname); err != nil {
		return nil, err
	}
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("contact %q: empty host", nickname)
	}
	if port == 0 {
		return nil, fmt.Errorf("contact %q: port 0 is not allowed", nickname)
	}
	if len(secret) != SecretSize {
		logrus.WithFields(logrus.Fields{
			"function":    "contact.New",
			"nickname":    nickname,
			"secret_size": len(secret),
		}).Warn("Rejected contact with invalid secret")
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSecret, len(secret))
	}
	if tp == nil {
		tp = defaultTimeProvider
	}

	return &Contact{
		Nickname:     nickname,
		Host:         host,
		Port:         port,
		secret:       []byte(secret),
		timeProvider: tp,
	}, nil
}

// ValidateNickname rejects nicknames that cannot be used as a persistence key.
func ValidateNickname(nickname string) error {
	switch {
	case strings.TrimSpace(nickname) == "":
		return fmt.Errorf("%w: empty", ErrInvalidNickname)
	case len(nickname) > MaxNicknameLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidNickname, MaxNicknameLength)
	case strings.ContainsAny(nickname, `/\`) || nickname == "." || nickname == "..":
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidNickname, nickname)
	}
	return nil
}

// Addr returns the control address "host:port".
func (c *Contact) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port)))
}

// Key returns a copy of the shared secret for use as a session key.
func (c *Contact) Key() []byte {
	key := make([]byte, len(c.secret))
	copy(key, c.secret)
	return key
}

// Secret returns the shared secret as a string for persistence.
func (c *Contact) Secret() string {
	return string(c.secret)
}

// Online reports the last probe result.
func (c *Contact) Online() bool {
	return c.online.Load()
}

// Latency returns the connect time measured by the last successful probe.
func (c *Contact) Latency() time.Duration {
	return time.Duration(c.latencyMs.Load()) * time.Millisecond
}

// LastSeen returns when a probe last succeeded.
func (c *Contact) LastSeen() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeen
}

// markOnline records a successful probe and reports whether the status changed.
func (c *Contact) markOnline(latency time.Duration) bool {
	c.latencyMs.Store(latency.Milliseconds())
	c.mu.Lock()
	c.lastSeen = c.timeProvider.Now()
	c.mu.Unlock()
	return !c.online.Swap(true)
}

// markOffline records a failed probe and reports whether the status changed.
func (c *Contact) markOffline() bool {
	return c.online.Swap(false)
}

// Record returns the persisted form of the contact.
func (c *Contact) Record() Record {
	return Record{
		IP:       c.Host,
		Port:     c.Port,
		Secret:   c.Secret(),
		Nickname: c.Nickname,
	}
}

// Record is the persisted form of a contact.
type Record struct {
	IP       string `json:"ip"`
	Port     uint16 `json:"port"`
	Secret   string `json:"secret"`
	Nickname string `json:"nickname"`
}

// Contact builds a validated Contact from the record.
func (r Record) Contact() (*Contact, error) {
	return New(r.Nickname, r.IP, r.Port, r.Secret)
}
