package file

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Direction indicates whether a transfer is incoming or outgoing.
type Direction uint8

const (
	// DirectionIncoming represents a file being received.
	DirectionIncoming Direction = iota
	// DirectionOutgoing represents a file being sent.
	DirectionOutgoing
)

func (d Direction) String() string {
	if d == DirectionOutgoing {
		return "outgoing"
	}
	return "incoming"
}

// State represents the current state of a file transfer.
type State uint8

const (
	// StatePending indicates the transfer is waiting for its connection.
	StatePending State = iota
	// StateRunning indicates data is flowing.
	StateRunning
	// StateCompleted indicates the transfer has finished successfully.
	StateCompleted
	// StateCancelled indicates the transfer was cancelled.
	StateCancelled
	// StateError indicates the transfer failed.
	StateError
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "error"
	}
}

// DefaultStallTimeout is how long a running transfer may go without data.
const DefaultStallTimeout = 30 * time.Second

// TimeProvider abstracts time operations for deterministic testing.
type TimeProvider interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// Since returns the duration since t.
func (DefaultTimeProvider) Since(t time.Time) time.Duration { return time.Since(t) }

var defaultTimeProvider TimeProvider = DefaultTimeProvider{}

// Transfer tracks one file moving between the peers.
type Transfer struct {
	ID         uuid.UUID
	Direction  Direction
	Peer       string
	Descriptor Descriptor

	mu            sync.Mutex
	state         State
	transferred   uint64
	path          string
	err           error
	startTime     time.Time
	lastChunkTime time.Time
	speed         float64
	stallTimeout  time.Duration
	timeProvider  TimeProvider

	cancel           context.CancelFunc
	progressCallback func(uint64)
	completeCallback func(error)
}

// NewTransfer creates a pending transfer of desc with peer.
func NewTransfer(peer string, desc Descriptor, direction Direction) *Transfer {
	tp := defaultTimeProvider
	t := &Transfer{
		ID:            uuid.New(),
		Direction:     direction,
		Peer:          peer,
		Descriptor:    desc,
		state:         StatePending,
		lastChunkTime: tp.Now(),
		stallTimeout:  DefaultStallTimeout,
		timeProvider:  tp,
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewTransfer",
		"transfer_id": t.ID.String(),
		"peer":        peer,
		"file_name":   desc.FormattedName(),
		"file_size":   desc.Length,
		"direction":   direction.String(),
	}).Info("Creating file transfer")

	return t
}

// SetTimeProvider sets a custom time provider and resets the stall clock.
func (t *Transfer) SetTimeProvider(tp TimeProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeProvider = tp
	t.lastChunkTime = tp.Now()
}

// bind derives a cancellable context for the transfer's I/O.
func (t *Transfer) bind(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	cancelled := t.state == StateCancelled
	t.mu.Unlock()
	if cancelled {
		cancel()
	}
	return ctx
}

// start moves a pending transfer to running.
func (t *Transfer) start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePending {
		return errors.New("transfer cannot be started in current state")
	}
	t.state = StateRunning
	t.startTime = t.timeProvider.Now()
	t.lastChunkTime = t.startTime
	return nil
}

// advance records n more bytes moved.
func (t *Transfer) advance(n uint64) {
	t.mu.Lock()
	t.transferred += n
	t.updateSpeed(n)
	transferred := t.transferred
	callback := t.progressCallback
	t.mu.Unlock()

	if callback != nil {
		callback(transferred)
	}
}

func (t *Transfer) updateSpeed(n uint64) {
	now := t.timeProvider.Now()
	elapsed := t.timeProvider.Since(t.lastChunkTime).Seconds()

	if elapsed > 0 {
		instant := float64(n) / elapsed
		if t.speed == 0 {
			t.speed = instant
		} else {
			t.speed = 0.7*t.speed + 0.3*instant
		}
	}
	t.lastChunkTime = now
}

// finish records the outcome. A cancelled transfer stays cancelled.
func (t *Transfer) finish(path string, err error) {
	t.mu.Lock()
	if t.state == StateCompleted || t.state == StateError || t.state == StateCancelled {
		t.mu.Unlock()
		return
	}
	if err != nil {
		t.state = StateError
		t.err = err
	} else {
		t.state = StateCompleted
		t.path = path
	}
	callback := t.completeCallback
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "Transfer.finish",
		"transfer_id": t.ID.String(),
		"state":       t.State().String(),
		"transferred": t.Transferred(),
	}).Info("File transfer finished")

	if callback != nil {
		callback(err)
	}
}

// Cancel aborts the transfer and its connection.
func (t *Transfer) Cancel() error {
	t.mu.Lock()
	if t.state == StateCompleted || t.state == StateCancelled || t.state == StateError {
		t.mu.Unlock()
		return errors.New("transfer already finished")
	}
	t.state = StateCancelled
	t.err = ErrTransferCancelled
	cancel := t.cancel
	callback := t.completeCallback
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Transfer.Cancel",
		"transfer_id": t.ID.String(),
	}).Info("File transfer cancelled")

	if callback != nil {
		callback(ErrTransferCancelled)
	}
	return nil
}

// OnProgress sets a callback invoked with the running byte count.
func (t *Transfer) OnProgress(callback func(uint64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progressCallback = callback
}

// OnComplete sets a callback invoked once with the final error, nil on success.
func (t *Transfer) OnComplete(callback func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completeCallback = callback
}

// State returns the current state.
func (t *Transfer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the failure cause, if any.
func (t *Transfer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Path returns the local path: the source for outgoing transfers, the saved
// file for completed incoming ones.
func (t *Transfer) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.path
}

// Transferred returns the number of plaintext bytes moved so far.
func (t *Transfer) Transferred() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transferred
}

// Progress returns completion as a percentage.
func (t *Transfer) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Descriptor.Length == 0 {
		if t.state == StateCompleted {
			return 100.0
		}
		return 0.0
	}
	return float64(t.transferred) / float64(t.Descriptor.Length) * 100.0
}

// Speed returns the smoothed transfer speed in bytes per second.
func (t *Transfer) Speed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.speed
}

// EstimatedTimeRemaining extrapolates from the current speed.
func (t *Transfer) EstimatedTimeRemaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateRunning || t.speed <= 0 {
		return 0
	}
	remaining := float64(t.Descriptor.Length-t.transferred) / t.speed
	return time.Duration(remaining * float64(time.Second))
}

// SetStallTimeout configures stall detection; 0 disables it.
func (t *Transfer) SetStallTimeout(timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stallTimeout = timeout
}

// StallTimeout returns the configured stall timeout.
func (t *Transfer) StallTimeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stallTimeout
}

// IsStalled reports whether a running transfer has gone StallTimeout without data.
func (t *Transfer) IsStalled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stallTimeout == 0 || t.state != StateRunning {
		return false
	}
	return t.timeProvider.Since(t.lastChunkTime) >= t.stallTimeout
}

// CheckTimeout marks a stalled transfer as failed and returns ErrTransferStalled.
func (t *Transfer) CheckTimeout() error {
	if !t.IsStalled() {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function":      "Transfer.CheckTimeout",
		"transfer_id":   t.ID.String(),
		"stall_timeout": t.StallTimeout(),
		"transferred":   t.Transferred(),
		"file_size":     t.Descriptor.Length,
	}).Warn("Transfer stalled: no data received within timeout period")

	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	t.finish("", ErrTransferStalled)
	if cancel != nil {
		cancel()
	}
	return ErrTransferStalled
}
