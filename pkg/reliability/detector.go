package reliability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

// ErrEmptyID is returned when a detector is asked about an empty identifier.
var ErrEmptyID = errors.New("reliability: empty message identifier")

// Detector reports whether a message identifier was already seen within the
// detection window. Seen records the identifier as a side effect.
type Detector interface {
	Seen(ctx context.Context, messageID string) (bool, error)
	Close() error
}

// Fingerprint computes the hex encoded SHA-256 digest of content.
func Fingerprint(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// MemoryDetector tracks identifiers in process memory.
type MemoryDetector struct {
	mu       sync.Mutex
	received map[string]time.Time
	window   time.Duration
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryDetector creates a detector remembering identifiers for window.
// Expired identifiers are purged every window, at most hourly.
func NewMemoryDetector(window time.Duration) *MemoryDetector {
	d := newMemoryDetector(window, time.Now)
	go d.cleanupLoop(cleanupInterval(window))
	return d
}

func newMemoryDetector(window time.Duration, now func() time.Time) *MemoryDetector {
	return &MemoryDetector{
		received: make(map[string]time.Time),
		window:   window,
		now:      now,
		stop:     make(chan struct{}),
	}
}

func cleanupInterval(window time.Duration) time.Duration {
	if window <= 0 || window > time.Hour {
		return time.Hour
	}
	return window
}

// Seen reports whether messageID was seen within the window and records it.
// A duplicate does not extend the window of the first reception.
func (d *MemoryDetector) Seen(_ context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, ErrEmptyID
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if receivedAt, ok := d.received[messageID]; ok && now.Sub(receivedAt) < d.window {
		return true, nil
	}
	d.received[messageID] = now
	return false, nil
}

// Len returns the number of remembered identifiers.
func (d *MemoryDetector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.received)
}

// Purge removes identifiers older than the window.
func (d *MemoryDetector) Purge() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, receivedAt := range d.received {
		if now.Sub(receivedAt) >= d.window {
			delete(d.received, id)
		}
	}
}

func (d *MemoryDetector) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.Purge()
		case <-d.stop:
			return
		}
	}
}

// Close stops the cleanup goroutine.
func (d *MemoryDetector) Close() error {
	d.stopOnce.Do(func() { close(d.stop) })
	return nil
}
