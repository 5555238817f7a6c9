// Package metrics is a minimal seam between the ingestion core and a metrics
// system. The core calls the package-level helpers; binaries pick a backend
// at startup. The default backend is a no-op, so library code can emit
// metrics unconditionally.
package metrics

import "sync"

// Labels are free-form key/value tags attached to a metric point.
type Labels map[string]string

// Backend receives metric writes. Implementations must be safe for
// concurrent use.
type Backend interface {
	// IncCounter adds delta to a named counter. Non-positive deltas are
	// ignored.
	IncCounter(name string, delta float64, labels Labels)

	// Flush pushes buffered metrics to the destination.
	Flush() error

	// Close stops background work and performs a final Flush.
	Close() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels) {}
func (nopBackend) Flush() error                       { return nil }
func (nopBackend) Close() error                       { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. Call once at startup.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to the named counter on the active backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// Flush flushes the active backend.
func Flush() error { return current().Flush() }

// Close closes the active backend.
func Close() error { return current().Close() }
