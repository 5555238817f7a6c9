package metrics

import "testing"

type captureBackend struct {
	incs    []string
	flushes int
	closes  int
}

func (c *captureBackend) IncCounter(name string, _ float64, _ Labels) {
	c.incs = append(c.incs, name)
}

func (c *captureBackend) Flush() error { c.flushes++; return nil }
func (c *captureBackend) Close() error { c.closes++; return nil }

func TestPackageHelpersForwardToBackend(t *testing.T) {
	cb := &captureBackend{}
	SetBackend(cb)
	defer SetBackend(nil)

	IncCounter("x", 1, Labels{"k": "v"})
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(cb.incs) != 1 || cb.incs[0] != "x" {
		t.Fatalf("incs=%v", cb.incs)
	}
	if cb.flushes != 1 || cb.closes != 1 {
		t.Fatalf("flushes=%d closes=%d", cb.flushes, cb.closes)
	}
}

func TestNilBackendResetsToNop(t *testing.T) {
	SetBackend(nil)

	// Must not panic and must be a no-op.
	IncCounter("x", 1, nil)
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
