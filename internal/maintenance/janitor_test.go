// internal/maintenance/janitor_test.go
package maintenance

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestJanitorFiresOnSchedule(t *testing.T) {
	var sweeps atomic.Int32
	j := New("* * * * * *", func() error {
		sweeps.Add(1)
		return nil
	}, nil)

	if err := j.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer j.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for sweeps.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if sweeps.Load() == 0 {
		t.Fatal("sweep never fired")
	}
}

func TestJanitorRejectsBadSchedule(t *testing.T) {
	j := New("not a schedule", func() error { return nil }, nil)
	if err := j.Start(); err == nil {
		t.Fatal("invalid schedule accepted")
	}
}
