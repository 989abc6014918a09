package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCountsOperationsAndErrors(t *testing.T) {
	c := NewCollector("keyfs_test")

	c.Observe("ls", 5*time.Millisecond, nil)
	c.Observe("ls", 7*time.Millisecond, nil)
	c.Observe("rm", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(c.operationCounter.WithLabelValues("ls")); got != 2 {
		t.Errorf("ls operations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.operationCounter.WithLabelValues("rm")); got != 1 {
		t.Errorf("rm operations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.errorCounter.WithLabelValues("rm")); got != 1 {
		t.Errorf("rm errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.errorCounter.WithLabelValues("ls")); got != 0 {
		t.Errorf("ls errors = %v, want 0", got)
	}
}

func TestNilCollectorIsNoOp(t *testing.T) {
	var c *Collector
	// must not panic
	c.Observe("ls", time.Millisecond, nil)
	if c.Handler() == nil {
		t.Error("nil collector should still return a handler")
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	c := NewCollector("keyfs_test")
	if c.Handler() == nil {
		t.Fatal("Handler() returned nil")
	}
}
