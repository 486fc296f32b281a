package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordComparison(t *testing.T) {
	pass := testutil.ToFloat64(Comparisons.WithLabelValues("pass"))
	fail := testutil.ToFloat64(Comparisons.WithLabelValues("fail"))

	RecordComparison(true)
	RecordComparison(false)
	RecordComparison(false)

	if got := testutil.ToFloat64(Comparisons.WithLabelValues("pass")) - pass; got != 1 {
		t.Errorf("Expected 1 pass, got %v", got)
	}
	if got := testutil.ToFloat64(Comparisons.WithLabelValues("fail")) - fail; got != 2 {
		t.Errorf("Expected 2 fails, got %v", got)
	}
}

func TestHealthStatus(t *testing.T) {
	SetHealthy()
	if got := testutil.ToFloat64(HealthStatus); got != 1 {
		t.Errorf("Expected healthy=1, got %v", got)
	}
	SetUnhealthy()
	if got := testutil.ToFloat64(HealthStatus); got != 0 {
		t.Errorf("Expected healthy=0, got %v", got)
	}
}

func TestRecordCache(t *testing.T) {
	before := testutil.ToFloat64(CacheRequests.WithLabelValues("hit"))
	RecordCache("hit")
	if got := testutil.ToFloat64(CacheRequests.WithLabelValues("hit")) - before; got != 1 {
		t.Errorf("Expected 1 hit, got %v", got)
	}
}
