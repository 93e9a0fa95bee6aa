package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncFallback(t *testing.T) {
	before := testutil.ToFloat64(fallbacks.WithLabelValues("extraction"))
	IncFallback("extraction")
	after := testutil.ToFloat64(fallbacks.WithLabelValues("extraction"))
	if after != before+1 {
		t.Errorf("fallback counter = %v, want %v", after, before+1)
	}
}

func TestIncCache(t *testing.T) {
	IncCache(true)
	IncCache(false)
	if got := testutil.ToFloat64(cacheLookups.WithLabelValues("hit")); got < 1 {
		t.Errorf("hit counter = %v, want >= 1", got)
	}
	if got := testutil.ToFloat64(cacheLookups.WithLabelValues("miss")); got < 1 {
		t.Errorf("miss counter = %v, want >= 1", got)
	}
}

func TestObserveDoesNotPanic(t *testing.T) {
	Register()
	ObserveStage("decision", time.Now())
	ObserveClauses(3)
	IncRoute("claim")
	IncDecision("APPROVED")
	IncRuleOverride("waiting_period")
}
