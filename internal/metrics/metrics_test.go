package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveGeneration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveGeneration("ideas", OutcomeSuccess, time.Now())
	m.ObserveGeneration("ideas", OutcomeFailure, time.Now())
	m.ObserveGeneration("ideas", OutcomeSuccess, time.Now())

	if got := testutil.ToFloat64(m.GenerationRequests.WithLabelValues("ideas", OutcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.CollectAndCount(m.GenerationDuration); got != 1 {
		t.Fatalf("expected one histogram series, got %d", got)
	}
}

func TestObserveHistoryWrite(t *testing.T) {
	t.Parallel()

	m := New(prometheus.NewRegistry())
	m.ObserveHistoryWrite(nil)
	m.ObserveHistoryWrite(errors.New("boom"))
	m.ObserveHashtagOverflow()
	m.SetSessions(3)

	if got := testutil.ToFloat64(m.HistoryWrites.WithLabelValues(OutcomeFailure)); got != 1 {
		t.Fatalf("expected one failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.HashtagOverflow); got != 1 {
		t.Fatalf("expected one overflow, got %v", got)
	}
	if got := testutil.ToFloat64(m.ActiveSessions); got != 3 {
		t.Fatalf("expected 3 sessions, got %v", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveGeneration("posts", OutcomeSuccess, time.Now())
	m.ObserveHistoryWrite(nil)
	m.ObserveHashtagOverflow()
	m.SetSessions(1)
}
