package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMetricsExposition(t *testing.T) {
	m := New()
	m.ObserveOperation("ISSUE", "new", 20*time.Millisecond)
	m.ObserveOperation("ISSUE", "replay", time.Millisecond)
	m.ObserveOperation("ISSUE", "new", 5*time.Millisecond)
	m.IncLockTransition("vote", "PREPARED")
	m.ObserveMutexWait("OperationCoordinator.ISSUE", 2*time.Millisecond, false)
	m.ObserveAPI("POST", "/api/ops/issue", "200", 10*time.Millisecond)

	if got := m.OperationCount("ISSUE", "new"); got != 2 {
		t.Fatalf("OperationCount(new): %v", got)
	}
	if got := m.LockTransitionCount("vote", "PREPARED"); got != 1 {
		t.Fatalf("LockTransitionCount: %v", got)
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# TYPE registry_operations_total counter",
		`registry_operations_total{op_code="ISSUE",outcome="new"} 2.000000`,
		`registry_lock_transitions_total{verb="vote",state="PREPARED"} 1.000000`,
		`registry_operation_duration_seconds_count{op_code="ISSUE"} 3`,
		`registry_mutex_unavailable_total{purpose="OperationCoordinator.ISSUE"} 1.000000`,
		`registry_api_requests_total{method="POST",route="/api/ops/issue",status="200"} 1.000000`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q\n%s", want, out)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("BURN", "new", time.Millisecond)
	m.IncLockTransition("abort", "ABORTED")
	m.APIInflightInc()
	m.APIInflightDec()
	if m.OperationCount("BURN", "new") != 0 {
		t.Fatalf("nil metrics should report zero")
	}
}

func TestLabelString(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`})
	if got != `{a="x\"y",b="unknown"}` {
		t.Fatalf("labelString: %s", got)
	}
	if withLe("", "0.5") != `{le="0.5"}` {
		t.Fatalf("withLe(empty): %s", withLe("", "0.5"))
	}
}
