package obsmetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequestIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("example", "2xx"))
	ObserveRequest("example", 200, 5*time.Millisecond)
	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("example", "2xx"))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{
		200: "2xx",
		301: "3xx",
		404: "4xx",
		502: "5xx",
	}
	for status, want := range cases {
		if got := statusClass(status); got != want {
			t.Fatalf("statusClass(%d) = %q, want %q", status, got, want)
		}
	}
}
