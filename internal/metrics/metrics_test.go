package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCountersIncrementIndependently(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MalformedDropped.Inc()
	m.MalformedDropped.Inc()
	m.ReplayDropped.Inc()

	var malformed dto.Metric
	if err := m.MalformedDropped.Write(&malformed); err != nil {
		t.Fatalf("write malformed: %v", err)
	}
	if got := malformed.GetCounter().GetValue(); got != 2 {
		t.Fatalf("got %v want 2", got)
	}

	var replay dto.Metric
	if err := m.ReplayDropped.Write(&replay); err != nil {
		t.Fatalf("write replay: %v", err)
	}
	if got := replay.GetCounter().GetValue(); got != 1 {
		t.Fatalf("got %v want 1", got)
	}
}

func TestPolicyRejectedIsLabeled(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PolicyRejected.WithLabelValues("untrusted").Inc()
	m.PolicyRejected.WithLabelValues("untrusted").Inc()
	m.PolicyRejected.WithLabelValues("expired").Inc()

	var untrusted dto.Metric
	if err := m.PolicyRejected.WithLabelValues("untrusted").(prometheus.Counter).Write(&untrusted); err != nil {
		t.Fatalf("write untrusted: %v", err)
	}
	if got := untrusted.GetCounter().GetValue(); got != 2 {
		t.Fatalf("got %v want 2", got)
	}
}
