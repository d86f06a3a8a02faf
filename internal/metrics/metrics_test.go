package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// gatherFamily returns the gathered metric family with the given name.
func gatherFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestRequestsTotal_LabelsAndValue(t *testing.T) {
	RequestsTotal.WithLabelValues("chat", "openai", "gpt-4o", "success").Add(3)

	f := gatherFamily(t, "modelrouter_requests_total")
	if f == nil {
		t.Fatal("requests_total not registered")
	}
	for _, m := range f.GetMetric() {
		if labelValue(m, "operation") != "chat" || labelValue(m, "status") != "success" {
			continue
		}
		if got := m.GetCounter().GetValue(); got < 3 {
			t.Errorf("counter = %v, want at least 3", got)
		}
		return
	}
	t.Error("labelled series not found")
}

func TestRequestDuration_Observations(t *testing.T) {
	RequestDuration.WithLabelValues("chat", "openai", "gpt-4o").Observe(0.2)
	RequestDuration.WithLabelValues("chat", "openai", "gpt-4o").Observe(0.4)

	f := gatherFamily(t, "modelrouter_request_duration_seconds")
	if f == nil {
		t.Fatal("request_duration not registered")
	}
	m := f.GetMetric()[0]
	h := m.GetHistogram()
	if h.GetSampleCount() < 2 {
		t.Errorf("sample count = %d, want at least 2", h.GetSampleCount())
	}
	if h.GetSampleSum() < 0.6-1e-9 {
		t.Errorf("sample sum = %v", h.GetSampleSum())
	}
}

func TestPipelineErrors_KindLabel(t *testing.T) {
	PipelineErrors.WithLabelValues("embedding", "no-model-found").Inc()

	f := gatherFamily(t, "modelrouter_pipeline_errors_total")
	if f == nil {
		t.Fatal("pipeline_errors not registered")
	}
	found := false
	for _, m := range f.GetMetric() {
		if labelValue(m, "kind") == "no-model-found" && labelValue(m, "operation") == "embedding" {
			found = true
		}
	}
	if !found {
		t.Error("kind-labelled series not found")
	}
}
