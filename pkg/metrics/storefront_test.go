package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestStorefrontExportsPageAndCheckoutMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorefront(reg)

	m.ObservePageDwell("/products/", 1500*time.Millisecond)
	m.ObservePageDwell("/products/", 500*time.Millisecond)
	m.IncCheckout(CheckoutCreated)
	m.IncCheckout(CheckoutEmpty)
	m.IncCheckout(CheckoutEmpty)
	m.IncOrderTransition("DELIVERED")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "storefront_page_transitions_total", "page", "/products/"); err != nil {
		t.Fatalf("fetch transitions: %v", err)
	} else if got != 2 {
		t.Fatalf("expected transitions=2, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "storefront_page_dwell_seconds", "page", "/products/"); err != nil {
		t.Fatalf("fetch dwell: %v", err)
	} else if got != 2 {
		t.Fatalf("expected dwell sum=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "storefront_checkouts_total", "result", CheckoutEmpty); err != nil {
		t.Fatalf("fetch checkouts: %v", err)
	} else if got != 2 {
		t.Fatalf("expected empty checkouts=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, OrderTransitions, "status", "DELIVERED"); err != nil {
		t.Fatalf("fetch transitions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected delivered=1, got %f", got)
	}
}

func TestNilStorefrontIsNoop(t *testing.T) {
	var m *Storefront
	m.ObservePageDwell("/", time.Second)
	m.IncCheckout(CheckoutFailed)

	NewStorefront(nil).IncOrderTransition("CANCELLED")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, lp := range labels {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
