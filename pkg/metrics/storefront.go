package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes recorded under the result label.
const (
	CheckoutCreated  = "created"
	CheckoutEmpty    = "empty"
	CheckoutInvalid  = "invalid"
	CheckoutFailed   = "failed"
	OrderTransitions = "storefront_order_transitions_total"
)

// Storefront bundles the collectors the storefront exports.
type Storefront struct {
	pageDwell       *prometheus.HistogramVec
	pageTransitions *prometheus.CounterVec
	checkouts       *prometheus.CounterVec
	orderEvents     *prometheus.CounterVec
}

// NewStorefront registers the storefront metrics on reg. A nil registerer
// yields a no-op recorder.
func NewStorefront(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return &Storefront{}
	}
	pageDwell := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_page_dwell_seconds",
		Help:    "Time a visitor spent on a page before requesting the next one.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900},
	}, []string{"page"})
	pageTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_page_transitions_total",
		Help: "Page-to-page transitions observed by the page timer.",
	}, []string{"page"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkouts_total",
		Help: "Checkout attempts grouped by outcome.",
	}, []string{"result"})
	orderEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: OrderTransitions,
		Help: "Order lifecycle transitions grouped by target status.",
	}, []string{"status"})
	reg.MustRegister(pageDwell, pageTransitions, checkouts, orderEvents)
	return &Storefront{
		pageDwell:       pageDwell,
		pageTransitions: pageTransitions,
		checkouts:       checkouts,
		orderEvents:     orderEvents,
	}
}

// ObservePageDwell records time spent on page, which should be a route
// pattern rather than a raw path.
func (s *Storefront) ObservePageDwell(page string, dwell time.Duration) {
	if s == nil || s.pageDwell == nil {
		return
	}
	page = normalizeLabel(page)
	s.pageDwell.WithLabelValues(page).Observe(dwell.Seconds())
	s.pageTransitions.WithLabelValues(page).Inc()
}

// IncCheckout counts a checkout attempt with the given result.
func (s *Storefront) IncCheckout(result string) {
	if s == nil || s.checkouts == nil {
		return
	}
	s.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncOrderTransition counts an order moving into status.
func (s *Storefront) IncOrderTransition(status string) {
	if s == nil || s.orderEvents == nil {
		return
	}
	s.orderEvents.WithLabelValues(normalizeLabel(status)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
