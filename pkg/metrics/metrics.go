package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Storefront records API-side activity for the shopping surfaces.
type Storefront struct {
	httpDuration *prometheus.HistogramVec
	otpRequests  *prometheus.CounterVec
	otpVerifies  *prometheus.CounterVec
	cartWrites   *prometheus.CounterVec
	wishWrites   *prometheus.CounterVec
	cartCache    *prometheus.CounterVec
}

// NewStorefront registers the storefront metrics on the provided registerer.
// A nil registerer yields a recorder whose methods are no-ops.
func NewStorefront(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return &Storefront{}
	}
	m := &Storefront{
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		otpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_requests_total",
			Help: "One-time passcodes issued, by delivery channel.",
		}, []string{"channel"}),
		otpVerifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "One-time passcode verification attempts, by result.",
		}, []string{"result"}),
		cartWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_writes_total",
			Help: "Cart mutations, by operation.",
		}, []string{"op"}),
		wishWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wishlist_writes_total",
			Help: "Wishlist mutations, by operation.",
		}, []string{"op"}),
		cartCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_cache_lookups_total",
			Help: "Cart read cache lookups, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.httpDuration, m.otpRequests, m.otpVerifies, m.cartWrites, m.wishWrites, m.cartCache)
	return m
}

// ObserveRequest records the latency of a served request.
func (m *Storefront) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, normalizeLabel(route), statusClass(status)).Observe(d.Seconds())
}

func (m *Storefront) IncOTPRequested(channel string) {
	if m == nil || m.otpRequests == nil {
		return
	}
	m.otpRequests.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Storefront) IncOTPVerified(result string) {
	if m == nil || m.otpVerifies == nil {
		return
	}
	m.otpVerifies.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Storefront) IncCartWrite(op string) {
	if m == nil || m.cartWrites == nil {
		return
	}
	m.cartWrites.WithLabelValues(normalizeLabel(op)).Inc()
}

func (m *Storefront) IncWishlistWrite(op string) {
	if m == nil || m.wishWrites == nil {
		return
	}
	m.wishWrites.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncCartCache records a cache hit when hit is true and a miss otherwise.
func (m *Storefront) IncCartCache(hit bool) {
	if m == nil || m.cartCache == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cartCache.WithLabelValues(result).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
