package provider

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// RateLimited caps how fast one provider account is hit, across every blast using it.
type RateLimited struct {
	next    Adapter
	limiter *rate.Limiter
}

// NewRateLimited allows perSec sends per second with a burst of one. perSec <= 0 disables the limit.
func NewRateLimited(next Adapter, perSec float64) Adapter {
	if perSec <= 0 {
		return next
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSec), 1)}
}

func (r *RateLimited) Send(ctx context.Context, address, subject, body string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	return r.next.Send(ctx, address, subject, body)
}

// Metrics records send counts and latency per provider.
type Metrics struct {
	next     Adapter
	name     string
	channel  string
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// MetricsCollectors are shared by every Metrics adapter registered on the same registry.
type MetricsCollectors struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetricsCollectors(reg prometheus.Registerer) *MetricsCollectors {
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_send_total",
			Help: "Provider send attempts by outcome.",
		},
		[]string{"provider", "channel", "status", "code"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_send_duration_seconds",
			Help:    "Provider send latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "channel"},
	)
	reg.MustRegister(total, duration)
	return &MetricsCollectors{total: total, duration: duration}
}

func NewMetrics(name, channel string, next Adapter, c *MetricsCollectors) *Metrics {
	return &Metrics{
		next:     next,
		name:     name,
		channel:  channel,
		total:    c.total,
		duration: c.duration,
	}
}

func (m *Metrics) Send(ctx context.Context, address, subject, body string) error {
	start := time.Now()
	err := m.next.Send(ctx, address, subject, body)
	m.duration.WithLabelValues(m.name, m.channel).Observe(time.Since(start).Seconds())

	status, code := "succeeded", ""
	if err != nil {
		status = "failed"
		var te *TransportError
		if errors.As(err, &te) {
			code = te.Code
		}
	}
	m.total.WithLabelValues(m.name, m.channel, status, code).Inc()
	return err
}
