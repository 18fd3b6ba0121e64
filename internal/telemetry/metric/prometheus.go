// Package metric provides Prometheus metrics for CredGate.
//
// It exposes metrics in Prometheus format for monitoring login
// outcomes, session activity, token validations, and request latency.
package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values for the login attempts counter.
const (
	LoginResultSuccess            = "success"
	LoginResultInvalidCredentials = "invalid_credentials"
	LoginResultLocked             = "locked"
	LoginResultRateLimited        = "rate_limited"
	LoginResultError              = "error"
)

// Result label values for the token validations counter.
const (
	ValidationResultValid   = "valid"
	ValidationResultInvalid = "invalid"
)

// Registry holds all application metrics backed by a dedicated
// Prometheus registry.
//
// All methods are safe to call on a nil receiver, so components can
// treat metrics as optional.
type Registry struct {
	reg *prometheus.Registry

	// Auth metrics
	LoginAttempts *prometheus.CounterVec

	// Session metrics
	SessionsCreated prometheus.Counter
	SessionsRevoked prometheus.Counter
	SessionsExpired prometheus.Counter

	// Token metrics
	TokenValidations *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a metrics registry with all application metrics
// registered, plus the standard Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credgate",
			Name:      "login_attempts_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "credgate",
			Name:      "sessions_created_total",
			Help:      "Sessions created since start.",
		}),
		SessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "credgate",
			Name:      "sessions_revoked_total",
			Help:      "Sessions revoked since start.",
		}),
		SessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "credgate",
			Name:      "sessions_expired_total",
			Help:      "Expired sessions removed by GC since start.",
		}),
		TokenValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credgate",
			Name:      "token_validations_total",
			Help:      "Token validations by result.",
		}, []string{"result"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credgate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "credgate",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		r.LoginAttempts,
		r.SessionsCreated,
		r.SessionsRevoked,
		r.SessionsExpired,
		r.TokenValidations,
		r.RequestsTotal,
		r.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Prometheus returns the underlying registry so storage engines can
// register their own collectors (e.g. the Badger size gauges).
func (r *Registry) Prometheus() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// RecordLogin records the outcome of one login attempt.
func (r *Registry) RecordLogin(result string) {
	if r == nil {
		return
	}
	r.LoginAttempts.WithLabelValues(result).Inc()
}

// RecordValidation records the outcome of one token validation.
func (r *Registry) RecordValidation(valid bool) {
	if r == nil {
		return
	}
	result := ValidationResultInvalid
	if valid {
		result = ValidationResultValid
	}
	r.TokenValidations.WithLabelValues(result).Inc()
}

// SessionCreated records one created session.
func (r *Registry) SessionCreated() {
	if r == nil {
		return
	}
	r.SessionsCreated.Inc()
}

// SessionRevoked records n revoked sessions.
func (r *Registry) SessionRevoked(n int) {
	if r == nil {
		return
	}
	r.SessionsRevoked.Add(float64(n))
}

// SessionExpired records n sessions removed by GC.
func (r *Registry) SessionExpired(n int) {
	if r == nil {
		return
	}
	r.SessionsExpired.Add(float64(n))
}

// ObserveRequest records one completed HTTP request.
func (r *Registry) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
