// Package metrics exposes Prometheus counters for the auth lifecycle.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector registers and updates the console's auth metrics.
type Collector struct {
	loginAttempts      *prometheus.CounterVec
	tokenVerifications *prometheus.CounterVec
	signups            *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adminpanel_login_attempts_total",
			Help: "Login attempts, partitioned by result.",
		}, []string{"result"}),
		tokenVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adminpanel_token_verifications_total",
			Help: "Stored token verifications against the backend, partitioned by result.",
		}, []string{"result"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adminpanel_signups_total",
			Help: "Signup attempts, partitioned by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(c.loginAttempts, c.tokenVerifications, c.signups)
	return c
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (c *Collector) RecordLoginAttempt(success bool) {
	c.loginAttempts.WithLabelValues(result(success)).Inc()
}

func (c *Collector) RecordVerification(success bool) {
	c.tokenVerifications.WithLabelValues(result(success)).Inc()
}

func (c *Collector) RecordSignup(success bool) {
	c.signups.WithLabelValues(result(success)).Inc()
}
