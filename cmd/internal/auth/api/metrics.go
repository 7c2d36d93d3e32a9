package authapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the auth outcome counters. Registration is parameterized so
// tests can use private registries.
type Metrics struct {
	logins        *prometheus.CounterVec
	registrations prometheus.Counter
	refreshes     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vidra_auth_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		registrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "vidra_auth_registrations_total",
			Help: "Accounts created.",
		}),
		refreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "vidra_auth_refresh_rotations_total",
			Help: "Successful refresh token rotations.",
		}),
	}
}

func (m *Metrics) loginOK() {
	if m != nil {
		m.logins.WithLabelValues("ok").Inc()
	}
}

func (m *Metrics) loginFail() {
	if m != nil {
		m.logins.WithLabelValues("fail").Inc()
	}
}

func (m *Metrics) registered() {
	if m != nil {
		m.registrations.Inc()
	}
}

func (m *Metrics) refreshed() {
	if m != nil {
		m.refreshes.Inc()
	}
}
