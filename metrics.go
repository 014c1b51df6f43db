package authcore

import "sync/atomic"

// MetricID indexes one engine counter.
type MetricID uint16

const (
	MetricSignupSuccess MetricID = iota
	MetricSignupDuplicate
	MetricSignupRejected
	MetricSigninSuccess
	MetricSigninFailure
	MetricSigninUnverified
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricVerifySuccess
	MetricVerifyReplayed
	MetricActivationResent
	MetricResetRequested
	MetricResetConfirmed
	MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld
	MetricRateLimitHit
	metricIDCount
)

// MetricNames maps each MetricID to its stable export name, indexed by ID.
var MetricNames = [metricIDCount]string{
	MetricSignupSuccess:            "authcore_signup_success_total",
	MetricSignupDuplicate:          "authcore_signup_duplicate_total",
	MetricSignupRejected:           "authcore_signup_rejected_total",
	MetricSigninSuccess:            "authcore_signin_success_total",
	MetricSigninFailure:            "authcore_signin_failure_total",
	MetricSigninUnverified:         "authcore_signin_unverified_total",
	MetricRefreshSuccess:           "authcore_refresh_success_total",
	MetricRefreshFailure:           "authcore_refresh_failure_total",
	MetricVerifySuccess:            "authcore_verify_success_total",
	MetricVerifyReplayed:           "authcore_verify_replayed_total",
	MetricActivationResent:         "authcore_activation_resent_total",
	MetricResetRequested:           "authcore_reset_requested_total",
	MetricResetConfirmed:           "authcore_reset_confirmed_total",
	MetricPasswordChangeSuccess:    "authcore_password_change_success_total",
	MetricPasswordChangeInvalidOld: "authcore_password_change_invalid_old_total",
	MetricRateLimitHit:             "authcore_rate_limit_hit_total",
}

// Metrics is a fixed set of lock-free counters incremented on engine hot
// paths. A nil *Metrics is a valid no-op receiver.
type Metrics struct {
	counters [metricIDCount]atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	if m == nil {
		return s
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = m.counters[id].Load()
	}
	return s
}
