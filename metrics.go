package authsvc

import (
	"sort"
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or latency histogram.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterDuplicate
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricTOTPRequired
	MetricTOTPFailure
	MetricTOTPSuccess
	MetricTOTPEnabled
	MetricTOTPDisabled
	MetricSessionCreated
	MetricSessionInvalidated
	MetricLogout
	MetricLogoutAll
	MetricAccessRejected
	MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld
	MetricPasswordResetRequest
	MetricPasswordResetConfirmSuccess
	MetricPasswordResetConfirmFailure
	MetricEmailVerificationRequest
	MetricEmailVerificationSuccess
	MetricEmailVerificationFailure
	MetricFederatedLogin
	MetricFederatedUserCreated
	MetricMailFailure

	// Histograms follow the counters.
	MetricValidateLatency
	MetricLoginLatency

	metricIDCount
)

const firstHistogram = MetricValidateLatency

var metricNames = [metricIDCount]string{
	MetricRegisterSuccess:             "register_success",
	MetricRegisterDuplicate:           "register_duplicate",
	MetricLoginSuccess:                "login_success",
	MetricLoginFailure:                "login_failure",
	MetricLoginRateLimited:            "login_rate_limited",
	MetricRefreshSuccess:              "refresh_success",
	MetricRefreshFailure:              "refresh_failure",
	MetricRefreshReuseDetected:        "refresh_reuse_detected",
	MetricTOTPRequired:                "totp_required",
	MetricTOTPFailure:                 "totp_failure",
	MetricTOTPSuccess:                 "totp_success",
	MetricTOTPEnabled:                 "totp_enabled",
	MetricTOTPDisabled:                "totp_disabled",
	MetricSessionCreated:              "session_created",
	MetricSessionInvalidated:          "session_invalidated",
	MetricLogout:                      "logout",
	MetricLogoutAll:                   "logout_all",
	MetricAccessRejected:              "access_rejected",
	MetricPasswordChangeSuccess:       "password_change_success",
	MetricPasswordChangeInvalidOld:    "password_change_invalid_old",
	MetricPasswordResetRequest:        "password_reset_request",
	MetricPasswordResetConfirmSuccess: "password_reset_confirm_success",
	MetricPasswordResetConfirmFailure: "password_reset_confirm_failure",
	MetricEmailVerificationRequest:    "email_verification_request",
	MetricEmailVerificationSuccess:    "email_verification_success",
	MetricEmailVerificationFailure:    "email_verification_failure",
	MetricFederatedLogin:              "federated_login",
	MetricFederatedUserCreated:        "federated_user_created",
	MetricMailFailure:                 "mail_failure",
	MetricValidateLatency:             "validate_latency",
	MetricLoginLatency:                "login_latency",
}

// String returns the snake_case base name used by exporters.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// IsHistogram reports whether id is a latency histogram rather than a counter.
func (id MetricID) IsHistogram() bool {
	return id >= firstHistogram && id < metricIDCount
}

// Counters lists every counter id in declaration order.
func Counters() []MetricID {
	out := make([]MetricID, 0, int(firstHistogram))
	for id := MetricID(0); id < firstHistogram; id++ {
		out = append(out, id)
	}
	return out
}

// Histograms lists every histogram id in declaration order.
func Histograms() []MetricID {
	out := make([]MetricID, 0, int(metricIDCount-firstHistogram))
	for id := firstHistogram; id < metricIDCount; id++ {
		out = append(out, id)
	}
	return out
}

// LatencyBuckets are the inclusive upper bounds shared by every histogram.
// Observations above the last bound land in an implicit overflow bucket.
var LatencyBuckets = []time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

// Keeps hot counters on separate cache lines.
type paddedCounter struct {
	atomic.Uint64
	_ [56]byte
}

type latencyHistogram struct {
	buckets []atomic.Uint64
	sumNano atomic.Int64
}

func (h *latencyHistogram) observe(d time.Duration) {
	i := sort.Search(len(LatencyBuckets), func(i int) bool { return d <= LatencyBuckets[i] })
	h.buckets[i].Add(1)
	h.sumNano.Add(int64(d))
}

// Metrics is a fixed set of lock-free counters and latency histograms.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [firstHistogram]paddedCounter
	histograms    [metricIDCount - firstHistogram]latencyHistogram
}

// HistogramSnapshot is a point-in-time copy of one histogram. Buckets holds
// per-bucket counts, one per LatencyBuckets entry plus the overflow bucket.
type HistogramSnapshot struct {
	Buckets []uint64
	Count   uint64
	Sum     time.Duration
}

// Cumulative returns running totals over Buckets, as Prometheus expects.
func (h HistogramSnapshot) Cumulative() []uint64 {
	out := make([]uint64, len(h.Buckets))
	var running uint64
	for i, v := range h.Buckets {
		running += v
		out[i] = running
	}
	return out
}

// MetricsSnapshot is a point-in-time copy of every metric. Both maps are
// empty when metrics are disabled; Histograms is empty when latency
// tracking is off.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID]HistogramSnapshot
}

func emptySnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID]HistogramSnapshot{},
	}
}

// NewMetrics creates a metric set according to cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	m := &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
	for i := range m.histograms {
		m.histograms[i].buckets = make([]atomic.Uint64, len(LatencyBuckets)+1)
	}
	return m
}

func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= firstHistogram || n == 0 {
		return
	}
	m.counters[id].Add(n)
}

// Observe records d in histogram id. Counter ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || !id.IsHistogram() {
		return
	}
	m.histograms[id-firstHistogram].observe(d)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= firstHistogram {
		return 0
	}
	return m.counters[id].Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := emptySnapshot()
	if m == nil || !m.enabled {
		return s
	}

	for id := MetricID(0); id < firstHistogram; id++ {
		s.Counters[id] = m.counters[id].Load()
	}
	if !m.enableLatency {
		return s
	}

	for i := range m.histograms {
		h := &m.histograms[i]
		hs := HistogramSnapshot{
			Buckets: make([]uint64, len(h.buckets)),
			Sum:     time.Duration(h.sumNano.Load()),
		}
		for b := range h.buckets {
			hs.Buckets[b] = h.buckets[b].Load()
			hs.Count += hs.Buckets[b]
		}
		s.Histograms[firstHistogram+MetricID(i)] = hs
	}
	return s
}
