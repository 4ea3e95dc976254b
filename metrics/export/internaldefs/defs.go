package internaldefs

import (
	"strconv"

	"github.com/MrEthical07/authsvc"
)

// Namespace prefixes every exported metric name.
const Namespace = "authsvc"

// Def binds an engine metric to its exported name and help text.
type Def struct {
	ID   authsvc.MetricID
	Name string
	Help string
}

var help = map[authsvc.MetricID]string{
	authsvc.MetricRegisterSuccess:             "Successful registrations.",
	authsvc.MetricRegisterDuplicate:           "Registrations rejected for an existing email.",
	authsvc.MetricLoginSuccess:                "Successful login attempts.",
	authsvc.MetricLoginFailure:                "Failed login attempts.",
	authsvc.MetricLoginRateLimited:            "Login attempts rejected by the per-client budget.",
	authsvc.MetricRefreshSuccess:              "Successful refresh rotations.",
	authsvc.MetricRefreshFailure:              "Failed refresh attempts.",
	authsvc.MetricRefreshReuseDetected:        "Refresh tokens presented after rotation or revocation.",
	authsvc.MetricTOTPRequired:                "Logins stopped for a missing second factor.",
	authsvc.MetricTOTPFailure:                 "Failed TOTP verifications.",
	authsvc.MetricTOTPSuccess:                 "Successful TOTP verifications.",
	authsvc.MetricTOTPEnabled:                 "Second factors enabled.",
	authsvc.MetricTOTPDisabled:                "Second factors disabled.",
	authsvc.MetricSessionCreated:              "Refresh grants issued.",
	authsvc.MetricSessionInvalidated:          "Refresh grants revoked.",
	authsvc.MetricLogout:                      "Single-session logouts.",
	authsvc.MetricLogoutAll:                   "Logout-all operations.",
	authsvc.MetricAccessRejected:              "Access tokens rejected as invalid or revoked.",
	authsvc.MetricPasswordChangeSuccess:       "Successful password changes.",
	authsvc.MetricPasswordChangeInvalidOld:    "Password changes rejected for a wrong current password.",
	authsvc.MetricPasswordResetRequest:        "Password reset codes sent.",
	authsvc.MetricPasswordResetConfirmSuccess: "Successful password resets.",
	authsvc.MetricPasswordResetConfirmFailure: "Password resets rejected for a bad code.",
	authsvc.MetricEmailVerificationRequest:    "Verification codes sent.",
	authsvc.MetricEmailVerificationSuccess:    "Successful email verifications.",
	authsvc.MetricEmailVerificationFailure:    "Email verifications rejected for a bad code.",
	authsvc.MetricFederatedLogin:              "Successful federated logins.",
	authsvc.MetricFederatedUserCreated:        "Accounts created by federated login.",
	authsvc.MetricMailFailure:                 "Outbound mail delivery failures.",
	authsvc.MetricValidateLatency:             "Access token validation latency.",
	authsvc.MetricLoginLatency:                "Password login latency, including hashing.",
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = buildDefs(authsvc.Counters(), "_total")

// HistogramDefs lists every exported histogram in exposition order.
var HistogramDefs = buildDefs(authsvc.Histograms(), "_seconds")

// BucketBounds are authsvc.LatencyBuckets in seconds. The overflow bucket
// has no entry.
var BucketBounds = func() []float64 {
	out := make([]float64, len(authsvc.LatencyBuckets))
	for i, d := range authsvc.LatencyBuckets {
		out[i] = d.Seconds()
	}
	return out
}()

func buildDefs(ids []authsvc.MetricID, suffix string) []Def {
	out := make([]Def, 0, len(ids))
	for _, id := range ids {
		out = append(out, Def{
			ID:   id,
			Name: Namespace + "_" + id.String() + suffix,
			Help: help[id],
		})
	}
	return out
}

// LeLabel formats bucket i for a Prometheus le label. The overflow bucket
// is "+Inf".
func LeLabel(i int) string {
	if i >= len(BucketBounds) {
		return "+Inf"
	}
	return strconv.FormatFloat(BucketBounds[i], 'g', -1, 64)
}
