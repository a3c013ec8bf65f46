package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Auth outcome labels.
const (
	outcomeSuccess        = "success"
	outcomeInvalid        = "invalid"
	outcomeNotFound       = "not_found"
	outcomeBadCredentials = "bad_credentials"
	outcomeRateLimited    = "rate_limited"
	outcomeError          = "error"
)

// AuthAttempts counts auth flow outcomes by operation and result.
var AuthAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "accounts_auth_attempts_total",
		Help: "Total number of authentication flow attempts by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

// UsersRegistered counts successful registrations.
var UsersRegistered = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "accounts_users_registered_total",
		Help: "Total number of user accounts registered",
	},
)

func recordAuth(operation, outcome string) {
	AuthAttempts.WithLabelValues(operation, outcome).Inc()
}
