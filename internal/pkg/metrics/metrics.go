// Package metrics defines and registers all custom Prometheus metrics for the
// identity service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// ── Authentication ────────────────────────────────────────────────────────────

// AuthenticationsTotal counts authentication attempts.
// Label:
//   - result: "success", "invalid_credentials", "rate_limited" or "error"
var AuthenticationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authentications_total",
		Help:      "Total number of authentication attempts, by result.",
	},
	[]string{"result"},
)

// AuthorizationDecisionsTotal counts role checks made against identity tokens.
// Labels:
//   - required_role: the role the caller needed
//   - decision: "allow" or "deny"
var AuthorizationDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_decisions_total",
		Help:      "Total number of authorization decisions, by required role and decision.",
	},
	[]string{"required_role", "decision"},
)

// PasswordHashDuration measures key derivation time.
// Label:
//   - operation: "hash" or "verify"
var PasswordHashDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "password_hash_duration_seconds",
		Help:      "Duration of password hashing and verification.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1},
	},
	[]string{"operation"},
)

// ── Accounts ──────────────────────────────────────────────────────────────────

// AccountMutationsTotal counts account mutations.
// Labels:
//   - operation: "create", "reset_password", "change_role", "delete", "rehash"
//   - result: "success", "forbidden", "invalid_input", "not_found", "conflict", "error"
var AccountMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "account_mutations_total",
		Help:      "Total number of account mutations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// SessionsRevokedTotal counts sessions revoked by logout or account changes.
var SessionsRevokedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_revoked_total",
		Help:      "Total number of sessions revoked.",
	},
)

// ── Audit ─────────────────────────────────────────────────────────────────────

// AuditEventsTotal counts audit events by delivery result.
// Label:
//   - result: "written", "failed" or "dropped"
var AuditEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_total",
		Help:      "Total number of audit events, by delivery result.",
	},
	[]string{"result"},
)

// AuditQueueDepth tracks pending events in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
