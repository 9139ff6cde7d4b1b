package domain

import "time"

// AuditAction names the operation an audit event describes.
type AuditAction string

const (
	AuditLogin         AuditAction = "login"
	AuditLogout        AuditAction = "logout"
	AuditCreateUser    AuditAction = "create_user"
	AuditResetPassword AuditAction = "reset_password"
	AuditChangeRole    AuditAction = "change_role"
	AuditDeleteUser    AuditAction = "delete_user"
	AuditBootstrap     AuditAction = "bootstrap_admin"
)

// AuditOutcome is the result recorded for an audit event.
type AuditOutcome string

const (
	OutcomeSuccess AuditOutcome = "success"
	OutcomeDenied  AuditOutcome = "denied"
	OutcomeFailed  AuditOutcome = "failed"
)

// AuditEvent records a security-relevant action. It never carries secrets.
type AuditEvent struct {
	ID         string       `json:"id" bson:"_id"`
	Action     AuditAction  `json:"action" bson:"action"`
	Actor      string       `json:"actor,omitempty" bson:"actor,omitempty"`
	Target     string       `json:"target,omitempty" bson:"target,omitempty"`
	Outcome    AuditOutcome `json:"outcome" bson:"outcome"`
	Reason     string       `json:"reason,omitempty" bson:"reason,omitempty"`
	OccurredAt time.Time    `json:"occurred_at" bson:"occurred_at"`
}
