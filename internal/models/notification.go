package models

import "time"

// NotificationKind enumerates clearance workflow events forwarded to the
// notification sink.
type NotificationKind string

const (
	NotificationAdminApproved      NotificationKind = "ADMIN_CHECKPOINT_APPROVED"
	NotificationSubjectsUnlocked   NotificationKind = "SUBJECT_APPROVALS_OPEN"
	NotificationClearanceApproved  NotificationKind = "CLEARANCE_APPROVED"
	NotificationCheckpointRejected NotificationKind = "CHECKPOINT_REJECTED"
)

// NotificationEvent is a fire-and-forget message for one recipient. Delivery
// failure never affects the approval that produced it.
type NotificationEvent struct {
	RecipientID string            `json:"recipient_id"`
	Kind        NotificationKind  `json:"kind"`
	Context     map[string]string `json:"context,omitempty"`
	EmittedAt   time.Time         `json:"emitted_at"`
}
