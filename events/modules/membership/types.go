// Package membership defines the Kafka contracts of the membership workflow:
// events announcing completed transitions and commands driving new ones.
package membership

import (
	"time"
)

// SchemaVersion is stamped on every produced event.
const SchemaVersion = "v1"

// MembershipEvent is published after a workflow transition has been persisted.
type MembershipEvent struct {
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EventTime     time.Time `json:"event_time"`
	SchemaVersion string    `json:"schema_version"`

	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
	UserID           string `json:"user_id"`
	Username         string `json:"username,omitempty"`

	// Set on approvals that moved the user out of another organization
	PreviousOrganizationID string `json:"previous_organization_id,omitempty"`
	Comment                string `json:"comment,omitempty"`
}

// Commands accepted on the commands topic.
const (
	CommandApply   = "apply"
	CommandApprove = "approve"
	CommandDecline = "decline"
)

// MembershipCommand asks the service to run a transition on behalf of
// another system, e.g. an HR import or an onboarding pipeline.
type MembershipCommand struct {
	Command        string `json:"command"`
	OrganizationID string `json:"organization_id"`
	UserID         string `json:"user_id"`
	Username       string `json:"username,omitempty"`

	// The owner the command acts for. When empty the command is trusted and
	// the ownership check is skipped.
	ActorID       string `json:"actor_id,omitempty"`
	ActorUsername string `json:"actor_username,omitempty"`

	Comment string `json:"comment,omitempty"`
}
