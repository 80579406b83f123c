package realtime

import (
	"time"

	"github.com/google/uuid"
)

type Event string

const (
	EventRequestStatusChanged Event = "RequestStatusChanged"
	EventBadgeIssued          Event = "BadgeIssued"
	EventBadgeExpiring        Event = "BadgeExpiring"
)

// Message is one realtime event addressed to a single channel.
type Message struct {
	Channel string    `json:"channel"`
	Event   Event     `json:"event"`
	Data    any       `json:"data,omitempty"`
	At      time.Time `json:"at"`
}

// UserChannel is the channel every authenticated stream subscribes to.
func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// RoleChannel carries queue events for everyone holding a role.
func RoleChannel(role string) string {
	return "role:" + role
}
