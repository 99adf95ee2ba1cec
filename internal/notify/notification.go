package notify

import (
	"time"
)

// Notification types.
const (
	TypeBroadcast             = "broadcast"
	TypeAccessRequested       = "access_requested"
	TypeAccessResolved        = "access_resolved"
	TypeRecommendationCreated = "recommendation_created"
	TypeRecommendationUpdated = "recommendation_updated"
	TypeAcknowledged          = "recommendation_acknowledged"
)

// RecipientAdmins addresses every connected admin.
const RecipientAdmins = "role:admin"

// Notification is pushed to websocket subscribers. An empty Recipients
// list reaches everyone.
type Notification struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Message    string      `json:"message"`
	Recipients []string    `json:"recipients,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Publisher accepts notifications without blocking the caller.
type Publisher interface {
	Publish(n Notification)
}

type discard struct{}

func (discard) Publish(Notification) {}

// Discard drops every notification.
var Discard Publisher = discard{}

func (n Notification) addressedTo(userID, role string) bool {
	if len(n.Recipients) == 0 {
		return true
	}
	for _, r := range n.Recipients {
		if r == userID || (r == RecipientAdmins && role == "admin") {
			return true
		}
	}
	return false
}
