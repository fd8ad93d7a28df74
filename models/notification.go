package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification channels.
const (
	ChannelInApp = "IN_APP"
	ChannelEmail = "EMAIL"
)

// Notification delivery states. EMAIL notifications are created PENDING and
// moved to SENT/FAILED by the background dispatcher; IN_APP notifications are
// SENT immediately.
const (
	NotificationPending = "PENDING"
	NotificationSent    = "SENT"
	NotificationFailed  = "FAILED"
)

// Notification holds the structure for the notifications collection in mongo
type Notification struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	UserID    string             `json:"userID" bson:"userID"`
	Type      string             `json:"type" bson:"type"`
	Title     string             `json:"title" bson:"title"`
	Message   string             `json:"message" bson:"message"`
	Channel   string             `json:"channel" bson:"channel"`
	Status    string             `json:"status" bson:"status"`
	Read      bool               `json:"read" bson:"read"`
	Email     string             `json:"email,omitempty" bson:"email,omitempty"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
	SentAt    interface{}        `json:"sentAt,omitempty" bson:"sentAt,omitempty"`
}
