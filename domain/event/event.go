package event

import (
	"time"

	"feed-lab/domain/dm"
)

// DomainEvent is anything the registry can fan out to live connections.
// Groups returns the user-identity groups that must receive the event.
type DomainEvent interface {
	Name() string
	Groups() []dm.UserID
}

// MessageReceived is pushed to every live connection of both the sender and
// the receiver after a message has been durably stored. Sender and receiver
// display names are embedded as a convenience for clients.
type MessageReceived struct {
	ID           dm.MessageID `json:"id"`
	SenderID     dm.UserID    `json:"senderId"`
	SenderName   string       `json:"senderName"`
	ReceiverID   dm.UserID    `json:"receiverId"`
	ReceiverName string       `json:"receiverName"`
	Content      string       `json:"content"`
	CreatedAt    time.Time    `json:"createdAt"`
}

func (m MessageReceived) Name() string { return "messageReceived" }

// Groups targets both parties so that the sender's other open sessions see
// the sent message without a separate round trip.
func (m MessageReceived) Groups() []dm.UserID {
	return []dm.UserID{m.SenderID, m.ReceiverID}
}
