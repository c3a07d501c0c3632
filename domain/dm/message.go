// Package dm contains core concepts of the direct-message subsystem.
// Messages are immutable once persisted and validated by the domain.
package dm

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"feed-lab/errors"
)

// MaxContentLength is the maximum message length in code points.
const MaxContentLength = 1000

// UserID identifies a user. It is also the group key used by the connection
// registry: one group per user identity, always this type, never a
// string-cast variant.
type UserID int

// MessageID is a server-assigned, monotonically increasing identifier.
type MessageID int64

// Message represents an immutable direct message between two users.
type Message struct {
	ID         MessageID `json:"id"`
	SenderID   UserID    `json:"senderId"`
	ReceiverID UserID    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Draft is a message accepted for sending but not yet persisted.
// The store assigns ID and CreatedAt on append.
type Draft struct {
	SenderID   UserID
	ReceiverID UserID
	Content    string
}

// NewDraft validates the domain invariants and returns a Draft ready for
// persistence. Sender identity always comes from the authenticated session,
// never from a client-supplied field.
func NewDraft(senderID, receiverID UserID, content string) (Draft, error) {
	if receiverID <= 0 {
		return Draft{}, errors.ErrInvalidReceiver
	}
	if senderID == receiverID {
		return Draft{}, errors.ErrSelfMessage
	}
	if strings.TrimSpace(content) == "" {
		return Draft{}, errors.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return Draft{}, errors.ErrContentTooLong
	}
	return Draft{SenderID: senderID, ReceiverID: receiverID, Content: content}, nil
}

// PairKey returns the normalized storage key of the unordered pair {a, b}.
// PairKey(a, b) == PairKey(b, a), which makes conversation listing symmetric
// by construction.
func PairKey(a, b UserID) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
