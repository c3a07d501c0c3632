// Package hub routes sent messages: it validates the pair, persists the
// message durably, then fans it out to the live connections of both parties.
package hub

import (
	"context"
	"log/slog"
	"time"

	"feed-lab/contract"
	"feed-lab/domain/dm"
	"feed-lab/domain/event"
	"feed-lab/moderation"
	"feed-lab/repositories"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
)

// broadcastTimeout bounds the fan-out of a single message. Delivery is
// fire-and-forget after the durable write; the timeout only guards against a
// caller context that is already gone.
const broadcastTimeout = 5 * time.Second

type Hub struct {
	log       *slog.Logger
	store     repositories.IConversationRepository
	directory contract.IUserDirectory
	registry  contract.IRegistry
	moderator *moderation.Moderator
}

func NewHub(log *slog.Logger, store repositories.IConversationRepository,
	directory contract.IUserDirectory, registry contract.IRegistry,
	moderator *moderation.Moderator) *Hub {
	return &Hub{
		log:       log,
		store:     store,
		directory: directory,
		registry:  registry,
		moderator: moderator,
	}
}

// OnConnect places an authenticated connection into the group named after its
// owner. Exactly one join per connection; the registry makes repeats no-ops.
func (h *Hub) OnConnect(connID uuid.UUID, userID dm.UserID, sink contract.EventSink) {
	h.registry.Join(connID, userID, sink)
	h.log.Debug("Connection joined", "conn_id", connID, "user_id", userID)
}

// OnDisconnect removes the connection from its group, whatever the reason for
// closure. Callers invoke it from a deferred path so cleanup is guaranteed.
func (h *Hub) OnDisconnect(connID uuid.UUID) {
	h.registry.Leave(connID)
	h.log.Debug("Connection left", "conn_id", connID)
}

// OnSend performs one message send end to end:
//
//	validate -> moderate -> persist -> fan out
//
// The sender identity always comes from the authenticated session. The call
// does not return success until the message is durably stored; the broadcast
// happens only after that, so a delivered message always exists on disk
// (at-least-once but never phantom delivery). A failed broadcast to an
// individual stale connection is swallowed: the recipient is simply offline.
func (h *Hub) OnSend(ctx context.Context, senderID, receiverID dm.UserID, content string) (event.MessageReceived, error) {
	draft, err := dm.NewDraft(senderID, receiverID, content)
	if err != nil {
		return event.MessageReceived{}, err
	}

	if h.moderator != nil {
		censored, foundWords := h.moderator.Censor(draft.Content)
		if len(foundWords) > 0 {
			info := whatlanggo.Detect(draft.Content)
			h.log.Debug("Message censored",
				"sender_id", senderID,
				"words", len(foundWords),
				"lang", info.Lang.Iso6391())
			draft.Content = censored
		}
	}

	// Receiver must exist even when offline; an unknown receiver is a
	// validation-class failure, not a delivery concern.
	receiverName, err := h.directory.DisplayName(ctx, receiverID)
	if err != nil {
		return event.MessageReceived{}, err
	}
	senderName, err := h.directory.DisplayName(ctx, senderID)
	if err != nil {
		return event.MessageReceived{}, err
	}

	message, err := h.store.Append(ctx, draft)
	if err != nil {
		return event.MessageReceived{}, err
	}

	evt := event.MessageReceived{
		ID:           message.ID,
		SenderID:     message.SenderID,
		SenderName:   senderName,
		ReceiverID:   message.ReceiverID,
		ReceiverName: receiverName,
		Content:      message.Content,
		CreatedAt:    message.CreatedAt,
	}

	// The broadcast context is detached from the caller's: if the sending
	// connection drops right after the durable write, the other party still
	// receives the event.
	broadcastCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), broadcastTimeout)
	defer cancel()
	h.registry.Broadcast(broadcastCtx, evt.Groups(), evt)

	h.log.Info("Message routed",
		"id", message.ID,
		"sender_id", message.SenderID,
		"receiver_id", message.ReceiverID)
	return evt, nil
}
