//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"feed-lab/domain/dm"
	"feed-lab/errors"

	"github.com/dgraph-io/badger/v4"
)

type IConversationRepository interface {
	Append(ctx context.Context, draft dm.Draft) (dm.Message, error)
	ListConversation(ctx context.Context, a, b dm.UserID) ([]dm.Message, error)
}

// ConversationRepository persists direct messages in BadgerDB.
//
// The key is formatted as "dm:{pairKey}:{timestamp_padded}:{id_padded}" to:
//  1. Group both directions of a conversation under one prefix (pairKey is
//     the normalized unordered pair, so listing is symmetric).
//  2. Ensure (createdAt, id) ascending order using 19-digit zero padding
//     (lexicographical order), id acting as tie-break for same-timestamp
//     inserts.
type ConversationRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) (*ConversationRepository, error) {
	// The sequence survives restarts, so ids keep increasing and are never
	// reused even after a crash.
	seq, err := db.GetSequence([]byte("seq:dm"), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return &ConversationRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the id sequence. Unused ids in the current lease are lost,
// which is fine: ids are opaque and only required to increase.
func (r *ConversationRepository) Close() error {
	return r.seq.Release()
}

// Append assigns the server-side id and timestamp, then durably stores the
// message. It re-checks the domain invariants so the store rejects invalid
// messages regardless of the calling path.
func (r *ConversationRepository) Append(ctx context.Context, draft dm.Draft) (dm.Message, error) {
	if _, err := dm.NewDraft(draft.SenderID, draft.ReceiverID, draft.Content); err != nil {
		return dm.Message{}, err
	}

	next, err := r.seq.Next()
	if err != nil {
		return dm.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	message := dm.Message{
		ID:         dm.MessageID(next + 1), // ids start at 1
		SenderID:   draft.SenderID,
		ReceiverID: draft.ReceiverID,
		Content:    draft.Content,
		CreatedAt:  time.Now().UTC(),
	}

	value, err := json.Marshal(message)
	if err != nil {
		return dm.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	key := messageKey(message)
	if err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	}); err != nil {
		return dm.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	r.log.Debug("Message persisted",
		"id", message.ID,
		"sender_id", message.SenderID,
		"receiver_id", message.ReceiverID)
	return message, nil
}

// ListConversation returns every message exchanged between a and b, in either
// direction, sorted by (createdAt, id) ascending. Thanks to the padded key
// layout, a plain forward prefix scan yields the right order.
func (r *ConversationRepository) ListConversation(_ context.Context, a, b dm.UserID) ([]dm.Message, error) {
	var messages []dm.Message
	prefix := []byte(fmt.Sprintf("dm:%s:", dm.PairKey(a, b)))

	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(value []byte) error {
				var message dm.Message
				if err := json.Unmarshal(value, &message); err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return messages, nil
}

func messageKey(message dm.Message) string {
	return fmt.Sprintf("dm:%s:%019d:%019d",
		dm.PairKey(message.SenderID, message.ReceiverID),
		message.CreatedAt.UnixNano(),
		message.ID,
	)
}
