package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"feed-lab/domain/dm"
	"feed-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestConversationRepository(t *testing.T) *ConversationRepository {
	t.Helper()
	repo, err := NewConversationRepository(openTestDB(t), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func Test_Append_Assigns_Id_And_Timestamp(t *testing.T) {
	req := require.New(t)
	repo := newTestConversationRepository(t)
	ctx := context.Background()

	message, err := repo.Append(ctx, dm.Draft{SenderID: 1, ReceiverID: 2, Content: "hello"})

	req.NoError(err)
	req.Positive(int64(message.ID))
	req.False(message.CreatedAt.IsZero())
	req.Equal("hello", message.Content)
}

func Test_Append_Ids_Strictly_Increase(t *testing.T) {
	req := require.New(t)
	repo := newTestConversationRepository(t)
	ctx := context.Background()

	var lastID dm.MessageID
	for i := 0; i < 10; i++ {
		message, err := repo.Append(ctx, dm.Draft{SenderID: 1, ReceiverID: 2, Content: fmt.Sprintf("message %d", i)})
		req.NoError(err)
		req.Greater(message.ID, lastID)
		lastID = message.ID
	}
}

func Test_Append_Rejects_Invalid_Draft(t *testing.T) {
	req := require.New(t)
	repo := newTestConversationRepository(t)
	ctx := context.Background()

	// Invariants hold at the store boundary too, whatever the calling path
	_, err := repo.Append(ctx, dm.Draft{SenderID: 1, ReceiverID: 1, Content: "hello"})
	req.ErrorIs(err, errors.ErrSelfMessage)

	_, err = repo.Append(ctx, dm.Draft{SenderID: 1, ReceiverID: 2, Content: " "})
	req.ErrorIs(err, errors.ErrEmptyContent)

	messages, err := repo.ListConversation(ctx, 1, 2)
	req.NoError(err)
	req.Empty(messages)
}

func Test_ListConversation_Both_Directions_Sorted(t *testing.T) {
	req := require.New(t)
	repo := newTestConversationRepository(t)
	ctx := context.Background()
	alice, bob := dm.UserID(1), dm.UserID(2)

	// Given messages flowing in both directions
	m1, err := repo.Append(ctx, dm.Draft{SenderID: alice, ReceiverID: bob, Content: "hi bob"})
	req.NoError(err)
	m2, err := repo.Append(ctx, dm.Draft{SenderID: bob, ReceiverID: alice, Content: "hi alice"})
	req.NoError(err)
	m3, err := repo.Append(ctx, dm.Draft{SenderID: alice, ReceiverID: bob, Content: "how are you"})
	req.NoError(err)

	// When listing from either side
	fromAlice, err := repo.ListConversation(ctx, alice, bob)
	req.NoError(err)
	fromBob, err := repo.ListConversation(ctx, bob, alice)
	req.NoError(err)

	// Then both directions appear exactly once, (createdAt, id) ascending,
	// and the listing is symmetric
	req.Equal([]dm.Message{m1, m2, m3}, fromAlice)
	req.Equal(fromAlice, fromBob)
}

func Test_ListConversation_Equal_Timestamps_Break_Ties_On_Id(t *testing.T) {
	req := require.New(t)
	repo := newTestConversationRepository(t)
	at := time.Now().UTC().Truncate(time.Second)

	// Append always stamps its own clock, so a collision is produced by
	// writing through the key layout directly, out of id order
	for _, id := range []dm.MessageID{3, 1, 2} {
		message := dm.Message{
			ID:         id,
			SenderID:   1,
			ReceiverID: 2,
			Content:    fmt.Sprintf("message %d", id),
			CreatedAt:  at,
		}
		value, err := json.Marshal(message)
		req.NoError(err)
		req.NoError(repo.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(messageKey(message)), value)
		}))
	}

	messages, err := repo.ListConversation(context.Background(), 1, 2)
	req.NoError(err)
	req.Len(messages, 3)

	// Same instant, so ordering is deterministic on ascending id
	req.Equal([]dm.MessageID{1, 2, 3},
		[]dm.MessageID{messages[0].ID, messages[1].ID, messages[2].ID})
}

func Test_ListConversation_Excludes_Other_Pairs(t *testing.T) {
	req := require.New(t)
	repo := newTestConversationRepository(t)
	ctx := context.Background()

	_, err := repo.Append(ctx, dm.Draft{SenderID: 1, ReceiverID: 2, Content: "for bob"})
	req.NoError(err)
	_, err = repo.Append(ctx, dm.Draft{SenderID: 1, ReceiverID: 3, Content: "for clara"})
	req.NoError(err)
	// Pair keys must not collide on digit boundaries (1,23) vs (12,3)
	_, err = repo.Append(ctx, dm.Draft{SenderID: 1, ReceiverID: 23, Content: "for user 23"})
	req.NoError(err)

	messages, err := repo.ListConversation(ctx, 1, 2)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("for bob", messages[0].Content)
}

func Test_ListConversation_Empty_Conversation(t *testing.T) {
	req := require.New(t)
	repo := newTestConversationRepository(t)

	messages, err := repo.ListConversation(context.Background(), 8, 9)
	req.NoError(err)
	req.Empty(messages)
}

func Test_Ids_Survive_Reopen(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	ctx := context.Background()

	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	req.NoError(err)
	repo, err := NewConversationRepository(db, slog.Default())
	req.NoError(err)

	first, err := repo.Append(ctx, dm.Draft{SenderID: 1, ReceiverID: 2, Content: "before restart"})
	req.NoError(err)
	req.NoError(repo.Close())
	req.NoError(db.Close())

	// When reopening the same store
	db, err = badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	req.NoError(err)
	defer db.Close()
	repo, err = NewConversationRepository(db, slog.Default())
	req.NoError(err)
	defer repo.Close()

	second, err := repo.Append(ctx, dm.Draft{SenderID: 1, ReceiverID: 2, Content: "after restart"})
	req.NoError(err)

	// Then ids keep increasing, never reused
	req.Greater(second.ID, first.ID)
}
