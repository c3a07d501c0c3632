package hub

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"feed-lab/domain/dm"
	"feed-lab/domain/event"
	"feed-lab/errors"
	"feed-lab/mocks"
	"feed-lab/moderation"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHub_OnSend_Persists_Then_Broadcasts(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockIConversationRepository(ctrl)
	directory := mocks.NewMockIUserDirectory(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)

	alice, bob := dm.UserID(1), dm.UserID(2)
	persisted := dm.Message{
		ID:         42,
		SenderID:   alice,
		ReceiverID: bob,
		Content:    "hello bob",
		CreatedAt:  time.Now().UTC(),
	}

	directory.EXPECT().DisplayName(gomock.Any(), bob).Return("bob", nil)
	directory.EXPECT().DisplayName(gomock.Any(), alice).Return("alice", nil)

	// The durable write must complete before any fan-out
	gomock.InOrder(
		store.EXPECT().
			Append(gomock.Any(), dm.Draft{SenderID: alice, ReceiverID: bob, Content: "hello bob"}).
			Return(persisted, nil),
		registry.EXPECT().
			Broadcast(gomock.Any(), []dm.UserID{alice, bob}, gomock.Any()),
	)

	h := NewHub(slog.Default(), store, directory, registry, nil)
	evt, err := h.OnSend(context.Background(), alice, bob, "hello bob")

	req.NoError(err)
	req.Equal(event.MessageReceived{
		ID:           42,
		SenderID:     alice,
		SenderName:   "alice",
		ReceiverID:   bob,
		ReceiverName: "bob",
		Content:      "hello bob",
		CreatedAt:    persisted.CreatedAt,
	}, evt)
}

func TestHub_OnSend_Validation_Failure_Touches_Nothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockIConversationRepository(ctrl)
	directory := mocks.NewMockIUserDirectory(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)

	// Neither the directory, the store nor the registry may be called
	store.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)
	directory.EXPECT().DisplayName(gomock.Any(), gomock.Any()).Times(0)
	registry.EXPECT().Broadcast(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	h := NewHub(slog.Default(), store, directory, registry, nil)

	tests := []struct {
		name       string
		senderID   dm.UserID
		receiverID dm.UserID
		content    string
		wantErr    error
	}{
		{"self message", 1, 1, "hello", errors.ErrSelfMessage},
		{"empty content", 1, 2, "  ", errors.ErrEmptyContent},
		{"invalid receiver", 1, 0, "hello", errors.ErrInvalidReceiver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			_, err := h.OnSend(context.Background(), tt.senderID, tt.receiverID, tt.content)
			req.ErrorIs(err, tt.wantErr)
		})
	}
}

func TestHub_OnSend_Unknown_Receiver_Fails_Before_Persist(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockIConversationRepository(ctrl)
	directory := mocks.NewMockIUserDirectory(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)

	directory.EXPECT().
		DisplayName(gomock.Any(), dm.UserID(99)).
		Return("", errors.ErrUserNotFound)
	store.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)
	registry.EXPECT().Broadcast(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	h := NewHub(slog.Default(), store, directory, registry, nil)
	_, err := h.OnSend(context.Background(), 1, 99, "hello")

	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestHub_OnSend_Persist_Failure_Never_Broadcasts(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockIConversationRepository(ctrl)
	directory := mocks.NewMockIUserDirectory(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)

	directory.EXPECT().DisplayName(gomock.Any(), gomock.Any()).Return("name", nil).Times(2)
	store.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		Return(dm.Message{}, errors.ErrPersistence)

	// No phantom delivery: a message that was not durably stored is never
	// fanned out
	registry.EXPECT().Broadcast(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	h := NewHub(slog.Default(), store, directory, registry, nil)
	_, err := h.OnSend(context.Background(), 1, 2, "hello")

	req.ErrorIs(err, errors.ErrPersistence)
}

func TestHub_OnSend_Broadcast_Survives_Canceled_Sender_Context(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockIConversationRepository(ctrl)
	directory := mocks.NewMockIUserDirectory(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)

	directory.EXPECT().DisplayName(gomock.Any(), gomock.Any()).Return("name", nil).Times(2)
	store.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		Return(dm.Message{ID: 1, SenderID: 1, ReceiverID: 2, Content: "bye"}, nil)

	registry.EXPECT().
		Broadcast(gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(ctx context.Context, _ []dm.UserID, _ event.DomainEvent) {
			// The sender dropped, yet the fan-out context is still live
			require.NoError(t, ctx.Err())
		})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := NewHub(slog.Default(), store, directory, registry, nil)
	_, err := h.OnSend(ctx, 1, 2, "bye")
	req.NoError(err)
}

func TestHub_OnSend_Moderates_Content_Before_Persist(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockIConversationRepository(ctrl)
	directory := mocks.NewMockIUserDirectory(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)

	moderator, err := moderation.NewModerator([]string{"badger"}, '*')
	req.NoError(err)

	directory.EXPECT().DisplayName(gomock.Any(), gomock.Any()).Return("name", nil).Times(2)

	// The censored form is what gets stored and fanned out
	store.EXPECT().
		Append(gomock.Any(), dm.Draft{SenderID: 1, ReceiverID: 2, Content: "the ****** bites"}).
		DoAndReturn(func(_ context.Context, draft dm.Draft) (dm.Message, error) {
			return dm.Message{ID: 7, SenderID: 1, ReceiverID: 2, Content: draft.Content}, nil
		})
	registry.EXPECT().Broadcast(gomock.Any(), gomock.Any(), gomock.Any())

	h := NewHub(slog.Default(), store, directory, registry, &moderator)
	evt, err := h.OnSend(context.Background(), 1, 2, "the badger bites")

	req.NoError(err)
	req.Equal("the ****** bites", evt.Content)
}

func TestHub_Connect_And_Disconnect_Delegate_To_Registry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockIConversationRepository(ctrl)
	directory := mocks.NewMockIUserDirectory(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)
	sink := mocks.NewMockEventSink(ctrl)

	connID := uuid.New()
	registry.EXPECT().Join(connID, dm.UserID(5), sink)
	registry.EXPECT().Leave(connID)

	h := NewHub(slog.Default(), store, directory, registry, nil)
	h.OnConnect(connID, 5, sink)
	h.OnDisconnect(connID)
}
