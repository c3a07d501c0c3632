//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"feed-lab/domain/dm"
	"feed-lab/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives fanned-out events for one live connection.
// Consume must not block on a slow consumer.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks live transport sessions grouped by user identity.
// One group per user; a user may own many concurrent connections.
type IRegistry interface {
	Join(connID uuid.UUID, userID dm.UserID, sink EventSink)
	Leave(connID uuid.UUID)
	Broadcast(ctx context.Context, groups []dm.UserID, e event.DomainEvent)
	Count(userID dm.UserID) int
}

// IUserDirectory resolves user identities to display names. Account
// management itself is an external collaborator of this subsystem.
type IUserDirectory interface {
	DisplayName(ctx context.Context, id dm.UserID) (string, error)
}

// IHub is the message router. OnConnect and OnDisconnect bracket a session's
// group membership; OnSend validates, persists and fans out one message.
// Both the WebSocket sessions and the REST endpoint go through it.
type IHub interface {
	OnConnect(connID uuid.UUID, userID dm.UserID, sink EventSink)
	OnDisconnect(connID uuid.UUID)
	OnSend(ctx context.Context, senderID, receiverID dm.UserID, content string) (event.MessageReceived, error)
}
