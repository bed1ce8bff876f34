//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
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

// FrameSink is one live outbound transport for one user.
// Consume hands a raw frame over; Close tears the transport down.
// Implementations must be safe for concurrent Consume calls.
type FrameSink interface {
	Consume(ctx context.Context, frame []byte) error
	Close()
}

// IRegistry is the authority on presence: at most one FrameSink per user id
// at any instant. Send is a presence-gated, fire-and-forget unicast.
type IRegistry interface {
	Register(userID int64, sink FrameSink)
	Unregister(userID int64, sink FrameSink)
	Lookup(userID int64) (FrameSink, bool)
	Send(ctx context.Context, userID int64, frame []byte)
	Count() int
}
