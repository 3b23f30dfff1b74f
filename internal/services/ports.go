package services

import (
	"context"

	"conti/internal/amqp"
	"conti/internal/rooms"
)

// Publisher sends domain events. *amqp.Client satisfies it; a nil Publisher
// disables publishing.
type Publisher interface {
	PublishExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error
	PublishSettlementComputed(ctx context.Context, msg *amqp.SettlementComputedMessage) error
}

// SettlementStore is what SettlementService reads from.
type SettlementStore interface {
	rooms.RoomFinder
	rooms.ExpenseSource
}

// ExpenseStore is what ExpenseService reads from and writes to.
type ExpenseStore interface {
	rooms.RoomFinder
	rooms.ExpenseRecorder
	rooms.ExpenseLister
}
