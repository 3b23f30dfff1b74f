// Package rooms defines the storage ports the settlement services depend on.
package rooms

import (
	"context"
	"errors"

	"conti/internal/core"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
	ErrMemberExists = errors.New("member already in room")
)

// Ports for storage adapters.
type (
	// ExpenseSource provides the two lookups settlement needs.
	ExpenseSource interface {
		// ExpensesForRoom returns the room's expenses ordered by id.
		ExpensesForRoom(ctx context.Context, roomID string) ([]core.ExpenseRow, error)
		ParticipantsForExpense(ctx context.Context, expenseID int64) ([]string, error)
	}

	RoomFinder interface {
		GetRoom(ctx context.Context, roomID string) (core.Room, error)
		ListMembers(ctx context.Context, roomID string) ([]core.Member, error)
		ListRoomIDs(ctx context.Context) ([]string, error)
	}

	ExpenseLister interface {
		// ListExpenses returns the room's expenses newest first, with participants.
		ListExpenses(ctx context.Context, roomID string) ([]core.ExpenseRecord, error)
	}

	ExpenseRecorder interface {
		CreateRoom(ctx context.Context, room core.Room) (core.Room, error)
		AddMember(ctx context.Context, roomID, email string) error
		// CreateExpense stores the expense and its participants atomically.
		CreateExpense(ctx context.Context, roomID string, e core.NewExpense) (core.ExpenseRecord, error)
	}

	Store interface {
		ExpenseSource
		RoomFinder
		ExpenseLister
		ExpenseRecorder
		Ping(ctx context.Context) error
		Close() error
	}
)
