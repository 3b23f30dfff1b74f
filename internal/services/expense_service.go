package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/log"
	"conti/internal/metrics"
)

var ErrNotMember = errors.New("not a room member")

// MembershipError lists participants who do not belong to the room.
type MembershipError struct {
	Emails []string
}

func (e *MembershipError) Error() string {
	return "participants not in room: " + strings.Join(e.Emails, ", ")
}

func (e *MembershipError) Is(target error) bool { return target == ErrNotMember }

// Invalidator drops cached settlements for a room.
type Invalidator interface {
	Invalidate(roomID string)
}

type ExpenseOptions struct {
	Settlements Invalidator
	Publisher   Publisher
	Metrics     *metrics.Metrics
	Logger      *log.Logger
}

// ExpenseService records and lists expenses. The store is written first;
// event publication failures are logged and never fail the request.
type ExpenseService struct {
	store       ExpenseStore
	settlements Invalidator
	publisher   Publisher
	metrics     *metrics.Metrics
	logger      *log.Logger
}

func NewExpenseService(store ExpenseStore, opts ExpenseOptions) *ExpenseService {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ExpenseService{
		store:       store,
		settlements: opts.Settlements,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		logger:      logger.WithComponent(log.ComponentExpense),
	}
}

// Record validates e against the room and stores it.
func (s *ExpenseService) Record(ctx context.Context, roomID string, e core.NewExpense) (core.ExpenseRecord, error) {
	e = e.Normalize()
	if err := e.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}

	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return core.ExpenseRecord{}, err
	}
	members, err := s.store.ListMembers(ctx, roomID)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("list members: %w", err)
	}
	if missing := e.NotMembers(members); len(missing) > 0 {
		return core.ExpenseRecord{}, &MembershipError{Emails: missing}
	}

	rec, err := s.store.CreateExpense(ctx, roomID, e)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("save expense: %w", err)
	}

	if s.settlements != nil {
		s.settlements.Invalidate(roomID)
	}
	if s.metrics != nil {
		s.metrics.ExpensesRecorded.Inc()
	}
	s.logger.InfoContext(ctx, "Expense recorded",
		log.NewFields().WithRoom(roomID).WithOperation(log.OpRecord).
			WithExpense(rec.ID, rec.Amount, rec.PayerEmail, len(rec.Participants)).ToSlice()...)

	if err := s.publishRecorded(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			log.NewFields().WithRoom(roomID).WithOperation(log.OpPublish).WithError(err).ToSlice()...)
	}
	return rec, nil
}

// List returns the room's expenses newest first.
func (s *ExpenseService) List(ctx context.Context, roomID string) ([]core.ExpenseRecord, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	records, err := s.store.ListExpenses(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return records, nil
}

func (s *ExpenseService) publishRecorded(ctx context.Context, rec core.ExpenseRecord) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not configured, skipping expense event")
		return nil
	}
	err := s.publisher.PublishExpenseRecorded(ctx,
		amqp.NewExpenseRecordedMessage(rec.RoomID, rec.ID, rec.Amount, rec.PayerEmail))
	if s.metrics != nil {
		s.metrics.ObservePublish(amqp.TypeExpenseRecorded, err)
	}
	return err
}
