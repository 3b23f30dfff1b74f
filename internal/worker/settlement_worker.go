// Package worker keeps exported settlements in step with recorded expenses.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/log"
	"conti/internal/metrics"
	"conti/internal/rooms"
	"conti/internal/settlement"
	"conti/internal/sheets"
)

// Recomputer produces a fresh settlement for a room.
type Recomputer interface {
	Recompute(ctx context.Context, roomID string) (settlement.Result, error)
}

type Config struct {
	// Concurrency bounds RefreshAll. Values below 1 mean 1.
	Concurrency int
}

type SettlementWorker struct {
	settlements Recomputer
	rooms       rooms.RoomFinder
	exporter    sheets.SettlementExporter
	metrics     *metrics.Metrics
	logger      *log.Logger
	concurrency int
}

// NewSettlementWorker builds a worker. exporter and m may be nil.
func NewSettlementWorker(settlements Recomputer, finder rooms.RoomFinder, exporter sheets.SettlementExporter, m *metrics.Metrics, logger *log.Logger, cfg Config) *SettlementWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &SettlementWorker{
		settlements: settlements,
		rooms:       finder,
		exporter:    exporter,
		metrics:     m,
		logger:      logger.WithComponent(log.ComponentWorker),
		concurrency: cfg.Concurrency,
	}
}

// HandleExpenseRecorded recomputes and exports the message's room. Events for
// rooms that no longer exist are acknowledged and dropped.
func (w *SettlementWorker) HandleExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error {
	w.logger.InfoContext(ctx, "Processing expense event",
		log.NewFields().WithRoom(msg.RoomID).WithOperation(log.OpConsume).
			Add(log.FieldExpenseID, msg.ExpenseID).ToSlice()...)

	err := w.RefreshRoom(ctx, msg.RoomID)
	if errors.Is(err, rooms.ErrRoomNotFound) {
		w.logger.WarnContext(ctx, "Dropping event for unknown room", log.FieldRoomID, msg.RoomID)
		err = nil
	}
	if w.metrics != nil {
		w.metrics.ObserveConsume(err)
	}
	return err
}

// RefreshRoom recomputes one room and exports it when an exporter is set.
func (w *SettlementWorker) RefreshRoom(ctx context.Context, roomID string) error {
	room, err := w.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	res, err := w.settlements.Recompute(ctx, roomID)
	if err != nil {
		return fmt.Errorf("recompute room %s: %w", roomID, err)
	}
	return w.export(ctx, room, res)
}

// RefreshAll recomputes every room, at most Concurrency at a time. A failing
// room does not stop the others; all failures are returned joined.
func (w *SettlementWorker) RefreshAll(ctx context.Context) error {
	ids, err := w.rooms.ListRoomIDs(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := w.RefreshRoom(gctx, id); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				w.logger.ErrorContext(gctx, "Room refresh failed",
					log.NewFields().WithRoom(id).WithOperation(log.OpRefresh).WithError(err).ToSlice()...)
			}
			return nil
		})
	}
	_ = g.Wait()

	w.logger.InfoContext(ctx, "Room refresh complete",
		"rooms", len(ids),
		"failed", len(errs))
	return errors.Join(errs...)
}

func (w *SettlementWorker) export(ctx context.Context, room core.Room, res settlement.Result) error {
	if w.exporter == nil {
		return nil
	}
	err := w.exporter.ExportSettlement(ctx, room, res)
	if w.metrics != nil {
		w.metrics.ObserveExport(err)
	}
	if err != nil {
		return fmt.Errorf("export room %s: %w", room.ID, err)
	}
	return nil
}
