package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"conti/internal/amqp"
	"conti/internal/cache"
	"conti/internal/log"
	"conti/internal/metrics"
	"conti/internal/settlement"
)

type SettlementOptions struct {
	// Cache holds computed results per room. Nil disables caching.
	Cache     *cache.LRUCache[settlement.Result]
	Publisher Publisher
	Metrics   *metrics.Metrics
	Logger    *log.Logger
}

// SettlementService loads a room's expenses and runs the settlement engine.
type SettlementService struct {
	store     SettlementStore
	cache     *cache.LRUCache[settlement.Result]
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *log.Logger

	group singleflight.Group
	mu    sync.Mutex
	gen   map[string]uint64
}

func NewSettlementService(store SettlementStore, opts SettlementOptions) *SettlementService {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SettlementService{
		store:     store,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    logger.WithComponent(log.ComponentSettlement),
		gen:       make(map[string]uint64),
	}
}

// Settle returns the room's balances and payments. It returns
// rooms.ErrRoomNotFound for unknown rooms.
func (s *SettlementService) Settle(ctx context.Context, roomID string) (settlement.Result, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return settlement.Result{}, err
	}

	if s.cache != nil {
		if res, ok := s.cache.Get(roomID); ok {
			if s.metrics != nil {
				s.metrics.CacheHit()
			}
			return res, nil
		}
		if s.metrics != nil {
			s.metrics.CacheMiss()
		}
	}

	gen := s.generation(roomID)
	key := roomID + "#" + strconv.FormatUint(gen, 10)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.compute(ctx, roomID, gen)
	})
	if err != nil {
		return settlement.Result{}, err
	}
	return v.(settlement.Result), nil
}

// Recompute drops any cached result and computes a fresh one.
func (s *SettlementService) Recompute(ctx context.Context, roomID string) (settlement.Result, error) {
	s.Invalidate(roomID)
	return s.Settle(ctx, roomID)
}

// Invalidate drops the cached result for roomID. Computations already in
// flight for the room will not repopulate the cache.
func (s *SettlementService) Invalidate(roomID string) {
	s.mu.Lock()
	s.gen[roomID]++
	s.mu.Unlock()
	if s.cache != nil {
		s.cache.Delete(roomID)
	}
}

// LoadExpenses reads the room's expenses with their participants.
func (s *SettlementService) LoadExpenses(ctx context.Context, roomID string) ([]settlement.Expense, error) {
	rows, err := s.store.ExpensesForRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load expenses for room %s: %w", roomID, err)
	}
	out := make([]settlement.Expense, 0, len(rows))
	for _, row := range rows {
		participants, err := s.store.ParticipantsForExpense(ctx, row.ID)
		if err != nil {
			return nil, fmt.Errorf("load participants for expense %d: %w", row.ID, err)
		}
		out = append(out, settlement.Expense{
			ID:           row.ID,
			Title:        row.Title,
			Amount:       row.Amount,
			Payer:        row.PayerEmail,
			Participants: participants,
		})
	}
	return out, nil
}

func (s *SettlementService) compute(ctx context.Context, roomID string, gen uint64) (settlement.Result, error) {
	start := time.Now()
	expenses, err := s.LoadExpenses(ctx, roomID)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveSettlement(time.Since(start), 0, err)
		}
		s.logger.ErrorContext(ctx, "Settlement failed",
			log.NewFields().WithRoom(roomID).WithOperation(log.OpSettle).WithError(err).ToSlice()...)
		return settlement.Result{}, err
	}

	res := settlement.Compute(expenses)
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.ObserveSettlement(elapsed, len(res.Payments), nil)
	}

	if s.cache != nil && s.generation(roomID) == gen {
		s.cache.Set(roomID, res)
	}

	s.logger.DebugContext(ctx, "Settlement computed",
		log.NewFields().WithRoom(roomID).
			Add(log.FieldExpenses, len(expenses)).
			Add(log.FieldPayments, len(res.Payments)).
			Add(log.FieldOutstanding, res.Outstanding()).
			Add(log.FieldDuration, elapsed.Milliseconds()).ToSlice()...)

	s.publish(ctx, roomID, res)
	return res, nil
}

func (s *SettlementService) publish(ctx context.Context, roomID string, res settlement.Result) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishSettlementComputed(ctx, amqp.NewSettlementComputedMessage(roomID, res))
	if s.metrics != nil {
		s.metrics.ObservePublish(amqp.TypeSettlementComputed, err)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish settlement",
			log.NewFields().WithRoom(roomID).WithOperation(log.OpPublish).WithError(err).ToSlice()...)
	}
}

func (s *SettlementService) generation(roomID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen[roomID]
}
