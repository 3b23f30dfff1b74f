// Package memory is an in-process Store used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"conti/internal/core"
	"conti/internal/rooms"
)

type Store struct {
	mu       sync.RWMutex
	rooms    map[string]core.Room
	roomIDs  []string
	members  map[string][]string
	expenses []core.ExpenseRecord
	nextID   int64
	now      func() time.Time
}

var _ rooms.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		rooms:   make(map[string]core.Room),
		members: make(map[string][]string),
		now:     time.Now,
	}
}

// NewFromFile returns a store seeded from a fixture file.
func NewFromFile(ctx context.Context, path string) (*Store, error) {
	f, err := rooms.LoadFixture(path)
	if err != nil {
		return nil, err
	}
	s := New()
	if _, err := f.Apply(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) CreateRoom(_ context.Context, room core.Room) (core.Room, error) {
	if err := room.Validate(); err != nil {
		return core.Room{}, err
	}
	if room.ID == "" {
		id, err := core.NewRoomID()
		if err != nil {
			return core.Room{}, err
		}
		room.ID = id
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; ok {
		return core.Room{}, fmt.Errorf("create room %s: %w", room.ID, rooms.ErrRoomExists)
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = s.now().UTC()
	}
	s.rooms[room.ID] = room
	s.roomIDs = append(s.roomIDs, room.ID)
	return room, nil
}

func (s *Store) AddMember(_ context.Context, roomID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return rooms.ErrRoomNotFound
	}
	for _, m := range s.members[roomID] {
		if m == email {
			return rooms.ErrMemberExists
		}
	}
	s.members[roomID] = append(s.members[roomID], email)
	return nil
}

func (s *Store) CreateExpense(_ context.Context, roomID string, e core.NewExpense) (core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return core.ExpenseRecord{}, rooms.ErrRoomNotFound
	}
	s.nextID++
	rec := core.ExpenseRecord{
		ID:           s.nextID,
		RoomID:       roomID,
		Title:        e.Title,
		Amount:       e.Amount,
		PayerEmail:   e.PayerEmail,
		Participants: append([]string(nil), e.Participants...),
		CreatedAt:    s.now().UTC(),
	}
	s.expenses = append(s.expenses, rec)
	return rec, nil
}

func (s *Store) GetRoom(_ context.Context, roomID string) (core.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return core.Room{}, rooms.ErrRoomNotFound
	}
	return room, nil
}

func (s *Store) ListMembers(_ context.Context, roomID string) ([]core.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.rooms[roomID]; !ok {
		return nil, rooms.ErrRoomNotFound
	}
	out := make([]core.Member, 0, len(s.members[roomID]))
	for _, email := range s.members[roomID] {
		out = append(out, core.Member{RoomID: roomID, Email: email})
	}
	return out, nil
}

func (s *Store) ListRoomIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.roomIDs...), nil
}

func (s *Store) ExpensesForRoom(_ context.Context, roomID string) ([]core.ExpenseRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.ExpenseRow
	for _, e := range s.expenses {
		if e.RoomID != roomID {
			continue
		}
		out = append(out, core.ExpenseRow{ID: e.ID, Title: e.Title, Amount: e.Amount, PayerEmail: e.PayerEmail})
	}
	return out, nil
}

func (s *Store) ParticipantsForExpense(_ context.Context, expenseID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.expenses {
		if e.ID == expenseID {
			return append([]string(nil), e.Participants...), nil
		}
	}
	return nil, nil
}

func (s *Store) ListExpenses(_ context.Context, roomID string) ([]core.ExpenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.ExpenseRecord
	for _, e := range s.expenses {
		if e.RoomID == roomID {
			e.Participants = append([]string(nil), e.Participants...)
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
