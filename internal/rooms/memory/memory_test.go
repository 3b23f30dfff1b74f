package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"conti/internal/core"
	"conti/internal/rooms"
)

func TestNewFromFile(t *testing.T) {
	ctx := context.Background()
	s, err := NewFromFile(ctx, "../testdata/fixture.json")
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}

	ids, _ := s.ListRoomIDs(ctx)
	if !reflect.DeepEqual(ids, []string{"trip2024", "flat-42"}) {
		t.Fatalf("room ids = %v", ids)
	}

	room, err := s.GetRoom(ctx, "trip2024")
	if err != nil || room.OwnerEmail != "alice@example.com" {
		t.Fatalf("GetRoom = %+v, %v", room, err)
	}

	members, _ := s.ListMembers(ctx, "trip2024")
	if len(members) != 3 || members[0].Email != "alice@example.com" {
		t.Errorf("members = %v", members)
	}

	rows, _ := s.ExpensesForRoom(ctx, "trip2024")
	if len(rows) != 2 || rows[0].Title != "Hotel" || rows[1].Amount != 90 {
		t.Fatalf("rows = %+v", rows)
	}
	parts, _ := s.ParticipantsForExpense(ctx, rows[1].ID)
	if !reflect.DeepEqual(parts, []string{"bob@example.com", "carol@example.com"}) {
		t.Errorf("participants = %v", parts)
	}
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.GetRoom(ctx, "nope"); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Errorf("GetRoom missing: %v", err)
	}
	if err := s.AddMember(ctx, "nope", "a@x.io"); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Errorf("AddMember missing room: %v", err)
	}
	if _, err := s.CreateExpense(ctx, "nope", core.NewExpense{}); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Errorf("CreateExpense missing room: %v", err)
	}

	room, err := s.CreateRoom(ctx, core.Room{Name: "R", OwnerEmail: "a@x.io"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if len(room.ID) != core.RoomIDLength || room.CreatedAt.IsZero() {
		t.Errorf("room = %+v", room)
	}
	if _, err := s.CreateRoom(ctx, room); !errors.Is(err, rooms.ErrRoomExists) {
		t.Errorf("duplicate room: %v", err)
	}
	if err := s.AddMember(ctx, room.ID, "a@x.io"); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := s.AddMember(ctx, room.ID, "a@x.io"); !errors.Is(err, rooms.ErrMemberExists) {
		t.Errorf("duplicate member: %v", err)
	}
}

func TestListExpensesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	room, _ := s.CreateRoom(ctx, core.Room{ID: "r1", Name: "R", OwnerEmail: "a@x.io"})
	for _, title := range []string{"first", "second", "third"} {
		_, err := s.CreateExpense(ctx, room.ID, core.NewExpense{
			Title: title, Amount: 10, PayerEmail: "a@x.io", Participants: []string{"a@x.io"},
		})
		if err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
	}

	list, _ := s.ListExpenses(ctx, room.ID)
	var titles []string
	for _, e := range list {
		titles = append(titles, e.Title)
	}
	if !reflect.DeepEqual(titles, []string{"third", "second", "first"}) {
		t.Errorf("titles = %v", titles)
	}

	list[0].Participants[0] = "mutated"
	again, _ := s.ListExpenses(ctx, room.ID)
	if again[0].Participants[0] != "a@x.io" {
		t.Error("ListExpenses leaked internal slice")
	}
}
