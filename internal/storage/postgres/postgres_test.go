package postgres

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"

	"conti/internal/core"
	"conti/internal/rooms"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	r, err := New(ctx, url)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	if err := r.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return r
}

func TestRepositoryRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	room, err := r.CreateRoom(ctx, core.Room{Name: "Trip", OwnerEmail: "a@x.io"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	for _, m := range []string{"a@x.io", "b@x.io"} {
		if err := r.AddMember(ctx, room.ID, m); err != nil {
			t.Fatalf("AddMember: %v", err)
		}
	}
	if err := r.AddMember(ctx, room.ID, "a@x.io"); !errors.Is(err, rooms.ErrMemberExists) {
		t.Errorf("duplicate member: %v", err)
	}

	rec, err := r.CreateExpense(ctx, room.ID, core.NewExpense{
		Title: "Dinner", Amount: 100, PayerEmail: "a@x.io", Participants: []string{"a@x.io", "b@x.io"},
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	rows, err := r.ExpensesForRoom(ctx, room.ID)
	if err != nil || len(rows) != 1 || rows[0].ID != rec.ID {
		t.Fatalf("ExpensesForRoom = %v, %v", rows, err)
	}
	parts, err := r.ParticipantsForExpense(ctx, rec.ID)
	if err != nil || !reflect.DeepEqual(parts, []string{"a@x.io", "b@x.io"}) {
		t.Errorf("ParticipantsForExpense = %v, %v", parts, err)
	}

	list, err := r.ListExpenses(ctx, room.ID)
	if err != nil || len(list) != 1 || len(list[0].Participants) != 2 {
		t.Errorf("ListExpenses = %+v, %v", list, err)
	}

	if _, err := r.GetRoom(ctx, "missing!"); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Errorf("GetRoom missing: %v", err)
	}
}
