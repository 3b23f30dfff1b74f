package core

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestNewExpenseNormalize(t *testing.T) {
	in := NewExpense{
		Title:        "  Hotel ",
		Amount:       900,
		PayerEmail:   " Alice@Example.com ",
		Participants: []string{"alice@example.com", "BOB@example.com", "", "bob@example.com "},
	}
	got := in.Normalize()
	want := NewExpense{
		Title:        "Hotel",
		Amount:       900,
		PayerEmail:   "alice@example.com",
		Participants: []string{"alice@example.com", "bob@example.com"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestNewExpenseValidate(t *testing.T) {
	good := NewExpense{
		Title:        "Taxi",
		Amount:       300,
		PayerEmail:   "a@x.io",
		Participants: []string{"a@x.io", "b@x.io"},
	}

	tests := []struct {
		name    string
		mutate  func(*NewExpense)
		field   string
		wantErr error
	}{
		{"valid", func(*NewExpense) {}, "", nil},
		{"empty title", func(e *NewExpense) { e.Title = "" }, "title", ErrEmptyTitle},
		{"long title", func(e *NewExpense) { e.Title = strings.Repeat("x", MaxTitleLength+1) }, "title", ErrTitleTooLong},
		{"multibyte title at limit", func(e *NewExpense) { e.Title = strings.Repeat("晚", MaxTitleLength) }, "", nil},
		{"multibyte title over limit", func(e *NewExpense) { e.Title = strings.Repeat("晚", MaxTitleLength+1) }, "title", ErrTitleTooLong},
		{"zero amount", func(e *NewExpense) { e.Amount = 0 }, "amount", ErrInvalidAmount},
		{"negative amount", func(e *NewExpense) { e.Amount = -5 }, "amount", ErrInvalidAmount},
		{"payer without at", func(e *NewExpense) { e.PayerEmail = "alice" }, "payer_email", ErrInvalidEmail},
		{"no participants", func(e *NewExpense) { e.Participants = nil }, "participants", ErrNoParticipants},
		{"bad participant", func(e *NewExpense) { e.Participants = []string{"a@x.io", "nope"} }, "participants", ErrParticipantFormat},
		{"payer missing", func(e *NewExpense) { e.Participants = []string{"b@x.io"} }, "participants", ErrPayerNotIncluded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := good
			e.Participants = append([]string(nil), good.Participants...)
			tt.mutate(&e)
			err := e.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected ok, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("error %v does not match ErrValidation", err)
			}
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Field != tt.field {
				t.Errorf("field = %v, want %q", fe, tt.field)
			}
		})
	}
}

func TestNotMembers(t *testing.T) {
	e := NewExpense{Participants: []string{"a@x.io", "b@x.io", "c@x.io"}}
	members := []Member{{RoomID: "r", Email: "a@x.io"}, {RoomID: "r", Email: "c@x.io"}}
	got := e.NotMembers(members)
	if !reflect.DeepEqual(got, []string{"b@x.io"}) {
		t.Errorf("NotMembers() = %v", got)
	}
}

func TestRoomValidate(t *testing.T) {
	if err := (Room{Name: "Trip", OwnerEmail: "a@x.io"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Room{Name: " ", OwnerEmail: "a@x.io"}).Validate(); !errors.Is(err, ErrEmptyRoomName) {
		t.Errorf("blank name: %v", err)
	}
	if err := (Room{Name: "Trip", OwnerEmail: "owner"}).Validate(); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("bad owner: %v", err)
	}
}

func TestNewRoomID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := NewRoomID()
		if err != nil {
			t.Fatalf("NewRoomID: %v", err)
		}
		if len(id) != RoomIDLength {
			t.Fatalf("len(%q) = %d", id, len(id))
		}
		if strings.ContainsAny(id, "+/=") {
			t.Fatalf("id %q is not URL safe", id)
		}
		seen[id] = true
	}
	if len(seen) < 45 {
		t.Errorf("only %d distinct ids out of 50", len(seen))
	}
}

func TestSummarize(t *testing.T) {
	records := []ExpenseRecord{
		{ID: 3, Amount: 50, PayerEmail: "b@x.io"},
		{ID: 2, Amount: 100, PayerEmail: "a@x.io"},
		{ID: 1, Amount: 25, PayerEmail: "b@x.io"},
	}
	s := Summarize(records)
	if s.ExpenseCount != 3 || s.Total != 175 {
		t.Fatalf("summary = %+v", s)
	}
	want := []PayerTotal{{"b@x.io", 75}, {"a@x.io", 100}}
	if !reflect.DeepEqual(s.ByPayer, want) {
		t.Errorf("ByPayer = %v, want %v", s.ByPayer, want)
	}
}
