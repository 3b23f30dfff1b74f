package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"conti/internal/core"
)

// Fixture is a JSON document describing rooms to seed a store with.
//
//	{"rooms": [{"id": "trip2024", "name": "Trip", "owner_email": "a@x.io",
//	            "members": ["a@x.io", "b@x.io"],
//	            "expenses": [{"title": "Taxi", "amount": 300,
//	                          "payer_email": "a@x.io", "participants": ["a@x.io", "b@x.io"]}]}]}
type Fixture struct {
	Rooms []FixtureRoom `json:"rooms"`
}

type FixtureRoom struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	OwnerEmail string            `json:"owner_email"`
	Members    []string          `json:"members"`
	Expenses   []core.NewExpense `json:"expenses"`
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (Fixture, error) {
	var f Fixture
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read fixture: %w", err)
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}

// Apply writes the fixture through rec. The owner is always added as a member
// and members that already exist are skipped. It returns the number of
// expenses written.
func (f Fixture) Apply(ctx context.Context, rec ExpenseRecorder) (int, error) {
	written := 0
	for _, fr := range f.Rooms {
		room, err := rec.CreateRoom(ctx, core.Room{ID: fr.ID, Name: fr.Name, OwnerEmail: core.NormalizeEmail(fr.OwnerEmail)})
		if err != nil {
			return written, fmt.Errorf("seed room %q: %w", fr.Name, err)
		}
		for _, m := range append([]string{room.OwnerEmail}, fr.Members...) {
			err := rec.AddMember(ctx, room.ID, core.NormalizeEmail(m))
			if err != nil && !errors.Is(err, ErrMemberExists) {
				return written, fmt.Errorf("seed member %s: %w", m, err)
			}
		}
		for _, e := range fr.Expenses {
			e = e.Normalize()
			if err := e.Validate(); err != nil {
				return written, fmt.Errorf("seed expense %q: %w", e.Title, err)
			}
			if _, err := rec.CreateExpense(ctx, room.ID, e); err != nil {
				return written, fmt.Errorf("seed expense %q: %w", e.Title, err)
			}
			written++
		}
	}
	return written, nil
}
