package core

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"conti/internal/settlement"
)

const (
	MaxTitleLength = 200
	RoomIDLength   = 8
)

type (
	Room struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		OwnerEmail string    `json:"owner_email"`
		CreatedAt  time.Time `json:"created_at"`
	}

	Member struct {
		RoomID string `json:"room_id"`
		Email  string `json:"email"`
	}

	// ExpenseRow is an expense as read back from storage, without participants.
	ExpenseRow struct {
		ID         int64
		Title      string
		Amount     int64
		PayerEmail string
	}

	// ExpenseRecord is a stored expense together with its participants.
	ExpenseRecord struct {
		ID           int64     `json:"id"`
		RoomID       string    `json:"room_id"`
		Title        string    `json:"title"`
		Amount       int64     `json:"amount"`
		PayerEmail   string    `json:"payer_email"`
		Participants []string  `json:"participants"`
		CreatedAt    time.Time `json:"created_at"`
	}

	// NewExpense is an expense submitted for recording.
	NewExpense struct {
		Title        string   `json:"title"`
		Amount       int64    `json:"amount"`
		PayerEmail   string   `json:"payer_email"`
		Participants []string `json:"participants"`
	}
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrEmptyTitle        = errors.New("title is required")
	ErrTitleTooLong      = fmt.Errorf("title too long (max %d characters)", MaxTitleLength)
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrNoParticipants    = errors.New("at least one participant is required")
	ErrPayerNotIncluded  = errors.New("payer must be among participants")
	ErrEmptyRoomName     = errors.New("room name is required")
	ErrParticipantFormat = errors.New("invalid participant email")
)

// FieldError reports an invalid field. It matches ErrValidation with errors.Is.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }

func (e *FieldError) Unwrap() error { return e.Err }

func (e *FieldError) Is(target error) bool { return target == ErrValidation }

func invalid(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsValidEmail reports whether s is a bare address like "name@host".
func IsValidEmail(s string) bool {
	if s == "" || !strings.Contains(s, "@") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// Normalize returns a copy with trimmed title, normalized emails and
// duplicate participants removed. Participant order is preserved.
func (e NewExpense) Normalize() NewExpense {
	out := NewExpense{
		Title:      strings.TrimSpace(e.Title),
		Amount:     e.Amount,
		PayerEmail: NormalizeEmail(e.PayerEmail),
	}
	seen := make(map[string]bool, len(e.Participants))
	for _, p := range e.Participants {
		p = NormalizeEmail(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out.Participants = append(out.Participants, p)
	}
	return out
}

// Validate checks a normalized expense.
func (e NewExpense) Validate() error {
	if e.Title == "" {
		return invalid("title", ErrEmptyTitle)
	}
	if utf8.RuneCountInString(e.Title) > MaxTitleLength {
		return invalid("title", ErrTitleTooLong)
	}
	if e.Amount <= 0 {
		return invalid("amount", ErrInvalidAmount)
	}
	if !IsValidEmail(e.PayerEmail) {
		return invalid("payer_email", ErrInvalidEmail)
	}
	if len(e.Participants) == 0 {
		return invalid("participants", ErrNoParticipants)
	}
	payerIncluded := false
	for _, p := range e.Participants {
		if !IsValidEmail(p) {
			return invalid("participants", fmt.Errorf("%w: %s", ErrParticipantFormat, p))
		}
		if p == e.PayerEmail {
			payerIncluded = true
		}
	}
	if !payerIncluded {
		return invalid("participants", ErrPayerNotIncluded)
	}
	return nil
}

// NotMembers returns the participants missing from members.
func (e NewExpense) NotMembers(members []Member) []string {
	in := make(map[string]bool, len(members))
	for _, m := range members {
		in[m.Email] = true
	}
	var missing []string
	for _, p := range e.Participants {
		if !in[p] {
			missing = append(missing, p)
		}
	}
	return missing
}

// Settlement converts a stored record into an engine input.
func (r ExpenseRecord) Settlement() settlement.Expense {
	return settlement.Expense{
		ID:           r.ID,
		Title:        r.Title,
		Amount:       r.Amount,
		Payer:        r.PayerEmail,
		Participants: r.Participants,
	}
}

func (r Room) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return invalid("name", ErrEmptyRoomName)
	}
	if !IsValidEmail(r.OwnerEmail) {
		return invalid("owner_email", ErrInvalidEmail)
	}
	return nil
}

// NewRoomID returns a random URL-safe identifier of RoomIDLength characters.
func NewRoomID() (string, error) {
	b := make([]byte, RoomIDLength*3/4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate room id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
