package amqp

import (
	"encoding/json"
	"time"

	"conti/internal/settlement"
)

const (
	MessageVersion = 1

	TypeExpenseRecorded    = "expense.recorded"
	TypeSettlementComputed = "settlement.computed"
)

// ExpenseRecordedMessage announces a new expense. Consumers reload the room
// from storage rather than trusting the payload.
type ExpenseRecordedMessage struct {
	Version    int       `json:"version"`
	RoomID     string    `json:"room_id"`
	ExpenseID  int64     `json:"expense_id"`
	Amount     int64     `json:"amount"`
	Payer      string    `json:"payer"`
	RecordedAt time.Time `json:"recorded_at"`
}

func NewExpenseRecordedMessage(roomID string, expenseID, amount int64, payer string) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		Version:    MessageVersion,
		RoomID:     roomID,
		ExpenseID:  expenseID,
		Amount:     amount,
		Payer:      payer,
		RecordedAt: time.Now().UTC(),
	}
}

func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SettlementComputedMessage carries a freshly computed room settlement.
type SettlementComputedMessage struct {
	Version    int                  `json:"version"`
	RoomID     string               `json:"room_id"`
	Balances   []settlement.Balance `json:"balances"`
	Payments   []settlement.Payment `json:"payments"`
	ComputedAt time.Time            `json:"computed_at"`
}

func NewSettlementComputedMessage(roomID string, res settlement.Result) *SettlementComputedMessage {
	return &SettlementComputedMessage{
		Version:    MessageVersion,
		RoomID:     roomID,
		Balances:   res.Balances,
		Payments:   res.Payments,
		ComputedAt: time.Now().UTC(),
	}
}

func (m *SettlementComputedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SettlementComputedMessageFromJSON(data []byte) (*SettlementComputedMessage, error) {
	var msg SettlementComputedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
