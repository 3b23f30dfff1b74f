package core

// PayerTotal is the amount an identity paid across a room's expenses.
type PayerTotal struct {
	Email  string `json:"email"`
	Amount int64  `json:"amount"`
}

// RoomSummary aggregates a room's expenses.
type RoomSummary struct {
	ExpenseCount int          `json:"expense_count"`
	Total        int64        `json:"total"`
	ByPayer      []PayerTotal `json:"by_payer"`
}

// Summarize totals records by payer, keeping first-seen payer order.
func Summarize(records []ExpenseRecord) RoomSummary {
	s := RoomSummary{ExpenseCount: len(records), ByPayer: []PayerTotal{}}
	idx := make(map[string]int)
	for _, r := range records {
		s.Total += r.Amount
		i, ok := idx[r.PayerEmail]
		if !ok {
			i = len(s.ByPayer)
			idx[r.PayerEmail] = i
			s.ByPayer = append(s.ByPayer, PayerTotal{Email: r.PayerEmail})
		}
		s.ByPayer[i].Amount += r.Amount
	}
	return s
}
