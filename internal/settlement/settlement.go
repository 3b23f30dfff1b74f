// Package settlement computes per-identity balances for a room's expenses and
// the list of transfers that brings every balance back to zero.
//
// Amounts are integers in the smallest currency unit. The engine performs no
// I/O and never fails: callers are expected to hand it validated expenses.
package settlement

import "sort"

// Expense is a single payment event as seen by the engine.
type Expense struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Amount       int64    `json:"amount"`
	Payer        string   `json:"payer"`
	Participants []string `json:"participants"`
}

// Balance is the net position of one identity: positive when owed, negative when owing.
type Balance struct {
	Email   string `json:"email"`
	Balance int64  `json:"balance"`
}

// Payment is a transfer from a debtor to a creditor.
type Payment struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// Result is the engine output, serialised as-is by the API layer.
type Result struct {
	Balances []Balance `json:"balances"`
	Payments []Payment `json:"payments"`
}

type position struct {
	email  string
	amount int64
}

// Compute returns balances and settling payments for the given expenses.
//
// Each expense credits its payer with the full amount and debits every
// participant amount/len(participants), rounded down. The rounding remainder
// stays with the payer. An expense without participants still credits the
// payer; nothing is debited for it.
//
// Balances are listed in the order identities were first seen. Creditors and
// debtors are matched largest first, ties keeping first-seen order.
func Compute(expenses []Expense) Result {
	paid := make(map[string]int64)
	share := make(map[string]int64)
	var order []string
	seen := make(map[string]bool)
	track := func(email string) {
		if !seen[email] {
			seen[email] = true
			order = append(order, email)
		}
	}

	for _, e := range expenses {
		track(e.Payer)
		paid[e.Payer] += e.Amount
		if len(e.Participants) == 0 {
			continue
		}
		each := e.Amount / int64(len(e.Participants))
		for _, p := range e.Participants {
			track(p)
			share[p] += each
		}
	}

	res := Result{
		Balances: make([]Balance, 0, len(order)),
		Payments: []Payment{},
	}
	var creditors, debtors []position
	for _, email := range order {
		b := paid[email] - share[email]
		res.Balances = append(res.Balances, Balance{Email: email, Balance: b})
		switch {
		case b > 0:
			creditors = append(creditors, position{email: email, amount: b})
		case b < 0:
			debtors = append(debtors, position{email: email, amount: -b})
		}
	}

	sort.SliceStable(creditors, func(i, j int) bool { return creditors[i].amount > creditors[j].amount })
	sort.SliceStable(debtors, func(i, j int) bool { return debtors[i].amount > debtors[j].amount })

	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		amount := min(creditors[i].amount, debtors[j].amount)
		if amount > 0 {
			res.Payments = append(res.Payments, Payment{
				From:   debtors[j].email,
				To:     creditors[i].email,
				Amount: amount,
			})
		}
		creditors[i].amount -= amount
		debtors[j].amount -= amount
		if creditors[i].amount == 0 {
			i++
		}
		if debtors[j].amount == 0 {
			j++
		}
	}

	return res
}

// Total returns the sum of all balances. It is zero when every amount divides
// evenly among its participants; otherwise it equals the rounding remainders
// kept by payers plus any amounts paid for expenses without participants.
func (r Result) Total() int64 {
	var sum int64
	for _, b := range r.Balances {
		sum += b.Balance
	}
	return sum
}

// Outstanding returns the total owed to creditors.
func (r Result) Outstanding() int64 {
	var sum int64
	for _, b := range r.Balances {
		if b.Balance > 0 {
			sum += b.Balance
		}
	}
	return sum
}

// Transferred returns the sum of all payment amounts.
func (r Result) Transferred() int64 {
	var sum int64
	for _, p := range r.Payments {
		sum += p.Amount
	}
	return sum
}

// BalanceOf returns the balance for email and whether it appears in the result.
func (r Result) BalanceOf(email string) (int64, bool) {
	for _, b := range r.Balances {
		if b.Email == email {
			return b.Balance, true
		}
	}
	return 0, false
}
