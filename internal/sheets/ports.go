// Package sheets defines the settlement export port and the tabular layout
// shared by its adapters.
package sheets

import (
	"context"

	"conti/internal/core"
	"conti/internal/settlement"
)

// SettlementExporter publishes a room settlement to an external sheet.
type SettlementExporter interface {
	ExportSettlement(ctx context.Context, room core.Room, res settlement.Result) error
}

// Rows lays out a settlement as a header, a balances block and a payments
// block separated by empty rows. Amounts are formatted with exponent decimals.
func Rows(room core.Room, res settlement.Result, exponent int32) [][]any {
	rows := [][]any{
		{"Room", room.Name, room.ID},
		{},
		{"Email", "Balance"},
	}
	for _, b := range res.Balances {
		rows = append(rows, []any{b.Email, core.FormatAmount(b.Balance, exponent)})
	}
	rows = append(rows, []any{}, []any{"From", "To", "Amount"})
	for _, p := range res.Payments {
		rows = append(rows, []any{p.From, p.To, core.FormatAmount(p.Amount, exponent)})
	}
	return rows
}
