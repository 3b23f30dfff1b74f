// Package memory keeps exported settlements in process.
package memory

import (
	"context"
	"sync"

	"conti/internal/core"
	"conti/internal/settlement"
	"conti/internal/sheets"
)

type Exporter struct {
	mu       sync.Mutex
	exponent int32
	sheets   map[string][][]any
	exports  int
}

var _ sheets.SettlementExporter = (*Exporter)(nil)

func New(exponent int32) *Exporter {
	return &Exporter{exponent: exponent, sheets: make(map[string][][]any)}
}

// ExportSettlement replaces the stored rows for the room.
func (e *Exporter) ExportSettlement(_ context.Context, room core.Room, res settlement.Result) error {
	rows := sheets.Rows(room, res, e.exponent)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sheets[room.ID] = rows
	e.exports++
	return nil
}

// Sheet returns the last rows exported for roomID.
func (e *Exporter) Sheet(roomID string) ([][]any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows, ok := e.sheets[roomID]
	return rows, ok
}

// Exports counts calls to ExportSettlement.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}
