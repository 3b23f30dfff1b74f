// Package storage is the SQLite implementation of the room and expense store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"conti/internal/core"
	"conti/internal/rooms"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ rooms.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateRoom(ctx context.Context, room core.Room) (core.Room, error) {
	if err := room.Validate(); err != nil {
		return core.Room{}, err
	}
	if room.ID == "" {
		id, err := core.NewRoomID()
		if err != nil {
			return core.Room{}, err
		}
		room.ID = id
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = r.now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (id, name, owner_email, created_at) VALUES (?, ?, ?, ?)`,
		room.ID, room.Name, room.OwnerEmail, room.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Room{}, fmt.Errorf("create room %s: %w", room.ID, rooms.ErrRoomExists)
		}
		return core.Room{}, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

func (r *SQLiteRepository) AddMember(ctx context.Context, roomID, email string) error {
	if _, err := r.GetRoom(ctx, roomID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO room_members (room_id, email) VALUES (?, ?)`, roomID, email)
	if err != nil {
		if isUniqueViolation(err) {
			return rooms.ErrMemberExists
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, roomID string, e core.NewExpense) (core.ExpenseRecord, error) {
	if _, err := r.GetRoom(ctx, roomID); err != nil {
		return core.ExpenseRecord{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	created := r.now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (room_id, title, amount, payer_email, created_at) VALUES (?, ?, ?, ?, ?)`,
		roomID, e.Title, e.Amount, e.PayerEmail, created.Format(timeLayout))
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("read expense id: %w", err)
	}

	for _, p := range e.Participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO expense_participants (expense_id, email) VALUES (?, ?)`, id, p); err != nil {
			return core.ExpenseRecord{}, fmt.Errorf("insert participant %s: %w", p, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("commit expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", id,
		"room_id", roomID,
		"amount", e.Amount,
		"participants", len(e.Participants))

	return core.ExpenseRecord{
		ID:           id,
		RoomID:       roomID,
		Title:        e.Title,
		Amount:       e.Amount,
		PayerEmail:   e.PayerEmail,
		Participants: append([]string(nil), e.Participants...),
		CreatedAt:    created,
	}, nil
}

func (r *SQLiteRepository) GetRoom(ctx context.Context, roomID string) (core.Room, error) {
	var (
		room    core.Room
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, owner_email, created_at FROM rooms WHERE id = ?`, roomID).
		Scan(&room.ID, &room.Name, &room.OwnerEmail, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Room{}, rooms.ErrRoomNotFound
	}
	if err != nil {
		return core.Room{}, fmt.Errorf("get room %s: %w", roomID, err)
	}
	room.CreatedAt = parseTime(created)
	return room, nil
}

func (r *SQLiteRepository) ListMembers(ctx context.Context, roomID string) ([]core.Member, error) {
	if _, err := r.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT email FROM room_members WHERE room_id = ? ORDER BY id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []core.Member
	for rows.Next() {
		m := core.Member{RoomID: roomID}
		if err := rows.Scan(&m.Email); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListRoomIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM rooms ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (r *SQLiteRepository) ExpensesForRoom(ctx context.Context, roomID string) ([]core.ExpenseRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, amount, payer_email FROM expenses WHERE room_id = ? ORDER BY id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseRow
	for rows.Next() {
		var e core.ExpenseRow
		if err := rows.Scan(&e.ID, &e.Title, &e.Amount, &e.PayerEmail); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ParticipantsForExpense(ctx context.Context, expenseID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT email FROM expense_participants WHERE expense_id = ? ORDER BY id`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, roomID string) ([]core.ExpenseRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, amount, payer_email, created_at FROM expenses
		 WHERE room_id = ? ORDER BY created_at DESC, id DESC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	var out []core.ExpenseRecord
	for rows.Next() {
		rec := core.ExpenseRecord{RoomID: roomID}
		var created string
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Amount, &rec.PayerEmail, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		rec.CreatedAt = parseTime(created)
		out = append(out, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	for i := range out {
		parts, err := r.ParticipantsForExpense(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Participants = parts
	}
	return out, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
