// Package postgres is the PostgreSQL implementation of the room and expense store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"conti/internal/core"
	"conti/internal/rooms"
)

const uniqueViolation = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

var _ rooms.Store = (*Repository)(nil)

func New(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// EnsureSchema creates the tables if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			owner_email TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS room_members (
			id BIGSERIAL PRIMARY KEY,
			room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			email TEXT NOT NULL,
			UNIQUE (room_id, email)
		);
		CREATE TABLE IF NOT EXISTS expenses (
			id BIGSERIAL PRIMARY KEY,
			room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			amount BIGINT NOT NULL CHECK (amount > 0),
			payer_email TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_expenses_room ON expenses(room_id, id);
		CREATE TABLE IF NOT EXISTS expense_participants (
			id BIGSERIAL PRIMARY KEY,
			expense_id BIGINT NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
			email TEXT NOT NULL,
			UNIQUE (expense_id, email)
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *Repository) CreateRoom(ctx context.Context, room core.Room) (core.Room, error) {
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
		room.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO rooms (id, name, owner_email, created_at) VALUES ($1, $2, $3, $4)`,
		room.ID, room.Name, room.OwnerEmail, room.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Room{}, fmt.Errorf("create room %s: %w", room.ID, rooms.ErrRoomExists)
		}
		return core.Room{}, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

func (r *Repository) AddMember(ctx context.Context, roomID, email string) error {
	if _, err := r.GetRoom(ctx, roomID); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO room_members (room_id, email) VALUES ($1, $2)`, roomID, email)
	if err != nil {
		if isUniqueViolation(err) {
			return rooms.ErrMemberExists
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (r *Repository) CreateExpense(ctx context.Context, roomID string, e core.NewExpense) (core.ExpenseRecord, error) {
	if _, err := r.GetRoom(ctx, roomID); err != nil {
		return core.ExpenseRecord{}, err
	}

	rec := core.ExpenseRecord{
		RoomID:       roomID,
		Title:        e.Title,
		Amount:       e.Amount,
		PayerEmail:   e.PayerEmail,
		Participants: append([]string(nil), e.Participants...),
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO expenses (room_id, title, amount, payer_email)
			 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
			roomID, e.Title, e.Amount, e.PayerEmail).Scan(&rec.ID, &rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		batch := &pgx.Batch{}
		for _, p := range e.Participants {
			batch.Queue(`INSERT INTO expense_participants (expense_id, email) VALUES ($1, $2)`, rec.ID, p)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert participants: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	return rec, nil
}

func (r *Repository) GetRoom(ctx context.Context, roomID string) (core.Room, error) {
	var room core.Room
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, owner_email, created_at FROM rooms WHERE id = $1`, roomID).
		Scan(&room.ID, &room.Name, &room.OwnerEmail, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Room{}, rooms.ErrRoomNotFound
	}
	if err != nil {
		return core.Room{}, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return room, nil
}

func (r *Repository) ListMembers(ctx context.Context, roomID string) ([]core.Member, error) {
	if _, err := r.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT email FROM room_members WHERE room_id = $1 ORDER BY id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	emails, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan members: %w", err)
	}
	out := make([]core.Member, 0, len(emails))
	for _, e := range emails {
		out = append(out, core.Member{RoomID: roomID, Email: e})
	}
	return out, nil
}

func (r *Repository) ListRoomIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM rooms ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *Repository) ExpensesForRoom(ctx context.Context, roomID string) ([]core.ExpenseRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, amount, payer_email FROM expenses WHERE room_id = $1 ORDER BY id`, roomID)
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

func (r *Repository) ParticipantsForExpense(ctx context.Context, expenseID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT email FROM expense_participants WHERE expense_id = $1 ORDER BY id`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *Repository) ListExpenses(ctx context.Context, roomID string) ([]core.ExpenseRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.title, e.amount, e.payer_email, e.created_at,
		        COALESCE(array_agg(p.email ORDER BY p.id) FILTER (WHERE p.email IS NOT NULL), '{}')
		 FROM expenses e
		 LEFT JOIN expense_participants p ON p.expense_id = e.id
		 WHERE e.room_id = $1
		 GROUP BY e.id
		 ORDER BY e.created_at DESC, e.id DESC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseRecord
	for rows.Next() {
		rec := core.ExpenseRecord{RoomID: roomID}
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Amount, &rec.PayerEmail, &rec.CreatedAt, &rec.Participants); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
