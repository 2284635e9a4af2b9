package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/ponyo877/roomcast/server/domain"
	"github.com/ponyo877/roomcast/server/usecase"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"

	sqliteDriverName = "sqlite3_roomcast"
)

var registerOnce sync.Once

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Open builds the message store selected by driver.
func Open(ctx context.Context, driver, dsn string, ids usecase.IDGenerator, retention int) (usecase.MessageStore, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(ids, retention), nil
	case DriverSQLite:
		db, err := OpenSQLite(dsn)
		if err != nil {
			return nil, err
		}
		store, err := NewSQLiteStore(ctx, db, ids, retention)
		if err != nil {
			db.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// OpenSQLite opens dsn with the contains_fold SQL function registered.
// In-memory databases live per connection, so the pool is pinned to one.
func OpenSQLite(dsn string) (*sql.DB, error) {
	registerOnce.Do(func() {
		sql.Register(sqliteDriverName,
			&sqlite3.SQLiteDriver{
				ConnectHook: func(conn *sqlite3.SQLiteConn) error {
					return conn.RegisterFunc("contains_fold", containsFold, true)
				},
			})
	})
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY,
	room        TEXT    NOT NULL,
	sender_id   TEXT    NOT NULL,
	sender_name TEXT    NOT NULL,
	body        TEXT    NOT NULL,
	image       TEXT    NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	in_room     INTEGER NOT NULL DEFAULT 1,
	in_global   INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_messages_room ON messages (room, in_room, id);
CREATE TABLE IF NOT EXISTS reactions (
	message_id INTEGER NOT NULL,
	user_id    TEXT    NOT NULL,
	emoji      TEXT    NOT NULL,
	PRIMARY KEY (message_id, user_id)
);
CREATE TABLE IF NOT EXISTS reads (
	message_id INTEGER NOT NULL,
	reader_id  TEXT    NOT NULL,
	PRIMARY KEY (message_id, reader_id)
);
`

// SQLiteStore keeps history in SQLite. Rows carry one flag per partition;
// eviction clears the flag and a row is purged once neither partition
// holds it.
type SQLiteStore struct {
	db        *sql.DB
	ids       usecase.IDGenerator
	retention int
}

func NewSQLiteStore(ctx context.Context, db *sql.DB, ids usecase.IDGenerator, retention int) (*SQLiteStore, error) {
	if retention < 1 {
		retention = DefaultRetention
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db, ids: ids, retention: retention}, nil
}

func (r *SQLiteStore) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if err := msg.Validate(); err != nil {
		return domain.Message{}, err
	}
	msg.ID, msg.Timestamp = r.ids.Next()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := "INSERT INTO messages (id, room, sender_id, sender_name, body, image, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	if _, err := tx.ExecContext(ctx, query, msg.ID, msg.Room, msg.SenderID, msg.SenderName, msg.Body, msg.Image, msg.Timestamp.UnixNano()); err != nil {
		return domain.Message{}, fmt.Errorf("failed to insert message into room '%s': %w", msg.Room, err)
	}

	evictions := []struct {
		query string
		args  []any
	}{
		{`UPDATE messages SET in_room = 0 WHERE room = ? AND in_room = 1 AND id NOT IN
			(SELECT id FROM messages WHERE room = ? AND in_room = 1 ORDER BY id DESC LIMIT ?)`,
			[]any{msg.Room, msg.Room, r.retention}},
		{`UPDATE messages SET in_global = 0 WHERE in_global = 1 AND id NOT IN
			(SELECT id FROM messages WHERE in_global = 1 ORDER BY id DESC LIMIT ?)`,
			[]any{r.retention}},
		{"DELETE FROM reactions WHERE message_id IN (SELECT id FROM messages WHERE in_room = 0 AND in_global = 0)", nil},
		{"DELETE FROM reads WHERE message_id IN (SELECT id FROM messages WHERE in_room = 0 AND in_global = 0)", nil},
		{"DELETE FROM messages WHERE in_room = 0 AND in_global = 0", nil},
	}
	for _, e := range evictions {
		if _, err := tx.ExecContext(ctx, e.query, e.args...); err != nil {
			return domain.Message{}, fmt.Errorf("failed to evict messages: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Message{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return msg, nil
}

func (r *SQLiteStore) Query(ctx context.Context, room string, q domain.MessageQuery) ([]domain.Message, error) {
	if q.Limit <= 0 {
		return []domain.Message{}, nil
	}
	hasBefore := !q.Before.IsZero()
	var before int64
	if hasBefore {
		before = q.Before.UnixNano()
	}
	query := `
		SELECT id, room, sender_id, sender_name, body, image, created_at FROM messages
		WHERE room = ? AND in_room = 1
		  AND (? = '' OR contains_fold(body, ?) OR contains_fold(sender_name, ?))
		  AND (NOT ? OR created_at < ?)
		ORDER BY id DESC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, room, q.Search, q.Search, q.Search, hasBefore, before, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for room '%s': %w", room, err)
	}
	return r.collect(ctx, rows)
}

func (r *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	query := `
		SELECT id, room, sender_id, sender_name, body, image, created_at FROM messages
		WHERE in_global = 1 ORDER BY id DESC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	return r.collect(ctx, rows)
}

// collect scans newest-first rows and returns them oldest first.
func (r *SQLiteStore) collect(ctx context.Context, rows *sql.Rows) ([]domain.Message, error) {
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	for i := range msgs {
		if err := r.loadMarks(ctx, &msgs[i]); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
	defer rows.Close()
	results := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.Room, &m.SenderID, &m.SenderName, &m.Body, &m.Image, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Timestamp = time.Unix(0, createdAt)
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over messages: %w", err)
	}
	return results, nil
}

// loadMarks fills the reactions and read receipts of m.
func (r *SQLiteStore) loadMarks(ctx context.Context, m *domain.Message) error {
	rows, err := r.db.QueryContext(ctx, "SELECT user_id, emoji FROM reactions WHERE message_id = ?", m.ID)
	if err != nil {
		return fmt.Errorf("failed to query reactions for message %d: %w", m.ID, err)
	}
	for rows.Next() {
		var userID, emoji string
		if err := rows.Scan(&userID, &emoji); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan reaction: %w", err)
		}
		m.SetReaction(userID, emoji)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over reactions: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, "SELECT reader_id FROM reads WHERE message_id = ? ORDER BY rowid", m.ID)
	if err != nil {
		return fmt.Errorf("failed to query reads for message %d: %w", m.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var readerID string
		if err := rows.Scan(&readerID); err != nil {
			return fmt.Errorf("failed to scan read receipt: %w", err)
		}
		m.ReadBy = append(m.ReadBy, readerID)
	}
	return rows.Err()
}

func (r *SQLiteStore) Get(ctx context.Context, room string, messageID int64) (domain.Message, error) {
	query := `
		SELECT id, room, sender_id, sender_name, body, image, created_at FROM messages
		WHERE id = ? AND room = ? AND in_room = 1
	`
	var m domain.Message
	var createdAt int64
	err := r.db.QueryRowContext(ctx, query, messageID, room).Scan(&m.ID, &m.Room, &m.SenderID, &m.SenderName, &m.Body, &m.Image, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Message{}, fmt.Errorf("message %d in room %q: %w", messageID, room, domain.ErrNotFound)
		}
		return domain.Message{}, fmt.Errorf("error querying message: %w", err)
	}
	m.Timestamp = time.Unix(0, createdAt)
	if err := r.loadMarks(ctx, &m); err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

func (r *SQLiteStore) exists(ctx context.Context, room string, messageID int64) error {
	var one int
	query := "SELECT 1 FROM messages WHERE id = ? AND room = ? AND in_room = 1"
	if err := r.db.QueryRowContext(ctx, query, messageID, room).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("message %d in room %q: %w", messageID, room, domain.ErrNotFound)
		}
		return fmt.Errorf("error querying message: %w", err)
	}
	return nil
}

func (r *SQLiteStore) RecordReaction(ctx context.Context, room string, messageID int64, userID, emoji string) error {
	if err := r.exists(ctx, room, messageID); err != nil {
		return err
	}
	query := `
		INSERT INTO reactions (message_id, user_id, emoji) VALUES (?, ?, ?)
		ON CONFLICT (message_id, user_id) DO UPDATE SET emoji = excluded.emoji
	`
	if _, err := r.db.ExecContext(ctx, query, messageID, userID, emoji); err != nil {
		return fmt.Errorf("failed to record reaction on message %d: %w", messageID, err)
	}
	return nil
}

func (r *SQLiteStore) RecordRead(ctx context.Context, room string, messageID int64, readerID string) error {
	if err := r.exists(ctx, room, messageID); err != nil {
		return err
	}
	query := "INSERT OR IGNORE INTO reads (message_id, reader_id) VALUES (?, ?)"
	if _, err := r.db.ExecContext(ctx, query, messageID, readerID); err != nil {
		return fmt.Errorf("failed to record read on message %d: %w", messageID, err)
	}
	return nil
}

func (r *SQLiteStore) Close() error {
	return r.db.Close()
}
