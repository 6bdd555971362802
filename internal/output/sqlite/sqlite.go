package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hejijunhao/amber/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	turn_id     TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	role        TEXT NOT NULL CHECK (role IN ('user', 'bot')),
	text        TEXT NOT NULL,
	kind        TEXT,
	label       TEXT,
	confidence  REAL,
	error       TEXT,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS messages_session ON messages (session_id, id);
`

// Roles of a transcript message.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// Message is one stored line of a conversation.
type Message struct {
	TurnID     string          `json:"turn_id"`
	SessionID  string          `json:"session_id"`
	Role       string          `json:"role"`
	Text       string          `json:"text"`
	Kind       model.ReplyKind `json:"kind,omitempty"`
	Label      string          `json:"label,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Output stores each turn as one user message followed by one bot message
// per reply, in a SQLite database.
type Output struct {
	db *sql.DB
}

// New opens (or creates) the database at path and runs migrations.
// ":memory:" gives a private in-memory transcript.
func New(path string) (*Output, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite output: open: %w", err)
	}
	// One writer; SQLite serializes writes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite output: pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite output: migrate: %w", err)
	}
	return &Output{db: db}, nil
}

// Write inserts the turn's messages in one transaction.
func (o *Output) Write(ctx context.Context, rec model.TurnRecord) error {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite output: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO messages
		(turn_id, session_id, role, text, kind, label, confidence, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite output: prepare: %w", err)
	}
	defer stmt.Close()

	ts := rec.Timestamp.UTC().Format(time.RFC3339Nano)
	if _, err := stmt.ExecContext(ctx, rec.ID, rec.SessionID, RoleUser, rec.Query,
		nil, nil, nil, nullable(rec.Error), ts); err != nil {
		return fmt.Errorf("sqlite output: insert query: %w", err)
	}
	for _, r := range rec.Replies {
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.SessionID, RoleBot, r.Text,
			string(r.Kind), nullable(r.Label), r.Confidence, nil, ts); err != nil {
			return fmt.Errorf("sqlite output: insert reply: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite output: commit: %w", err)
	}
	return nil
}

// History returns the most recent messages of a session in chronological
// order. limit <= 0 returns all of them.
func (o *Output) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := o.db.QueryContext(ctx, `SELECT turn_id, session_id, role, text,
		COALESCE(kind, ''), COALESCE(label, ''), COALESCE(confidence, 0), COALESCE(error, ''), created_at
		FROM (SELECT * FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT ?)
		ORDER BY id ASC`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite output: history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m    Message
			kind string
			ts   string
		)
		if err := rows.Scan(&m.TurnID, &m.SessionID, &m.Role, &m.Text,
			&kind, &m.Label, &m.Confidence, &m.Error, &ts); err != nil {
			return nil, fmt.Errorf("sqlite output: scan: %w", err)
		}
		m.Kind = model.ReplyKind(kind)
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close closes the database.
func (o *Output) Close() error {
	return o.db.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
