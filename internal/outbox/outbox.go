package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"apptconfirm/internal/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS sent_emails (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	event_id    TEXT NOT NULL,
	event_title TEXT NOT NULL DEFAULT '',
	role        TEXT NOT NULL,
	recipients  TEXT NOT NULL,
	subject     TEXT NOT NULL,
	message_id  TEXT NOT NULL,
	sent_at     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sent_emails_event ON sent_emails(event_id);
`

// Entry is one delivered reminder.
type Entry struct {
	ID         string
	SessionID  string
	EventID    string
	EventTitle string
	Role       models.Role
	Recipients string
	Subject    string
	MessageID  string
	SentAt     time.Time
}

// Store is a sqlite log of sent reminders.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the outbox database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores e, assigning an ID and timestamp when missing.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.SentAt.IsZero() {
		e.SentAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sent_emails (id, session_id, event_id, event_title, role, recipients, subject, message_id, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, e.EventID, e.EventTitle, string(e.Role), e.Recipients, e.Subject, e.MessageID, e.SentAt)
	if err != nil {
		return fmt.Errorf("failed to record sent email: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, event_id, event_title, role, recipients, subject, message_id, sent_at
		FROM sent_emails
		ORDER BY sent_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sent emails: %w", err)
	}
	return scanEntries(rows)
}

// SentFor returns the entries recorded for an event, oldest first.
func (s *Store) SentFor(ctx context.Context, eventID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, event_id, event_title, role, recipients, subject, message_id, sent_at
		FROM sent_emails
		WHERE event_id = ?
		ORDER BY sent_at ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sent emails: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var role string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.EventID, &e.EventTitle, &role, &e.Recipients, &e.Subject, &e.MessageID, &e.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan sent email: %w", err)
		}
		e.Role = models.Role(role)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
