// Package tickets persists completed diagnoses as support tickets in a
// local SQLite database.
package tickets

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"

	"github.com/opstriage/triage-engine/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	id          TEXT PRIMARY KEY,
	alert_id    TEXT NOT NULL,
	module      TEXT NOT NULL,
	channel     TEXT NOT NULL,
	confidence  INTEGER NOT NULL,
	band        TEXT NOT NULL,
	alert_text  TEXT NOT NULL,
	diagnosis   TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_alert_id ON tickets(alert_id);
CREATE INDEX IF NOT EXISTS idx_tickets_created_at ON tickets(created_at);
`

// Store files tickets into SQLite.
type Store struct {
	db *sql.DB
}

// Ticket is a stored row, read back via Recent.
type Ticket struct {
	ID         string
	AlertID    string
	Module     string
	Channel    string
	Confidence int
	Band       string
	AlertText  string
	Diagnosis  models.Diagnosis
	CreatedAt  time.Time
}

// Open opens or creates the ticket database at path and ensures the schema.
// Creates the parent directory if it does not exist.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ticket dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ticket schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// File stores one completed diagnosis and returns the new ticket id.
func (s *Store) File(ctx context.Context, alertText string, diagnosis models.Diagnosis) (string, error) {
	payload, err := json.Marshal(diagnosis)
	if err != nil {
		return "", fmt.Errorf("encode diagnosis: %w", err)
	}

	id := "TCK-" + uuid.NewString()[:8]
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tickets (id, alert_id, module, channel, confidence, band, alert_text, diagnosis, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		diagnosis.Parsed.TicketID,
		diagnosis.Parsed.Module,
		string(diagnosis.Parsed.Channel),
		diagnosis.Confidence.Overall,
		string(diagnosis.Confidence.Band),
		alertText,
		string(payload),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("insert ticket: %w", err)
	}
	return id, nil
}

// Recent returns the newest tickets, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Ticket, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, alert_id, module, channel, confidence, band, alert_text, diagnosis, created_at
		 FROM tickets ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []Ticket
	for rows.Next() {
		var t Ticket
		var payload, createdAt string
		if err := rows.Scan(&t.ID, &t.AlertID, &t.Module, &t.Channel, &t.Confidence, &t.Band, &t.AlertText, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &t.Diagnosis); err != nil {
			return nil, fmt.Errorf("decode diagnosis for %s: %w", t.ID, err)
		}
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			t.CreatedAt = ts
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}
