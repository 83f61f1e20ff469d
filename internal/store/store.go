// Package store keeps a small SQLite ledger of processed Gmail message
// IDs so scheduled runs only apply notifications they have not seen.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a file-backed ledger of processed messages.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS processed_messages (
		message_id TEXT PRIMARY KEY,
		processed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create processed_messages table: %w", err)
	}

	return &Store{db: db}, nil
}

// IsProcessed reports whether messageID was already applied.
func (s *Store) IsProcessed(messageID string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM processed_messages WHERE message_id = ?", messageID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query processed_messages: %w", err)
	}
	return true, nil
}

// MarkProcessed records messageID as applied. Recording the same ID
// twice is not an error.
func (s *Store) MarkProcessed(messageID string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO processed_messages (message_id) VALUES (?)", messageID)
	if err != nil {
		return fmt.Errorf("failed to record processed message: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
