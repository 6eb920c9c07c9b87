// Package storage persists JSON payloads keyed by (kind, id) in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Store keeps one JSON payload per (kind, id).
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a store on an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Get returns the payload stored for (kind, id), or nil if there is none.
func (s *Store) Get(kind, id string) ([]byte, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM resource_state WHERE kind = ? AND id = ?`, kind, id,
	).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

// Set inserts or replaces the payload for (kind, id).
func (s *Store) Set(kind, id string, payload []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO resource_state (kind, id, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, kind, id, string(payload), s.now().UTC().Unix())
	if err != nil {
		return err
	}

	log.Debug().Str("kind", kind).Str("id", id).Msg("Stored entry")
	return nil
}

// Delete removes the given ids of kind in one transaction.
func (s *Store) Delete(kind string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM resource_state WHERE kind = ? AND id = ?`, kind, id); err != nil {
			return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
		}
	}
	return tx.Commit()
}

// Clear removes all entries of a kind.
func (s *Store) Clear(kind string) error {
	_, err := s.db.Exec(`DELETE FROM resource_state WHERE kind = ?`, kind)
	return err
}

// GetAll returns every payload of a kind keyed by id.
func (s *Store) GetAll(kind string) (map[string][]byte, error) {
	rows, err := s.db.Query(`SELECT id, payload FROM resource_state WHERE kind = ?`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payloads := make(map[string][]byte)
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		payloads[id] = []byte(payload)
	}
	return payloads, rows.Err()
}
