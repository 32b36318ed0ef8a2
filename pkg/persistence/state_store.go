package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"autogippity/pkg/agent"
)

// Save stores value as the JSON snapshot for id. It implements agent.StateStore.
func (s *Store) Save(id string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode state for %s: %w", id, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO agent_states (agent_id, snapshot, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		ON CONFLICT(agent_id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		id, string(b))
	if err != nil {
		return fmt.Errorf("failed to save state for %s: %w", id, err)
	}
	return nil
}

// Load decodes the snapshot for id into dest. A missing snapshot returns
// agent.ErrStateNotFound.
func (s *Store) Load(id string, dest any) error {
	var snapshot string
	err := s.db.QueryRow(`SELECT snapshot FROM agent_states WHERE agent_id = ?`, id).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", agent.ErrStateNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to load state for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(snapshot), dest); err != nil {
		return fmt.Errorf("failed to decode state for %s: %w", id, err)
	}
	return nil
}
