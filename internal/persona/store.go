package persona

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ziadkadry99/twinpilot/internal/db"
)

// Store provides read access to versioned persona rule sets.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Active returns the active rule set for a persona, or nil if the persona has
// no configuration at all.
func (s *Store) Active(ctx context.Context, personaID string) (*RuleSet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT version, rules FROM persona_rules
		WHERE persona_id = ? AND active = 1
		ORDER BY version DESC LIMIT 1`, personaID)

	var version int
	var rulesJSON string
	if err := row.Scan(&version, &rulesJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("loading persona %s: %w", personaID, err)
	}

	var rs RuleSet
	if err := json.Unmarshal([]byte(rulesJSON), &rs); err != nil {
		return nil, fmt.Errorf("parsing persona %s rules: %w", personaID, err)
	}
	rs.PersonaID = personaID
	rs.Version = version
	return &rs, nil
}

// Save stores rs as the next version for its persona and marks earlier
// versions inactive.
func (s *Store) Save(ctx context.Context, rs *RuleSet) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshalling rules: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) + 1 FROM persona_rules WHERE persona_id = ?",
		rs.PersonaID).Scan(&next)
	if err != nil {
		return fmt.Errorf("determining next version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE persona_rules SET active = 0 WHERE persona_id = ?", rs.PersonaID); err != nil {
		return fmt.Errorf("deactivating old versions: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO persona_rules (persona_id, version, active, rules) VALUES (?, ?, 1, ?)",
		rs.PersonaID, next, string(data)); err != nil {
		return fmt.Errorf("inserting rules: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	rs.Version = next
	return nil
}

// EnsureDefault seeds the default rule set for personaID if no version exists
// yet, and returns the active set either way.
func (s *Store) EnsureDefault(ctx context.Context, personaID string) (*RuleSet, error) {
	rs, err := s.Active(ctx, personaID)
	if err != nil {
		return nil, err
	}
	if rs != nil {
		return rs, nil
	}

	seeded := DefaultRuleSet(personaID)
	if err := s.Save(ctx, seeded); err != nil {
		return nil, fmt.Errorf("seeding persona %s: %w", personaID, err)
	}
	return seeded, nil
}
