package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/twinpilot/internal/db"
)

// ConversationStore persists the per-turn conversation log. Entries are
// written once, after the pipeline completes, never incrementally.
type ConversationStore struct {
	db *db.DB
}

func NewConversationStore(database *db.DB) *ConversationStore {
	return &ConversationStore{db: database}
}

// LogEntry is one logged utterance or reply.
type LogEntry struct {
	ID         string    `json:"id"`
	TurnID     string    `json:"turn_id"`
	PersonaID  string    `json:"persona_id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Intent     string    `json:"intent,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// LogTurn records the user's utterance and the final reply as one atomic
// write.
func (s *ConversationStore) LogTurn(turnID, personaID, utterance, reply, intent string, confidence float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning conversation log write: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO conversation_log (id, turn_id, persona_id, role, content, intent, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	if _, err := tx.Exec(insert, uuid.New().String(), turnID, personaID, "user", utterance, intent, 0.0); err != nil {
		return fmt.Errorf("logging utterance: %w", err)
	}
	if _, err := tx.Exec(insert, uuid.New().String(), turnID, personaID, "assistant", reply, intent, confidence); err != nil {
		return fmt.Errorf("logging reply: %w", err)
	}

	return tx.Commit()
}

// History returns the most recent entries for a persona, oldest first.
func (s *ConversationStore) History(personaID string, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, turn_id, persona_id, role, content, intent, confidence, created_at
		FROM conversation_log
		WHERE persona_id = ?
		ORDER BY rowid DESC
		LIMIT ?`, personaID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying conversation log: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.TurnID, &e.PersonaID, &e.Role, &e.Content, &e.Intent, &e.Confidence, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
