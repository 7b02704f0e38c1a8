package compliance

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/twinpilot/internal/db"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

// Record is one persisted audit outcome. Records are immutable once written;
// there is no update path.
type Record struct {
	ID                string    `json:"id"`
	TurnID            string    `json:"turn_id"`
	PersonaID         string    `json:"persona_id"`
	Intent            string    `json:"intent"`
	Timestamp         time.Time `json:"timestamp"`
	DeterministicPass bool      `json:"deterministic_passed"`
	StructureScore    float64   `json:"structure_score"`
	VoiceScore        float64   `json:"voice_score"`
	BlendedDraftScore float64   `json:"blended_draft_score"`
	BlendedFinalScore float64   `json:"blended_final_score"`
	RewriteApplied    bool      `json:"rewrite_applied"`
	FailSafeUsed      bool      `json:"fail_safe_used"`
	ViolatedClauses   []string  `json:"violated_clauses,omitempty"`
	RewriteDirectives []string  `json:"rewrite_directives,omitempty"`
	DraftText         string    `json:"draft_text"`
	FinalText         string    `json:"final_text"`
}

// Store persists audit records.
type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// SaveRecord writes one immutable audit record for a completed turn. A second
// write for the same turn ID is an error, not an overwrite.
func (s *Store) SaveRecord(turnID, personaID, intent string, cr turn.ComplianceResult) (*Record, error) {
	rec := &Record{
		ID:                uuid.New().String(),
		TurnID:            turnID,
		PersonaID:         personaID,
		Intent:            intent,
		Timestamp:         time.Now().UTC(),
		DeterministicPass: cr.DeterministicPass,
		StructureScore:    cr.StructureScore,
		VoiceScore:        cr.VoiceScore,
		BlendedDraftScore: cr.BlendedDraftScore,
		BlendedFinalScore: cr.BlendedFinalScore,
		RewriteApplied:    cr.RewriteApplied,
		FailSafeUsed:      cr.FailSafeUsed,
		ViolatedClauses:   cr.ViolatedClauses,
		RewriteDirectives: cr.RewriteDirectives,
		DraftText:         cr.DraftText,
		FinalText:         cr.FinalText,
	}

	clauses, err := json.Marshal(orEmpty(rec.ViolatedClauses))
	if err != nil {
		return nil, fmt.Errorf("marshaling violated clauses: %w", err)
	}
	dirs, err := json.Marshal(orEmpty(rec.RewriteDirectives))
	if err != nil {
		return nil, fmt.Errorf("marshaling rewrite directives: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO audit_records (
			id, turn_id, persona_id, intent, timestamp,
			deterministic_passed, structure_score, voice_score,
			blended_draft_score, blended_final_score,
			rewrite_applied, fail_safe_used,
			violated_clauses, rewrite_directives, draft_text, final_text
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TurnID, rec.PersonaID, rec.Intent, rec.Timestamp,
		rec.DeterministicPass, rec.StructureScore, rec.VoiceScore,
		rec.BlendedDraftScore, rec.BlendedFinalScore,
		rec.RewriteApplied, rec.FailSafeUsed,
		string(clauses), string(dirs), rec.DraftText, rec.FinalText,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting audit record: %w", err)
	}

	return rec, nil
}

// GetByTurn fetches the audit record for a turn, or nil when none exists.
func (s *Store) GetByTurn(turnID string) (*Record, error) {
	rec, err := scanRecord(s.db.QueryRow(selectRecord+` WHERE turn_id = ?`, turnID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListRecent returns the newest records for a persona.
func (s *Store) ListRecent(personaID string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(selectRecord+` WHERE persona_id = ? ORDER BY timestamp DESC LIMIT ?`, personaID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

const selectRecord = `
	SELECT id, turn_id, persona_id, intent, timestamp,
	       deterministic_passed, structure_score, voice_score,
	       blended_draft_score, blended_final_score,
	       rewrite_applied, fail_safe_used,
	       violated_clauses, rewrite_directives, draft_text, final_text
	FROM audit_records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var clauses, dirs string
	err := row.Scan(
		&rec.ID, &rec.TurnID, &rec.PersonaID, &rec.Intent, &rec.Timestamp,
		&rec.DeterministicPass, &rec.StructureScore, &rec.VoiceScore,
		&rec.BlendedDraftScore, &rec.BlendedFinalScore,
		&rec.RewriteApplied, &rec.FailSafeUsed,
		&clauses, &dirs, &rec.DraftText, &rec.FinalText,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(clauses), &rec.ViolatedClauses); err != nil {
		return nil, fmt.Errorf("parsing violated clauses: %w", err)
	}
	if err := json.Unmarshal([]byte(dirs), &rec.RewriteDirectives); err != nil {
		return nil, fmt.Errorf("parsing rewrite directives: %w", err)
	}
	return &rec, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
