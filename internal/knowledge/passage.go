// Package knowledge is the grounding-material store consumed by the answer
// pipeline. It stores passages of source documents per persona and serves
// semantic search over them; access control is assumed to have been applied
// before material reaches the store.
package knowledge

import "context"

// Passage is one stored piece of grounding material.
type Passage struct {
	ID        string
	SourceID  string
	Text      string
	Section   string
	Page      int
	PersonaID string
}

// SearchResult pairs a passage with its similarity score.
type SearchResult struct {
	Passage    Passage
	Similarity float32
}

// Store defines the interface for storing and searching grounding passages.
type Store interface {
	// AddPassages adds or updates passages in the store.
	AddPassages(ctx context.Context, passages []Passage) error

	// Search performs a semantic search scoped to one persona's material.
	// An empty scope searches all material.
	Search(ctx context.Context, query, scope string, topK int) ([]SearchResult, error)

	// HasMaterial reports whether any grounding material exists for the
	// given persona scope.
	HasMaterial(ctx context.Context, scope string) (bool, error)

	// Persist saves the store's data to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the store's data from the given directory.
	Load(ctx context.Context, dir string) error

	// Count returns the total number of passages in the store.
	Count() int
}
