package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/twinpilot/internal/embeddings"
)

const collectionName = "grounding"

// ChromemStore implements Store using chromem-go.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	embedFunc  chromem.EmbeddingFunc

	mu      sync.RWMutex
	byScope map[string]int // passage count per persona scope
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore(embedder embeddings.Embedder) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: col,
		embedder:   embedder,
		embedFunc:  ef,
		byScope:    make(map[string]int),
	}, nil
}

func (s *ChromemStore) AddPassages(ctx context.Context, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(passages))
	for i, p := range passages {
		docs[i] = chromem.Document{
			ID:      p.ID,
			Content: p.Text,
			Metadata: map[string]string{
				"source_id":  p.SourceID,
				"section":    p.Section,
				"page":       strconv.Itoa(p.Page),
				"persona_id": p.PersonaID,
			},
		}
	}

	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return err
	}

	s.mu.Lock()
	for _, p := range passages {
		s.byScope[p.PersonaID]++
	}
	s.mu.Unlock()
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, query, scope string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	var where map[string]string
	if scope != "" {
		where = map[string]string{"persona_id": scope}
	}

	results, err := s.collection.Query(ctx, query, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		page, _ := strconv.Atoi(r.Metadata["page"])
		out[i] = SearchResult{
			Passage: Passage{
				ID:        r.ID,
				SourceID:  r.Metadata["source_id"],
				Text:      r.Content,
				Section:   r.Metadata["section"],
				Page:      page,
				PersonaID: r.Metadata["persona_id"],
			},
			Similarity: r.Similarity,
		}
	}

	return out, nil
}

func (s *ChromemStore) HasMaterial(ctx context.Context, scope string) (bool, error) {
	if s.collection.Count() == 0 {
		return false, nil
	}
	if scope == "" {
		return true, nil
	}

	s.mu.RLock()
	n, tracked := s.byScope[scope]
	s.mu.RUnlock()
	if tracked {
		return n > 0, nil
	}

	// Counts are only tracked for passages added in this process; after a
	// Load the scope has to be probed with a minimal filtered query.
	results, err := s.collection.Query(ctx, scope, 1, map[string]string{"persona_id": scope}, nil)
	if err != nil {
		return false, fmt.Errorf("probing scope %q: %w", scope, err)
	}

	s.mu.Lock()
	s.byScope[scope] = len(results)
	s.mu.Unlock()
	return len(results) > 0, nil
}

func (s *ChromemStore) Persist(_ context.Context, dir string) error {
	return s.db.ExportToFile(dir+"/grounding.gob.gz", true, "")
}

func (s *ChromemStore) Load(_ context.Context, dir string) error {
	if err := s.db.ImportFromFile(dir+"/grounding.gob.gz", ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col

	// Per-scope counts are rebuilt lazily by HasMaterial.
	s.mu.Lock()
	s.byScope = make(map[string]int)
	s.mu.Unlock()
	return nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}
