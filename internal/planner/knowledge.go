package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

// EmbeddingFunc produces an embedding vector for a piece of text.
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

// KnowledgeRetriever surfaces background notes relevant to a query from a
// local vector store. Planning works without it; it only enriches prompts.
type KnowledgeRetriever struct {
	collection *chromem.Collection
	topK       int
	minScore   float32
}

// KnowledgeConfig controls retrieval behaviour.
type KnowledgeConfig struct {
	PersistPath string
	Collection  string
	TopK        int
	MinScore    float32
}

// NewKnowledgeRetriever opens (or creates) the vector store at the
// configured path.
func NewKnowledgeRetriever(cfg KnowledgeConfig, embed EmbeddingFunc) (*KnowledgeRetriever, error) {
	if cfg.Collection == "" {
		cfg.Collection = "knowledge"
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 0.6
	}

	var db *chromem.DB
	var err error
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(filepath.Join(cfg.PersistPath, "chromem.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("open knowledge store: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, chromem.EmbeddingFunc(embed))
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	return &KnowledgeRetriever{
		collection: collection,
		topK:       cfg.TopK,
		minScore:   cfg.MinScore,
	}, nil
}

// AddNote stores one background note.
func (r *KnowledgeRetriever) AddNote(ctx context.Context, id, content string, metadata map[string]string) error {
	return r.collection.AddDocument(ctx, chromem.Document{
		ID:       id,
		Content:  content,
		Metadata: metadata,
	})
}

// SeedFromFile loads background notes from a JSON file. The file holds an
// array of objects with "id", "content" and optional "tags". Missing files
// are not an error; the retriever just stays empty.
func (r *KnowledgeRetriever) SeedFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read knowledge file: %w", err)
	}
	var notes []struct {
		ID      string   `json:"id"`
		Content string   `json:"content"`
		Tags    []string `json:"tags,omitempty"`
	}
	if err := json.Unmarshal(data, &notes); err != nil {
		return fmt.Errorf("parse knowledge file: %w", err)
	}
	for i, note := range notes {
		id := note.ID
		if id == "" {
			id = fmt.Sprintf("note-%d", i)
		}
		var metadata map[string]string
		if len(note.Tags) > 0 {
			metadata = map[string]string{"tags": strings.Join(note.Tags, ",")}
		}
		if err := r.AddNote(ctx, id, note.Content, metadata); err != nil {
			return fmt.Errorf("seed note %s: %w", id, err)
		}
	}
	return nil
}

// Retrieve returns the notes most similar to query, formatted for prompt
// injection. An empty string means nothing relevant was found.
func (r *KnowledgeRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	count := r.collection.Count()
	if count == 0 {
		return "", nil
	}
	topK := r.topK
	if topK > count {
		topK = count
	}
	results, err := r.collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return "", fmt.Errorf("query knowledge store: %w", err)
	}

	var b strings.Builder
	for _, result := range results {
		if result.Similarity < r.minScore {
			continue
		}
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(result.Content))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
