package pinecone

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/remodelai/remodel-backend/internal/platform/logger"
)

// Document is one retrieved grounding snippet.
type Document struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]any
}

// VectorStore wraps the Pinecone data plane for the chat retrieval path.
type VectorStore interface {
	// Search returns up to topK documents most similar to the query embedding.
	Search(ctx context.Context, q []float32, topK int) ([]Document, error)
}

type vectorStore struct {
	log       *logger.Logger
	pc        Client
	indexName string
	indexHost string
	namespace string
}

func NewVectorStore(log *logger.Logger, pc Client) (VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if pc == nil {
		return nil, fmt.Errorf("pinecone client required")
	}

	indexName := strings.TrimSpace(os.Getenv("PINECONE_INDEX_NAME"))
	if indexName == "" {
		indexName = "remodel-ai-mvp"
	}

	host := strings.TrimSpace(os.Getenv("PINECONE_INDEX_HOST"))

	// If host missing, bootstrap via describe_index (fine for local/dev; avoid in prod).
	if host == "" {
		desc, err := pc.DescribeIndex(context.Background(), indexName)
		if err != nil {
			return nil, fmt.Errorf("pinecone describe_index failed: %w", err)
		}
		host = strings.TrimSpace(desc.Host)
		if host == "" {
			return nil, fmt.Errorf("pinecone describe_index returned empty host")
		}
		log.Warn("PINECONE_INDEX_HOST not set; resolved via describe_index (avoid this in production)",
			"index_name", indexName,
			"index_host", host,
		)
	}

	return &vectorStore{
		log:       log.With("service", "PineconeVectorStore"),
		pc:        pc,
		indexName: indexName,
		indexHost: host,
		namespace: strings.TrimSpace(os.Getenv("PINECONE_NAMESPACE")),
	}, nil
}

func (s *vectorStore) Search(ctx context.Context, q []float32, topK int) ([]Document, error) {
	if s == nil || s.pc == nil {
		return nil, fmt.Errorf("vector store unavailable")
	}
	if topK <= 0 {
		topK = 3
	}
	resp, err := s.pc.Query(ctx, s.indexHost, QueryRequest{
		Namespace:       s.namespace,
		Vector:          q,
		TopK:            topK,
		IncludeValues:   false,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]Document, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		doc := Document{ID: m.ID, Score: m.Score, Metadata: m.Metadata}
		if m.Metadata != nil {
			if txt, ok := m.Metadata["text"].(string); ok {
				doc.Text = strings.TrimSpace(txt)
			}
		}
		if doc.Text == "" {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}
