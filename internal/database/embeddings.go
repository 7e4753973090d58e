package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tutorgrid/memory-api/internal/models"
)

// EmbeddingRepository handles memory embedding database operations.
// Rows are append-only.
type EmbeddingRepository struct {
	db *DB
}

// NewEmbeddingRepository creates a new embedding repository
func NewEmbeddingRepository(db *DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// Create stores a new embedding row
func (r *EmbeddingRepository) Create(ctx context.Context, embedding *models.MemoryEmbedding) error {
	if embedding.ID == uuid.Nil {
		embedding.ID = uuid.New()
	}
	if embedding.Metadata == nil {
		embedding.Metadata = map[string]any{}
	}

	vector, err := json.Marshal(embedding.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding vector: %w", err)
	}
	metadata, err := json.Marshal(embedding.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding metadata: %w", err)
	}

	query := `
		INSERT INTO memory_embeddings (id, memory_id, user_id, session_id, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		embedding.ID,
		embedding.MemoryID,
		embedding.UserID,
		embedding.SessionID,
		vector,
		metadata,
	).Scan(&embedding.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create embedding: %w", err)
	}
	return nil
}

// ListByUser retrieves embeddings created within the last `days` days for a
// user, newest first.
func (r *EmbeddingRepository) ListByUser(ctx context.Context, userID string, days int) ([]*models.MemoryEmbedding, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	query := `
		SELECT id, memory_id, user_id, session_id, embedding, metadata, created_at
		FROM memory_embeddings
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var embeddings []*models.MemoryEmbedding
	for rows.Next() {
		e := &models.MemoryEmbedding{}
		var vector, metadata []byte
		err := rows.Scan(&e.ID, &e.MemoryID, &e.UserID, &e.SessionID, &vector, &metadata, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		if err := json.Unmarshal(vector, &e.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding vector: %w", err)
		}
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding metadata: %w", err)
		}
		embeddings = append(embeddings, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate embeddings: %w", err)
	}
	return embeddings, nil
}
