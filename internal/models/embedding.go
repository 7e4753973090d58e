package models

import (
	"time"

	"github.com/google/uuid"
)

// MemoryEmbedding holds the vector computed for one session summary.
// Rows are append-only and queried by recency window; they are an extension
// point for semantic retrieval, not part of the textual retrieval path.
type MemoryEmbedding struct {
	ID        uuid.UUID      `json:"id"`
	MemoryID  uuid.UUID      `json:"memory_id"` // summary this vector was computed from
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id"`
	Embedding []float64      `json:"embedding"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}
