package database

import (
	"context"

	"github.com/tutorgrid/memory-api/internal/models"
)

// MemoryStore defines the persistence operations the consolidation and
// retrieval engine depends on. The interface enables testing the engine with
// an in-memory implementation.
type MemoryStore interface {
	GetOrCreateProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	MutateProfile(ctx context.Context, userID string, mutate func(*models.UserProfile) error) (*models.UserProfile, error)
	GetSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error)
	ListSummaries(ctx context.Context, userID string, days, limit int) ([]*models.SessionSummary, error)
	SaveConsolidation(ctx context.Context, summary *models.SessionSummary, mutate func(*models.UserProfile) error) (*models.UserProfile, error)
}

// EmbeddingStore defines the persistence operations the embedding worker depends on
type EmbeddingStore interface {
	GetSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error)
	ListSummaries(ctx context.Context, userID string, days, limit int) ([]*models.SessionSummary, error)
	SaveEmbedding(ctx context.Context, embedding *models.MemoryEmbedding) error
	ListEmbeddings(ctx context.Context, userID string, days int) ([]*models.MemoryEmbedding, error)
}

// Ensure the concrete store implements the interfaces
var (
	_ MemoryStore    = (*Store)(nil)
	_ EmbeddingStore = (*Store)(nil)
)
