package database

import (
	"context"
	"database/sql"

	"github.com/tutorgrid/memory-api/internal/models"
)

// Store bundles the repositories and implements the consolidation unit of
// work. The summary upsert and the profile consolidation for one event commit
// as a single transaction: if either fails, neither is persisted.
type Store struct {
	db         *DB
	Profiles   *ProfileRepository
	Summaries  *SummaryRepository
	Embeddings *EmbeddingRepository
}

// NewStore creates a store over the given connection
func NewStore(db *DB) *Store {
	return &Store{
		db:         db,
		Profiles:   NewProfileRepository(db),
		Summaries:  NewSummaryRepository(db),
		Embeddings: NewEmbeddingRepository(db),
	}
}

// GetOrCreateProfile retrieves the profile, lazily creating it with defaults
func (s *Store) GetOrCreateProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	return s.Profiles.GetOrCreate(ctx, userID)
}

// MutateProfile applies mutate to the profile under a per-user row lock
func (s *Store) MutateProfile(ctx context.Context, userID string, mutate func(*models.UserProfile) error) (*models.UserProfile, error) {
	return s.Profiles.MutateProfile(ctx, userID, mutate)
}

// GetSummary retrieves a summary by session id
func (s *Store) GetSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	return s.Summaries.GetBySessionID(ctx, sessionID)
}

// ListSummaries retrieves recent summaries for a user, newest first
func (s *Store) ListSummaries(ctx context.Context, userID string, days, limit int) ([]*models.SessionSummary, error) {
	return s.Summaries.ListByUser(ctx, userID, days, limit)
}

// SaveConsolidation upserts the summary and applies the profile mutation in
// one atomic transaction. The profile row is locked FOR UPDATE, so the
// non-commutative statistics update is serialized per user.
func (s *Store) SaveConsolidation(ctx context.Context, summary *models.SessionSummary, mutate func(*models.UserProfile) error) (*models.UserProfile, error) {
	var profile *models.UserProfile

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.Summaries.upsert(ctx, tx, summary); err != nil {
			return err
		}

		locked, err := s.Profiles.lockForUpdate(ctx, tx, summary.UserID)
		if err != nil {
			return err
		}
		if err := mutate(locked); err != nil {
			return err
		}
		if err := s.Profiles.update(ctx, tx, locked); err != nil {
			return err
		}

		profile = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// SaveEmbedding stores an embedding row
func (s *Store) SaveEmbedding(ctx context.Context, embedding *models.MemoryEmbedding) error {
	return s.Embeddings.Create(ctx, embedding)
}

// ListEmbeddings retrieves recent embeddings for a user
func (s *Store) ListEmbeddings(ctx context.Context, userID string, days int) ([]*models.MemoryEmbedding, error) {
	return s.Embeddings.ListByUser(ctx, userID, days)
}
