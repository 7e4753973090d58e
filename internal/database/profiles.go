package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tutorgrid/memory-api/internal/models"
)

// ProfileRepository handles user profile database operations
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

type profileRow struct {
	id             int64
	userID         string
	preferences    []byte
	statistics     []byte
	knowledgeGraph []byte
	interests      []byte
	weakPoints     []byte
	createdAt      time.Time
	updatedAt      time.Time
}

func (r profileRow) toModel() (*models.UserProfile, error) {
	profile := &models.UserProfile{
		ID:        r.id,
		UserID:    r.userID,
		CreatedAt: r.createdAt,
		UpdatedAt: r.updatedAt,
	}
	if err := json.Unmarshal(r.preferences, &profile.Preferences); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	if err := json.Unmarshal(r.statistics, &profile.Statistics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal statistics: %w", err)
	}
	if err := json.Unmarshal(r.knowledgeGraph, &profile.KnowledgeGraph); err != nil {
		return nil, fmt.Errorf("failed to unmarshal knowledge graph: %w", err)
	}
	if err := json.Unmarshal(r.interests, &profile.Interests); err != nil {
		return nil, fmt.Errorf("failed to unmarshal interests: %w", err)
	}
	if err := json.Unmarshal(r.weakPoints, &profile.WeakPoints); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weak points: %w", err)
	}
	if profile.KnowledgeGraph == nil {
		profile.KnowledgeGraph = make(models.KnowledgeGraph)
	}
	if profile.Interests == nil {
		profile.Interests = []string{}
	}
	if profile.WeakPoints == nil {
		profile.WeakPoints = []models.WeakPoint{}
	}
	return profile, nil
}

const profileColumns = `id, user_id, preferences, statistics, knowledge_graph, interests, weak_points, created_at, updated_at`

func scanProfile(scan func(...any) error) (*models.UserProfile, error) {
	var row profileRow
	err := scan(
		&row.id,
		&row.userID,
		&row.preferences,
		&row.statistics,
		&row.knowledgeGraph,
		&row.interests,
		&row.weakPoints,
		&row.createdAt,
		&row.updatedAt,
	)
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

// GetOrCreate retrieves the profile for a user, creating it with documented
// defaults on first access. Profiles are never an error to ask for.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := r.getByUserID(ctx, r.db.DB, userID, false)
	if err == nil {
		return profile, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if err := r.insertDefault(ctx, r.db.DB, userID); err != nil {
		return nil, err
	}

	profile, err = r.getByUserID(ctx, r.db.DB, userID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile after create: %w", err)
	}
	return profile, nil
}

// MutateProfile loads the profile under a row lock, applies mutate, and
// persists the result, all in one transaction. The row lock serializes
// non-commutative updates (the running average) per user_id.
func (r *ProfileRepository) MutateProfile(ctx context.Context, userID string, mutate func(*models.UserProfile) error) (*models.UserProfile, error) {
	var result *models.UserProfile

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		profile, err := r.lockForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		if err := mutate(profile); err != nil {
			return err
		}

		if err := r.update(ctx, tx, profile); err != nil {
			return err
		}

		result = profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// lockForUpdate fetches the profile row with SELECT ... FOR UPDATE, creating
// it first when the user has no profile yet.
func (r *ProfileRepository) lockForUpdate(ctx context.Context, tx *sql.Tx, userID string) (*models.UserProfile, error) {
	profile, err := r.getByUserID(ctx, tx, userID, true)
	if err == nil {
		return profile, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to lock profile: %w", err)
	}

	if err := r.insertDefault(ctx, tx, userID); err != nil {
		return nil, err
	}

	profile, err = r.getByUserID(ctx, tx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to lock profile after create: %w", err)
	}
	return profile, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *ProfileRepository) getByUserID(ctx context.Context, q querier, userID string, forUpdate bool) (*models.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanProfile(q.QueryRowContext(ctx, query, userID).Scan)
}

// insertDefault creates the profile row with defaults. ON CONFLICT DO NOTHING
// keeps two lazy creators from racing into a duplicate-key failure.
func (r *ProfileRepository) insertDefault(ctx context.Context, q querier, userID string) error {
	profile := models.NewUserProfile(userID)

	preferences, statistics, knowledgeGraph, interests, weakPoints, err := marshalProfileFields(profile)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO user_profiles (user_id, preferences, statistics, knowledge_graph, interests, weak_points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := q.ExecContext(ctx, query, userID, preferences, statistics, knowledgeGraph, interests, weakPoints); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) update(ctx context.Context, q querier, profile *models.UserProfile) error {
	preferences, statistics, knowledgeGraph, interests, weakPoints, err := marshalProfileFields(profile)
	if err != nil {
		return err
	}

	query := `
		UPDATE user_profiles
		SET preferences = $2, statistics = $3, knowledge_graph = $4, interests = $5, weak_points = $6, updated_at = NOW()
		WHERE user_id = $1
	`
	if _, err := q.ExecContext(ctx, query, profile.UserID, preferences, statistics, knowledgeGraph, interests, weakPoints); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	profile.UpdatedAt = time.Now()
	return nil
}

func marshalProfileFields(profile *models.UserProfile) (preferences, statistics, knowledgeGraph, interests, weakPoints []byte, err error) {
	if preferences, err = json.Marshal(profile.Preferences); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if statistics, err = json.Marshal(profile.Statistics); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal statistics: %w", err)
	}
	if knowledgeGraph, err = json.Marshal(profile.KnowledgeGraph); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal knowledge graph: %w", err)
	}
	if interests, err = json.Marshal(profile.Interests); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal interests: %w", err)
	}
	if weakPoints, err = json.Marshal(profile.WeakPoints); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal weak points: %w", err)
	}
	return preferences, statistics, knowledgeGraph, interests, weakPoints, nil
}
