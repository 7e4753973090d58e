package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tutorgrid/memory-api/internal/models"
)

// ErrSummaryNotFound is returned when no summary exists for a session id
var ErrSummaryNotFound = errors.New("session summary not found")

// SummaryRepository handles session summary database operations
type SummaryRepository struct {
	db *DB
}

// NewSummaryRepository creates a new summary repository
func NewSummaryRepository(db *DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

const summaryColumns = `id, session_id, user_id, core_topic, key_points, resolved_questions, unresolved_questions,
	user_preferences, weak_points, subject, topic, difficulty, recent_messages, message_count, token_count,
	summary_quality, created_at, updated_at`

// GetBySessionID retrieves a summary by session id
func (r *SummaryRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM session_summaries WHERE session_id = $1`
	summary, err := scanSummary(r.db.QueryRowContext(ctx, query, sessionID).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrSummaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	return summary, nil
}

// ListByUser retrieves summaries created within the last `days` days for a
// user, newest first, bounded to limit rows.
func (r *SummaryRepository) ListByUser(ctx context.Context, userID string, days, limit int) ([]*models.SessionSummary, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	query := `
		SELECT ` + summaryColumns + `
		FROM session_summaries
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []*models.SessionSummary
	for rows.Next() {
		summary, err := scanSummary(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate summaries: %w", err)
	}
	return summaries, nil
}

// upsert creates the summary row or, when one exists for the session, updates
// the mutable fields in place, preserving identity and creation time.
// The insert-or-update on the session_id unique key serializes concurrent
// triggers targeting the same session.
func (r *SummaryRepository) upsert(ctx context.Context, q querierRow, summary *models.SessionSummary) error {
	keyPoints, err := json.Marshal(summary.KeyPoints)
	if err != nil {
		return fmt.Errorf("failed to marshal key points: %w", err)
	}
	resolved, err := json.Marshal(summary.ResolvedQuestions)
	if err != nil {
		return fmt.Errorf("failed to marshal resolved questions: %w", err)
	}
	unresolved, err := json.Marshal(summary.UnresolvedQuestions)
	if err != nil {
		return fmt.Errorf("failed to marshal unresolved questions: %w", err)
	}
	preferences, err := json.Marshal(summary.UserPreferences)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	weakPoints, err := json.Marshal(summary.WeakPoints)
	if err != nil {
		return fmt.Errorf("failed to marshal weak points: %w", err)
	}
	recentMessages, err := json.Marshal(summary.RecentMessages)
	if err != nil {
		return fmt.Errorf("failed to marshal recent messages: %w", err)
	}
	quality, err := json.Marshal(summary.SummaryQuality)
	if err != nil {
		return fmt.Errorf("failed to marshal summary quality: %w", err)
	}

	query := `
		INSERT INTO session_summaries (
			id, session_id, user_id, core_topic, key_points, resolved_questions, unresolved_questions,
			user_preferences, weak_points, subject, topic, difficulty, recent_messages,
			message_count, token_count, summary_quality, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), $13, $14, $15, $16, NOW(), NOW())
		ON CONFLICT (session_id) DO UPDATE SET
			core_topic = EXCLUDED.core_topic,
			key_points = EXCLUDED.key_points,
			resolved_questions = EXCLUDED.resolved_questions,
			unresolved_questions = EXCLUDED.unresolved_questions,
			weak_points = EXCLUDED.weak_points,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err = q.QueryRowContext(ctx, query,
		uuid.New(),
		summary.SessionID,
		summary.UserID,
		summary.CoreTopic,
		keyPoints,
		resolved,
		unresolved,
		preferences,
		weakPoints,
		summary.Subject,
		summary.Topic,
		string(summary.Difficulty),
		recentMessages,
		summary.MessageCount,
		summary.TokenCount,
		quality,
	).Scan(&summary.ID, &summary.CreatedAt, &summary.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}
	return nil
}

type querierRow interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanSummary(scan func(...any) error) (*models.SessionSummary, error) {
	summary := &models.SessionSummary{}
	var keyPoints, resolved, unresolved, preferences, weakPoints, recentMessages, quality []byte
	var subject, topic, difficulty sql.NullString

	err := scan(
		&summary.ID,
		&summary.SessionID,
		&summary.UserID,
		&summary.CoreTopic,
		&keyPoints,
		&resolved,
		&unresolved,
		&preferences,
		&weakPoints,
		&subject,
		&topic,
		&difficulty,
		&recentMessages,
		&summary.MessageCount,
		&summary.TokenCount,
		&quality,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(keyPoints, &summary.KeyPoints); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key points: %w", err)
	}
	if err := json.Unmarshal(resolved, &summary.ResolvedQuestions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resolved questions: %w", err)
	}
	if err := json.Unmarshal(unresolved, &summary.UnresolvedQuestions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal unresolved questions: %w", err)
	}
	if err := json.Unmarshal(preferences, &summary.UserPreferences); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	if err := json.Unmarshal(weakPoints, &summary.WeakPoints); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weak points: %w", err)
	}
	if err := json.Unmarshal(recentMessages, &summary.RecentMessages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recent messages: %w", err)
	}
	if err := json.Unmarshal(quality, &summary.SummaryQuality); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary quality: %w", err)
	}

	summary.Subject = subject.String
	summary.Topic = topic.String
	summary.Difficulty = models.Difficulty(difficulty.String)
	return summary, nil
}
