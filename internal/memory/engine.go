package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tutorgrid/memory-api/internal/database"
	"github.com/tutorgrid/memory-api/internal/models"
	"github.com/tutorgrid/memory-api/internal/queue"
	"github.com/tutorgrid/memory-api/internal/services/ai"
)

// ErrProviderUnavailable is returned for operations that need the model
// when no provider is configured.
var ErrProviderUnavailable = errors.New("model provider not configured")

// Default engine tunables
const (
	DefaultTriggerRounds   = 10
	DefaultTriggerTokens   = 4000
	DefaultLookbackDays    = 7
	DefaultMaxSummaries    = 20
	MasteredThreshold      = 0.7
	InferenceMinConfidence = 0.5
)

// Config holds the engine tunables. Zero values fall back to the defaults.
type Config struct {
	TriggerRounds int
	TriggerTokens int
	KeepRecent    int
	LookbackDays  int
	MaxSummaries  int
}

func (c Config) withDefaults() Config {
	if c.TriggerRounds <= 0 {
		c.TriggerRounds = DefaultTriggerRounds
	}
	if c.TriggerTokens <= 0 {
		c.TriggerTokens = DefaultTriggerTokens
	}
	if c.KeepRecent <= 0 {
		c.KeepRecent = DefaultKeepRecent
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = DefaultLookbackDays
	}
	if c.MaxSummaries <= 0 {
		c.MaxSummaries = DefaultMaxSummaries
	}
	return c
}

// ProfileCache is an optional read-through cache for user profiles
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, bool)
	Set(ctx context.Context, userID string, profile *models.UserProfile)
	Invalidate(ctx context.Context, userID string)
}

// Engine coordinates consolidation and retrieval over the store, the
// language-model collaborator, and the embedding job queue.
type Engine struct {
	store     database.MemoryStore
	provider  ai.Provider
	extractor *Extractor
	jobQueue  queue.JobQueue // nil disables embedding jobs
	cache     ProfileCache   // nil disables caching
	cfg       Config
	logger    *zap.Logger
}

// NewEngine creates an engine. jobQueue and cache may be nil.
func NewEngine(store database.MemoryStore, provider ai.Provider, jobQueue queue.JobQueue, cache ProfileCache, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Engine{
		store:     store,
		provider:  provider,
		extractor: NewExtractor(provider, cfg.KeepRecent, logger),
		jobQueue:  jobQueue,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
	}
}

// ConsolidateRequest is one consolidation attempt for a session window
type ConsolidateRequest struct {
	UserID    string
	SessionID string
	Turns     []models.Message
	Force     bool
}

// ConsolidateResult reports what the engine did with a consolidation request
type ConsolidateResult struct {
	Triggered      bool                   `json:"triggered"`
	Fallback       bool                   `json:"fallback"`
	FallbackReason string                 `json:"fallback_reason,omitempty"`
	Summary        *models.SessionSummary `json:"summary,omitempty"`
	Profile        *models.UserProfile    `json:"profile,omitempty"`
}

// Consolidate runs the full pipeline: trigger check, extraction, profile
// merge, and persistence. The summary upsert and the profile mutation commit
// in a single transaction, so a crash never leaves one without the other.
func (e *Engine) Consolidate(ctx context.Context, req ConsolidateRequest) (*ConsolidateResult, error) {
	if !ShouldConsolidate(req.Turns, req.Force, e.cfg.TriggerRounds, e.cfg.TriggerTokens) {
		e.logger.Debug("consolidation_skipped",
			zap.String("user_id", req.UserID),
			zap.String("session_id", req.SessionID),
			zap.Int("turns", len(req.Turns)),
		)
		return &ConsolidateResult{Triggered: false}, nil
	}

	extraction := e.extractor.Extract(ctx, req.SessionID, req.UserID, req.Turns)
	summary := extraction.Summary

	now := time.Now().UTC()
	profile, err := e.store.SaveConsolidation(ctx, summary, func(p *models.UserProfile) error {
		return ConsolidateSummary(p, summary, now)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save consolidation: %w", err)
	}

	if e.cache != nil {
		e.cache.Invalidate(ctx, req.UserID)
	}

	e.enqueueEmbedding(ctx, req.UserID, req.SessionID)

	e.logger.Info("consolidation_complete",
		zap.String("user_id", req.UserID),
		zap.String("session_id", req.SessionID),
		zap.Bool("fallback", extraction.Fallback),
		zap.Int("message_count", summary.MessageCount),
		zap.Int("weak_points", len(summary.WeakPoints)),
	)

	return &ConsolidateResult{
		Triggered:      true,
		Fallback:       extraction.Fallback,
		FallbackReason: extraction.FallbackReason,
		Summary:        summary,
		Profile:        profile,
	}, nil
}

// enqueueEmbedding schedules the summary for embedding. Failures are logged
// and swallowed: the consolidation already committed and embeddings can be
// recovered with a re-embed job.
func (e *Engine) enqueueEmbedding(ctx context.Context, userID, sessionID string) {
	if e.jobQueue == nil {
		return
	}
	job := queue.NewJob(queue.JobTypeEmbedding, userID, sessionID)
	if err := e.jobQueue.Enqueue(ctx, job); err != nil {
		e.logger.Warn("embedding_enqueue_failed",
			zap.String("user_id", userID),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

// GetProfile returns the user's profile, creating the default one on first
// access. Reads go through the cache when one is configured.
func (e *Engine) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if e.cache != nil {
		if profile, ok := e.cache.Get(ctx, userID); ok {
			return profile, nil
		}
	}

	profile, err := e.store.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.Set(ctx, userID, profile)
	}
	return profile, nil
}

// UpdatePreferences applies an explicit preference delta to the profile.
// Explicit updates always win over inferred ones.
func (e *Engine) UpdatePreferences(ctx context.Context, userID string, delta models.Preferences) (*models.UserProfile, error) {
	profile, err := e.store.MutateProfile(ctx, userID, func(p *models.UserProfile) error {
		p.Preferences.Merge(delta)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.Invalidate(ctx, userID)
	}
	return profile, nil
}

// InferenceResult reports an inference attempt and whether it was applied
type InferenceResult struct {
	Preferences models.Preferences  `json:"preferences"`
	Confidence  float64             `json:"confidence"`
	Applied     bool                `json:"applied"`
	Profile     *models.UserProfile `json:"profile,omitempty"`
}

// InferPreferences asks the model to guess preferences from a short
// conversation and applies the guess only above the confidence floor.
func (e *Engine) InferPreferences(ctx context.Context, userID string, turns []models.Message) (*InferenceResult, error) {
	if e.provider == nil {
		return nil, ErrProviderUnavailable
	}

	transcript := RenderInferenceTranscript(turns)
	inference, err := e.provider.InferPreferences(ai.WithCallMetadata(ctx, userID, "", ""), transcript)
	if err != nil {
		return nil, fmt.Errorf("failed to infer preferences: %w", err)
	}

	result := &InferenceResult{
		Preferences: inference.Preferences,
		Confidence:  inference.Confidence,
	}

	if inference.Confidence <= InferenceMinConfidence || inference.Preferences.IsEmpty() {
		e.logger.Debug("preference_inference_discarded",
			zap.String("user_id", userID),
			zap.Float64("confidence", inference.Confidence),
		)
		return result, nil
	}

	profile, err := e.store.MutateProfile(ctx, userID, func(p *models.UserProfile) error {
		p.Preferences.Merge(inference.Preferences)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.Invalidate(ctx, userID)
	}

	result.Applied = true
	result.Profile = profile
	return result, nil
}

// ContextResult is the assembled retrieval context for a query
// ContextQuery selects what the retrieval assembler looks at. Days of zero
// falls back to the configured lookback window; Subject and Topic, when set,
// restrict the summaries considered.
type ContextQuery struct {
	UserID  string
	Query   string
	Days    int
	Subject string
	Topic   string
}

type ContextResult struct {
	SuggestedContext    string              `json:"suggested_context"`
	RelevantMemories    []any               `json:"relevant_memories"`
	FollowUpSuggestions []string            `json:"follow_up_suggestions"`
	WeakPoints          []models.WeakPoint  `json:"weak_points"`
	Profile             *models.UserProfile `json:"profile"`
	Fallback            bool                `json:"fallback"`
	SummaryCount        int                 `json:"summary_count"`
}

// GetContext assembles retrieval context for a query. With no recent
// summaries the model is never called and the profile-only context is
// returned directly. A model failure degrades to the same profile-only
// context instead of surfacing an error.
func (e *Engine) GetContext(ctx context.Context, q ContextQuery) (*ContextResult, error) {
	profile, err := e.GetProfile(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	days := q.Days
	if days <= 0 {
		days = e.cfg.LookbackDays
	}

	summaries, err := e.store.ListSummaries(ctx, q.UserID, days, e.cfg.MaxSummaries)
	if err != nil {
		return nil, err
	}
	summaries = filterSummaries(summaries, q.Subject, q.Topic)

	result := &ContextResult{
		RelevantMemories:    []any{},
		FollowUpSuggestions: []string{},
		WeakPoints:          profile.TopWeakPoints(MaxBasicWeakPoints),
		Profile:             profile,
		SummaryCount:        len(summaries),
	}

	if len(summaries) == 0 || e.provider == nil {
		result.SuggestedContext = BasicContext(profile)
		result.Fallback = true
		return result, nil
	}

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize profile: %w", err)
	}

	payload, err := e.provider.SynthesizeContext(ai.WithCallMetadata(ctx, q.UserID, "", ""), ai.ContextRequest{
		Query:       q.Query,
		ProfileJSON: string(profileJSON),
		Memories:    RenderSummaries(summaries),
		Days:        days,
	})
	if err != nil {
		e.logger.Warn("context_synthesis_degraded",
			zap.String("user_id", q.UserID),
			zap.Error(err),
		)
		result.SuggestedContext = BasicContext(profile)
		result.Fallback = true
		return result, nil
	}

	result.SuggestedContext = payload.SuggestedContext
	if payload.RelevantMemories != nil {
		result.RelevantMemories = payload.RelevantMemories
	}
	if payload.FollowUpSuggestions != nil {
		result.FollowUpSuggestions = payload.FollowUpSuggestions
	}
	return result, nil
}

// GetSummary returns the stored summary for a session
func (e *Engine) GetSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	return e.store.GetSummary(ctx, sessionID)
}

// ListSessions returns the user's recent session summaries, newest first
func (e *Engine) ListSessions(ctx context.Context, userID string, days, limit int) ([]*models.SessionSummary, error) {
	if days <= 0 {
		days = e.cfg.LookbackDays
	}
	if limit <= 0 {
		limit = e.cfg.MaxSummaries
	}
	return e.store.ListSummaries(ctx, userID, days, limit)
}

// LearningStats is a digest of the profile's knowledge graph and statistics
type LearningStats struct {
	Statistics       models.Statistics  `json:"statistics"`
	ConceptCount     int                `json:"concept_count"`
	MasteredConcepts int                `json:"mastered_concepts"`
	WeakPointCount   int                `json:"weak_point_count"`
	TopWeakPoints    []models.WeakPoint `json:"top_weak_points"`
}

// GetStats computes learning statistics from the profile
func (e *Engine) GetStats(ctx context.Context, userID string) (*LearningStats, error) {
	profile, err := e.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	mastered := 0
	for _, state := range profile.KnowledgeGraph {
		if state.MasteryLevel > MasteredThreshold {
			mastered++
		}
	}

	return &LearningStats{
		Statistics:       profile.Statistics,
		ConceptCount:     len(profile.KnowledgeGraph),
		MasteredConcepts: mastered,
		WeakPointCount:   len(profile.WeakPoints),
		TopWeakPoints:    profile.TopWeakPoints(MaxBasicWeakPoints),
	}, nil
}
