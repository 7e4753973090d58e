package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tutorgrid/memory-api/internal/models"
	"github.com/tutorgrid/memory-api/internal/services/ai"
	"go.uber.org/zap"
)

const (
	// TranscriptTailLimit bounds the transcript sent to the model. Truncation
	// is tail-biased because recent turns matter most.
	TranscriptTailLimit = 5000

	// DefaultKeepRecent is how many raw turns are kept on the summary
	DefaultKeepRecent = 5

	// FallbackCoreTopic is the core topic of the deterministic fallback summary
	FallbackCoreTopic = "learning conversation"
)

// Extraction is the outcome of the summary extractor. Fallback marks the
// degraded branch: the extractor substituted the deterministic default because
// the model call or its JSON failed. Extraction never carries an error; the
// extractor always produces a well-formed summary.
type Extraction struct {
	Summary        *models.SessionSummary
	Fallback       bool
	FallbackReason string
}

// Extractor turns a bounded conversation window into a structured summary via
// the language-model collaborator, degrading to a deterministic default.
type Extractor struct {
	provider   ai.Provider
	keepRecent int
	logger     *zap.Logger
}

// NewExtractor creates an extractor. keepRecent <= 0 falls back to the default.
func NewExtractor(provider ai.Provider, keepRecent int, logger *zap.Logger) *Extractor {
	if keepRecent <= 0 {
		keepRecent = DefaultKeepRecent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		provider:   provider,
		keepRecent: keepRecent,
		logger:     logger,
	}
}

// Extract summarizes the conversation. On any provider or parse failure it
// returns the fallback summary instead of an error.
func (x *Extractor) Extract(ctx context.Context, sessionID, userID string, turns []models.Message) Extraction {
	transcript := RenderTranscript(turns)

	if x.provider == nil {
		return Extraction{
			Summary:        x.fallbackSummary(sessionID, userID, turns),
			Fallback:       true,
			FallbackReason: ErrProviderUnavailable.Error(),
		}
	}

	callCtx := ai.WithCallMetadata(ctx, userID, sessionID, ai.ExtractRequestID(ctx))
	payload, err := x.provider.Summarize(callCtx, transcript)
	if err != nil {
		x.logger.Warn("summary_extraction_degraded",
			zap.String("session_id", sessionID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return Extraction{
			Summary:        x.fallbackSummary(sessionID, userID, turns),
			Fallback:       true,
			FallbackReason: err.Error(),
		}
	}

	summary := x.summaryFromPayload(sessionID, userID, payload, turns)
	summary.SummaryQuality = map[string]any{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"generated_by": "llm",
		"model_topic":  payload.CoreTopic,
	}
	return Extraction{Summary: summary}
}

func (x *Extractor) summaryFromPayload(sessionID, userID string, payload *ai.SummaryPayload, turns []models.Message) *models.SessionSummary {
	weakPoints := make([]models.WeakPoint, 0, len(payload.WeakPoints))
	for _, wp := range payload.WeakPoints {
		if strings.TrimSpace(wp.Concept) == "" {
			continue
		}
		weakPoints = append(weakPoints, models.WeakPoint{
			Concept:        wp.Concept,
			ConfusionScore: clampScore(wp.ConfusionScore),
		})
	}

	coreTopic := payload.CoreTopic
	if coreTopic == "" {
		coreTopic = FallbackCoreTopic
	}

	var difficulty models.Difficulty
	switch models.Difficulty(payload.Difficulty) {
	case models.DifficultyBeginner, models.DifficultyIntermediate, models.DifficultyAdvanced:
		difficulty = models.Difficulty(payload.Difficulty)
	}

	return &models.SessionSummary{
		SessionID:           sessionID,
		UserID:              userID,
		CoreTopic:           coreTopic,
		KeyPoints:           orEmpty(payload.KeyPoints),
		ResolvedQuestions:   orEmpty(payload.ResolvedQuestions),
		UnresolvedQuestions: orEmpty(payload.UnresolvedQuestions),
		UserPreferences:     payload.UserPreferences,
		WeakPoints:          weakPoints,
		Subject:             payload.Subject,
		Topic:               payload.Topic,
		Difficulty:          difficulty,
		RecentMessages:      tail(turns, x.keepRecent),
		MessageCount:        len(turns),
		TokenCount:          EstimateTokens(turns),
	}
}

// fallbackSummary is the deterministic substitute when the model is
// unreachable or returns garbage.
func (x *Extractor) fallbackSummary(sessionID, userID string, turns []models.Message) *models.SessionSummary {
	style := models.LearningStyleTextual
	difficulty := models.DifficultyIntermediate
	includeCode := true
	includeMath := true

	return &models.SessionSummary{
		SessionID: sessionID,
		UserID:    userID,
		CoreTopic: FallbackCoreTopic,
		KeyPoints: []string{
			"Discussed related concepts",
			"Worked through some questions and answers",
		},
		ResolvedQuestions:   []string{},
		UnresolvedQuestions: []string{},
		UserPreferences: models.Preferences{
			LearningStyle:        &style,
			DifficultyPreference: &difficulty,
			IncludeCode:          &includeCode,
			IncludeMath:          &includeMath,
		},
		WeakPoints:     []models.WeakPoint{},
		RecentMessages: tail(turns, x.keepRecent),
		MessageCount:   len(turns),
		TokenCount:     EstimateTokens(turns),
		SummaryQuality: map[string]any{
			"generated_at": time.Now().UTC().Format(time.RFC3339),
			"generated_by": "fallback",
		},
	}
}

// RenderTranscript renders turns as numbered "[ROLE]" lines and truncates to
// the last TranscriptTailLimit characters.
func RenderTranscript(turns []models.Message) string {
	lines := make([]string, 0, len(turns))
	for i, m := range turns {
		lines = append(lines, fmt.Sprintf("%d. [%s]: %s", i+1, strings.ToUpper(m.Role), m.Content))
	}
	transcript := strings.Join(lines, "\n")

	runes := []rune(transcript)
	if len(runes) > TranscriptTailLimit {
		transcript = string(runes[len(runes)-TranscriptTailLimit:])
	}
	return transcript
}

// RenderInferenceTranscript renders turns for the preference inference call,
// "[ROLE]" lines without numbering, bounded to the last few thousand characters.
func RenderInferenceTranscript(turns []models.Message) string {
	lines := make([]string, 0, len(turns))
	for _, m := range turns {
		if m.Content == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s]: %s", strings.ToUpper(m.Role), m.Content))
	}
	transcript := strings.Join(lines, "\n\n")

	const limit = 3000
	runes := []rune(transcript)
	if len(runes) > limit {
		transcript = string(runes[len(runes)-limit:])
	}
	return transcript
}

func tail(turns []models.Message, n int) []models.Message {
	if len(turns) <= n {
		out := make([]models.Message, len(turns))
		copy(out, turns)
		return out
	}
	out := make([]models.Message, n)
	copy(out, turns[len(turns)-n:])
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
