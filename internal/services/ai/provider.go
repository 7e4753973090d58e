package ai

import (
	"context"

	"github.com/tutorgrid/memory-api/internal/models"
)

// Provider is the interface for language-model collaborators. Both call sites
// request a single JSON object; any other shape is an error the caller is
// expected to degrade around, never to surface to the end user.
type Provider interface {
	// Summarize turns a rendered transcript into a structured session summary
	Summarize(ctx context.Context, transcript string) (*SummaryPayload, error)

	// SynthesizeContext produces a context blob for a new query from the
	// serialized profile and rendered memories
	SynthesizeContext(ctx context.Context, req ContextRequest) (*ContextPayload, error)

	// InferPreferences extracts a low-confidence preference guess from a
	// short transcript
	InferPreferences(ctx context.Context, transcript string) (*PreferenceInference, error)
}

// EmbeddingProvider is the interface for embedding collaborators
type EmbeddingProvider interface {
	// Embed converts text into a fixed-length float vector
	Embed(ctx context.Context, text string) ([]float64, error)
}

// SummaryPayload is the JSON document expected from the summarization call
type SummaryPayload struct {
	CoreTopic           string             `json:"core_topic"`
	KeyPoints           []string           `json:"key_points"`
	ResolvedQuestions   []string           `json:"resolved_questions"`
	UnresolvedQuestions []string           `json:"unresolved_questions"`
	UserPreferences     models.Preferences `json:"user_preferences"`
	WeakPoints          []WeakPointPayload `json:"weak_points"`
	Subject             string             `json:"subject"`
	Topic               string             `json:"topic"`
	Difficulty          string             `json:"difficulty"`
}

// WeakPointPayload is one weak point as extracted by the model
type WeakPointPayload struct {
	Concept        string `json:"concept"`
	ConfusionScore int    `json:"confusion_score"`
}

// ContextRequest carries the inputs of the retrieval call
type ContextRequest struct {
	Query       string
	ProfileJSON string
	Memories    string
	Days        int
}

// ContextPayload is the JSON document expected from the retrieval call
type ContextPayload struct {
	SuggestedContext    string   `json:"suggested_context"`
	RelevantMemories    []any    `json:"relevant_memories"`
	FollowUpSuggestions []string `json:"follow_up_suggestions"`
}

// PreferenceInference is a preference guess plus the model's confidence in it
type PreferenceInference struct {
	Preferences models.Preferences
	Confidence  float64
}
