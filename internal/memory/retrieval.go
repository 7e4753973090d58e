package memory

import (
	"fmt"
	"strings"

	"github.com/tutorgrid/memory-api/internal/models"
)

const (
	// MemoriesTailLimit bounds the rendered memories sent to the model
	MemoriesTailLimit = 4000

	// MaxKeyPointsPerMemory bounds how many key points each rendered memory shows
	MaxKeyPointsPerMemory = 3
	// MaxQuestionsPerMemory bounds resolved/unresolved questions per rendered memory
	MaxQuestionsPerMemory = 2

	// MaxBasicWeakPoints bounds the weak points shown in the basic context
	MaxBasicWeakPoints = 3
)

var learningStyleLabels = map[models.LearningStyle]string{
	models.LearningStyleVisual:    "visual learner (prefers diagrams and images)",
	models.LearningStyleTextual:   "textual learner (prefers written explanations)",
	models.LearningStyleHandsOn:   "hands-on learner (prefers practical exercises)",
	models.LearningStyleCodeFirst: "code-first learner (prefers code examples up front)",
}

var difficultyLabels = map[models.Difficulty]string{
	models.DifficultyBeginner:     "beginner",
	models.DifficultyIntermediate: "intermediate",
	models.DifficultyAdvanced:     "advanced",
}

// BasicContext renders the deterministic, LLM-free context derived solely from
// the profile: learning style, difficulty, code/math flags, and the top weak
// points. This is both the empty-history path and the degradation target when
// the retrieval call fails.
func BasicContext(profile *models.UserProfile) string {
	var parts []string

	style := models.LearningStyleTextual
	if profile.Preferences.LearningStyle != nil {
		style = *profile.Preferences.LearningStyle
	}
	label, ok := learningStyleLabels[style]
	if !ok {
		label = string(style)
	}
	parts = append(parts, "- Learning style: "+label)

	difficulty := models.DifficultyIntermediate
	if profile.Preferences.DifficultyPreference != nil {
		difficulty = *profile.Preferences.DifficultyPreference
	}
	diffLabel, ok := difficultyLabels[difficulty]
	if !ok {
		diffLabel = string(difficulty)
	}
	parts = append(parts, "- Preferred difficulty: "+diffLabel)

	if profile.Preferences.IncludeCode != nil && *profile.Preferences.IncludeCode {
		parts = append(parts, "- Likes code examples included")
	}
	if profile.Preferences.IncludeMath != nil && *profile.Preferences.IncludeMath {
		parts = append(parts, "- Comfortable with mathematical notation")
	}

	if top := profile.TopWeakPoints(MaxBasicWeakPoints); len(top) > 0 {
		entries := make([]string, 0, len(top))
		for _, wp := range top {
			entries = append(entries, fmt.Sprintf("%s (confusion %d)", wp.Concept, wp.ConfusionScore))
		}
		parts = append(parts, "- Weak points: "+strings.Join(entries, ", "))
	}

	if len(parts) == 0 {
		return "New user, no profile information yet"
	}
	return "## User Profile\n" + strings.Join(parts, "\n")
}

// RenderSummaries renders fetched summaries compactly for the retrieval call:
// session id, date, core topic, and a bounded number of key points and
// questions per memory.
// filterSummaries keeps only summaries matching the given subject and topic.
// Empty filters match everything.
func filterSummaries(summaries []*models.SessionSummary, subject, topic string) []*models.SessionSummary {
	if subject == "" && topic == "" {
		return summaries
	}
	filtered := make([]*models.SessionSummary, 0, len(summaries))
	for _, s := range summaries {
		if subject != "" && !strings.EqualFold(s.Subject, subject) {
			continue
		}
		if topic != "" && !strings.EqualFold(s.Topic, topic) {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

func RenderSummaries(summaries []*models.SessionSummary) string {
	if len(summaries) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(summaries))
	for _, s := range summaries {
		var b strings.Builder
		fmt.Fprintf(&b, "Session: %s\n", s.SessionID)
		fmt.Fprintf(&b, "Date: %s\n", s.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Fprintf(&b, "Core topic: %s\n", s.CoreTopic)
		fmt.Fprintf(&b, "Key points: %s\n", strings.Join(head(s.KeyPoints, MaxKeyPointsPerMemory), ", "))
		fmt.Fprintf(&b, "Resolved questions: %s\n", strings.Join(head(s.ResolvedQuestions, MaxQuestionsPerMemory), ", "))
		fmt.Fprintf(&b, "Unresolved questions: %s\n", strings.Join(head(s.UnresolvedQuestions, MaxQuestionsPerMemory), ", "))
		b.WriteString("---")
		blocks = append(blocks, b.String())
	}

	rendered := strings.Join(blocks, "\n\n")
	runes := []rune(rendered)
	if len(runes) > MemoriesTailLimit {
		rendered = string(runes[len(runes)-MemoriesTailLimit:])
	}
	return rendered
}

func head(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
