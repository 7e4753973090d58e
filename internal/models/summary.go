package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionSummary is the structured summary of one tutoring session.
// Exactly one row exists per session_id; repeated consolidations for the same
// session update the mutable fields in place.
type SessionSummary struct {
	ID                  uuid.UUID      `json:"id"`
	SessionID           string         `json:"session_id"`
	UserID              string         `json:"user_id"`
	CoreTopic           string         `json:"core_topic"`
	KeyPoints           []string       `json:"key_points"`
	ResolvedQuestions   []string       `json:"resolved_questions"`
	UnresolvedQuestions []string       `json:"unresolved_questions"`
	UserPreferences     Preferences    `json:"user_preferences"`
	WeakPoints          []WeakPoint    `json:"weak_points"`
	Subject             string         `json:"subject,omitempty"`
	Topic               string         `json:"topic,omitempty"`
	Difficulty          Difficulty     `json:"difficulty,omitempty"`
	RecentMessages      []Message      `json:"recent_messages"`
	MessageCount        int            `json:"message_count"`
	TokenCount          int            `json:"token_count"`
	SummaryQuality      map[string]any `json:"summary_quality"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// QuestionCount returns the number of resolved plus unresolved questions
func (s *SessionSummary) QuestionCount() int {
	return len(s.ResolvedQuestions) + len(s.UnresolvedQuestions)
}
