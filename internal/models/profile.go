package models

import (
	"time"
)

// Statistics tracks aggregate learning activity for a user
type Statistics struct {
	TotalSessions    int        `json:"total_sessions"`
	TotalQuestions   int        `json:"total_questions"`
	ActiveDays       int        `json:"active_days"`
	AvgSessionLength float64    `json:"avg_session_length"`
	MostActiveHour   *int       `json:"most_active_hour"`
	LastActiveDate   *time.Time `json:"last_active_date"`
}

// ConceptState is the per-concept entry of the knowledge graph
type ConceptState struct {
	MasteryLevel     float64    `json:"mastery_level"`  // [0,1]
	LastReviewed     time.Time  `json:"last_reviewed"`
	InteractionCount int        `json:"interaction_count"`
	ConfusionScore   int        `json:"confusion_score"` // [0,100]
	Subject          string     `json:"subject,omitempty"`
	Topic            string     `json:"topic,omitempty"`
	Difficulty       Difficulty `json:"difficulty,omitempty"`
}

// KnowledgeGraph maps concept name to mastery/confusion/interaction metadata.
// Despite the name it carries no edges.
type KnowledgeGraph map[string]ConceptState

// WeakPoint is a concept the user has shown confusion about
type WeakPoint struct {
	Concept        string     `json:"concept"`
	ConfusionScore int        `json:"confusion_score"` // [0,100]
	LastConfused   *time.Time `json:"last_confused,omitempty"`
	Subject        string     `json:"subject,omitempty"`
	Topic          string     `json:"topic,omitempty"`
}

// UserProfile is the persistent per-user memory record. WeakPoints is kept
// sorted descending by confusion score after every mutation, with at most one
// entry per concept.
type UserProfile struct {
	ID             int64          `json:"id"`
	UserID         string         `json:"user_id"`
	Preferences    Preferences    `json:"preferences"`
	Statistics     Statistics     `json:"statistics"`
	KnowledgeGraph KnowledgeGraph `json:"knowledge_graph"`
	Interests      []string       `json:"interests"`
	WeakPoints     []WeakPoint    `json:"weak_points"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewUserProfile returns a profile with documented defaults for lazy creation
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:         userID,
		Preferences:    DefaultPreferences(),
		Statistics:     Statistics{},
		KnowledgeGraph: make(KnowledgeGraph),
		Interests:      []string{},
		WeakPoints:     []WeakPoint{},
	}
}

// TopWeakPoints returns up to n weak points. The list invariant keeps them
// ordered by descending confusion score already.
func (p *UserProfile) TopWeakPoints(n int) []WeakPoint {
	if n <= 0 || len(p.WeakPoints) == 0 {
		return []WeakPoint{}
	}
	if n > len(p.WeakPoints) {
		n = len(p.WeakPoints)
	}
	out := make([]WeakPoint, n)
	copy(out, p.WeakPoints[:n])
	return out
}
