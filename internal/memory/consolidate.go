package memory

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tutorgrid/memory-api/internal/models"
)

const (
	// MasteryReinforcement is the mastery increase applied once per key point
	// seen in a summary. Exposure raises mastery.
	MasteryReinforcement = 0.1

	// MaxConceptLength is the maximum length of a concept derived from a key point
	MaxConceptLength = 50
	// MaxConceptTokens is the number of leading tokens kept when deriving a concept
	MaxConceptTokens = 5

	// MinConfusionScore and MaxConfusionScore bound confusion scores
	MinConfusionScore = 0
	MaxConfusionScore = 100
)

// ErrEmptyConcept is returned when a merge is attempted with an empty concept string
var ErrEmptyConcept = errors.New("concept must not be empty")

// MergeWeakPoints merges newly observed weak points into the existing list.
// For a concept already tracked, the higher confusion score wins and
// last_confused moves forward only when the new score is the one retained.
// New concepts are appended. The result is sorted descending by confusion
// score (ties broken by concept name so concurrent writers converge), with at
// most one entry per concept. Entries with an empty concept are rejected.
//
// The merge is commutative and idempotent: max, plus an ordering-independent
// sort, yields the same final state regardless of interleaving.
func MergeWeakPoints(existing, incoming []models.WeakPoint, now time.Time) ([]models.WeakPoint, error) {
	for _, wp := range incoming {
		if strings.TrimSpace(wp.Concept) == "" {
			return nil, ErrEmptyConcept
		}
	}

	merged := make([]models.WeakPoint, len(existing))
	copy(merged, existing)

	index := make(map[string]int, len(merged))
	for i, wp := range merged {
		index[wp.Concept] = i
	}

	for _, wp := range incoming {
		if wp.LastConfused == nil {
			t := now
			wp.LastConfused = &t
		}

		i, ok := index[wp.Concept]
		if !ok {
			wp.ConfusionScore = clampScore(wp.ConfusionScore)
			index[wp.Concept] = len(merged)
			merged = append(merged, wp)
			continue
		}

		if wp.ConfusionScore >= merged[i].ConfusionScore {
			merged[i].ConfusionScore = clampScore(wp.ConfusionScore)
			merged[i].LastConfused = wp.LastConfused
		}
		if merged[i].Subject == "" {
			merged[i].Subject = wp.Subject
		}
		if merged[i].Topic == "" {
			merged[i].Topic = wp.Topic
		}
	}

	sort.SliceStable(merged, func(a, b int) bool {
		if merged[a].ConfusionScore != merged[b].ConfusionScore {
			return merged[a].ConfusionScore > merged[b].ConfusionScore
		}
		return merged[a].Concept < merged[b].Concept
	})

	return merged, nil
}

// ConceptDelta describes one observation of a concept
type ConceptDelta struct {
	Mastery    float64
	Confusion  *int
	Subject    string
	Topic      string
	Difficulty models.Difficulty
}

// ObserveConcept applies one observation to the knowledge graph. A concept
// seen for the first time is initialized with zeroed mastery and confusion.
// Mastery and confusion are saturating adds, never wraparound; the interaction
// counter always increments and last_reviewed moves to now.
func ObserveConcept(g models.KnowledgeGraph, concept string, delta ConceptDelta, now time.Time) error {
	if strings.TrimSpace(concept) == "" {
		return ErrEmptyConcept
	}

	state, ok := g[concept]
	if !ok {
		state = models.ConceptState{LastReviewed: now}
	}

	state.MasteryLevel = clamp01(state.MasteryLevel + delta.Mastery)
	if delta.Confusion != nil {
		state.ConfusionScore = clampScore(state.ConfusionScore + *delta.Confusion)
	}
	state.InteractionCount++
	state.LastReviewed = now

	if delta.Subject != "" {
		state.Subject = delta.Subject
	}
	if delta.Topic != "" {
		state.Topic = delta.Topic
	}
	if delta.Difficulty != "" {
		state.Difficulty = delta.Difficulty
	}

	g[concept] = state
	return nil
}

// ConceptFromKeyPoint derives a deterministic knowledge-graph key from a
// summary key point: the first few whitespace-delimited tokens, truncated to a
// bounded length.
func ConceptFromKeyPoint(point string) string {
	fields := strings.Fields(point)
	if len(fields) > MaxConceptTokens {
		fields = fields[:MaxConceptTokens]
	}
	concept := strings.Join(fields, " ")

	runes := []rune(concept)
	if len(runes) > MaxConceptLength {
		concept = string(runes[:MaxConceptLength])
	}
	return concept
}

// StatisticsEvent describes what one consolidation contributes to the running statistics
type StatisticsEvent struct {
	IncrementSessions   bool
	IncrementQuestions  bool
	IncrementActiveDays bool
	SessionLength       *float64
}

// ApplyStatistics folds one event into the statistics. The running average
// weights with the session count from before this event's increment; using the
// post-increment count would bias the mean. last_active_date refreshes
// unconditionally.
func ApplyStatistics(s *models.Statistics, ev StatisticsEvent, now time.Time) {
	oldSessions := s.TotalSessions

	if ev.IncrementSessions {
		s.TotalSessions = oldSessions + 1
	}
	if ev.IncrementQuestions {
		s.TotalQuestions++
	}
	if ev.IncrementActiveDays {
		// Simplification: one increment per consolidation event, not true
		// calendar-day deduplication.
		s.ActiveDays++
	}

	if ev.SessionLength != nil {
		if oldSessions == 0 {
			s.AvgSessionLength = *ev.SessionLength
		} else {
			avg := (s.AvgSessionLength*float64(oldSessions) + *ev.SessionLength) / float64(oldSessions+1)
			s.AvgSessionLength = math.Round(avg*100) / 100
		}
	}

	t := now
	s.LastActiveDate = &t
}

// ConsolidateSummary merges one extracted session summary into the profile:
// preference overwrite, weak-point merge, statistics update, and knowledge
// graph reinforcement from the key points.
func ConsolidateSummary(profile *models.UserProfile, summary *models.SessionSummary, now time.Time) error {
	profile.Preferences.Merge(summary.UserPreferences)

	if len(summary.WeakPoints) > 0 {
		incoming := make([]models.WeakPoint, 0, len(summary.WeakPoints))
		for _, wp := range summary.WeakPoints {
			if wp.Subject == "" {
				wp.Subject = summary.Subject
			}
			if wp.Topic == "" {
				wp.Topic = summary.Topic
			}
			incoming = append(incoming, wp)
		}

		merged, err := MergeWeakPoints(profile.WeakPoints, incoming, now)
		if err != nil {
			return err
		}
		profile.WeakPoints = merged
	}

	sessionLength := float64(summary.MessageCount)
	ApplyStatistics(&profile.Statistics, StatisticsEvent{
		IncrementSessions:   true,
		IncrementQuestions:  summary.QuestionCount() > 0,
		IncrementActiveDays: true,
		SessionLength:       &sessionLength,
	}, now)

	if profile.KnowledgeGraph == nil {
		profile.KnowledgeGraph = make(models.KnowledgeGraph)
	}
	for _, point := range summary.KeyPoints {
		concept := ConceptFromKeyPoint(point)
		if concept == "" {
			continue
		}
		err := ObserveConcept(profile.KnowledgeGraph, concept, ConceptDelta{
			Mastery:    MasteryReinforcement,
			Subject:    summary.Subject,
			Topic:      summary.Topic,
			Difficulty: summary.Difficulty,
		}, now)
		if err != nil {
			return err
		}
	}

	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampScore(v int) int {
	if v < MinConfusionScore {
		return MinConfusionScore
	}
	if v > MaxConfusionScore {
		return MaxConfusionScore
	}
	return v
}
