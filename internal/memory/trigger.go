package memory

import (
	"github.com/tutorgrid/memory-api/internal/models"
)

// EstimateTokens returns a crude token estimate for a conversation: total
// content characters divided by 2. Deliberately not a real tokenizer; the
// trigger thresholds are calibrated against this proxy.
func EstimateTokens(turns []models.Message) int {
	total := 0
	for _, m := range turns {
		total += len(m.Content)
	}
	return total / 2
}

// ShouldConsolidate decides whether consolidation should run for the current
// conversation state. It triggers when force is set, when the turn count
// reaches 2*triggerRounds (one round = one user+assistant pair), or when the
// estimated token count reaches triggerTokens. Pure predicate, no side effects.
func ShouldConsolidate(turns []models.Message, force bool, triggerRounds, triggerTokens int) bool {
	if force {
		return true
	}

	if len(turns) >= triggerRounds*2 {
		return true
	}

	return EstimateTokens(turns) >= triggerTokens
}
