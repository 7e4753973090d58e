package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tutorgrid/memory-api/internal/database"
	"github.com/tutorgrid/memory-api/internal/models"
	"github.com/tutorgrid/memory-api/internal/queue"
	"github.com/tutorgrid/memory-api/internal/services/ai"
)

// Embedder processes memory embedding jobs
type Embedder struct {
	provider     ai.EmbeddingProvider
	store        database.EmbeddingStore
	jobQueue     queue.JobQueue // For re-enqueueing jobs with delays
	expectedDims int            // 0 disables the dimension check
	lookbackDays int
}

// NewEmbedder creates a new embedding worker
func NewEmbedder(provider ai.EmbeddingProvider, store database.EmbeddingStore, jobQueue queue.JobQueue, expectedDims, lookbackDays int) *Embedder {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &Embedder{
		provider:     provider,
		store:        store,
		jobQueue:     jobQueue,
		expectedDims: expectedDims,
		lookbackDays: lookbackDays,
	}
}

// ProcessEmbeddingJob embeds a single session summary
func (e *Embedder) ProcessEmbeddingJob(ctx context.Context, job *queue.Job) error {
	if job.SessionID == "" {
		return fmt.Errorf("session_id is required for embedding job")
	}

	summary, err := e.store.GetSummary(ctx, job.SessionID)
	if err != nil {
		if errors.Is(err, database.ErrSummaryNotFound) {
			// The summary was deleted between consolidation and embedding.
			// Nothing to embed, treat as done.
			log.Printf("Summary for session %s no longer exists, skipping embedding", job.SessionID)
			return nil
		}
		return fmt.Errorf("failed to get summary: %w", err)
	}

	if summary.UserID != job.UserID {
		return fmt.Errorf("summary does not belong to user")
	}

	return e.embedSummary(ctx, summary)
}

// ProcessReembedUserJob re-embeds every recent summary for a user, for
// example after the embedding model changes
func (e *Embedder) ProcessReembedUserJob(ctx context.Context, job *queue.Job) error {
	summaries, err := e.store.ListSummaries(ctx, job.UserID, e.lookbackDays, 500)
	if err != nil {
		return fmt.Errorf("failed to list summaries: %w", err)
	}

	embedded := 0
	for _, summary := range summaries {
		if err := e.embedSummary(ctx, summary); err != nil {
			log.Printf("Failed to embed summary %s for user %s: %v", summary.SessionID, job.UserID, err)
			continue
		}
		embedded++
	}

	log.Printf("Re-embedded %d of %d summaries for user %s", embedded, len(summaries), job.UserID)
	return nil
}

// embedSummary renders a summary to text, embeds it, and stores the vector
func (e *Embedder) embedSummary(ctx context.Context, summary *models.SessionSummary) error {
	text := EmbeddingText(summary)
	if text == "" {
		log.Printf("Summary %s renders to empty text, skipping embedding", summary.SessionID)
		return nil
	}

	vector, err := e.provider.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed summary: %w", err)
	}
	if len(vector) == 0 {
		return fmt.Errorf("embedding provider returned an empty vector")
	}

	if e.expectedDims > 0 && len(vector) != e.expectedDims {
		// A dimension mismatch means the vector cannot be compared against
		// older ones, but we still store it so the data is not lost.
		log.Printf("Embedding for session %s has %d dimensions, expected %d", summary.SessionID, len(vector), e.expectedDims)
	}

	embedding := &models.MemoryEmbedding{
		MemoryID:  summary.ID,
		UserID:    summary.UserID,
		SessionID: summary.SessionID,
		Embedding: vector,
		Metadata: map[string]any{
			"core_topic":    summary.CoreTopic,
			"message_count": summary.MessageCount,
		},
	}

	if err := e.store.SaveEmbedding(ctx, embedding); err != nil {
		return fmt.Errorf("failed to save embedding: %w", err)
	}

	log.Printf("Embedded session %s for user %s (%d dimensions)", summary.SessionID, summary.UserID, len(vector))
	return nil
}

// EmbeddingText renders the parts of a summary that carry retrieval signal
func EmbeddingText(summary *models.SessionSummary) string {
	var parts []string
	if summary.CoreTopic != "" {
		parts = append(parts, summary.CoreTopic)
	}
	if len(summary.KeyPoints) > 0 {
		parts = append(parts, strings.Join(summary.KeyPoints, "\n"))
	}
	if len(summary.ResolvedQuestions) > 0 {
		parts = append(parts, strings.Join(summary.ResolvedQuestions, "\n"))
	}
	if len(summary.UnresolvedQuestions) > 0 {
		parts = append(parts, strings.Join(summary.UnresolvedQuestions, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

// ProcessJob processes a job based on its type
func (e *Embedder) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	// Check if job should be processed now (respect NotBefore)
	if !job.ShouldProcess() {
		log.Printf("Job %s not ready yet (NotBefore: %v), skipping", job.ID, job.NotBefore)
		if ackErr := msg.Ack(); ackErr != nil {
			log.Printf("Failed to ack job for later processing: %v", ackErr)
		}
		return nil
	}

	switch job.Type {
	case queue.JobTypeEmbedding:
		if err := e.ProcessEmbeddingJob(ctx, job); err != nil {
			return e.handleJobError(ctx, msg, job, err, "embedding")
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	case queue.JobTypeReembedUser:
		if err := e.ProcessReembedUserJob(ctx, job); err != nil {
			// Re-embedding failures are less critical, just log
			if nackErr := msg.Nack(false); nackErr != nil { // Don't requeue re-embed jobs
				log.Printf("Failed to nack re-embed job: %v", nackErr)
			}
			return fmt.Errorf("re-embedding failed: %w", err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack re-embed job: %w", ackErr)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			log.Printf("Failed to nack unknown job type: %v", nackErr)
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError handles errors from job processing with retry logic that
// understands rate limit and quota responses from the embedding provider
func (e *Embedder) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error, jobType string) error {
	if ai.IsQuotaError(err) {
		log.Printf("Quota exceeded for %s job %s: %v", jobType, job.ID, err)

		retryDelay := ai.GetRetryDelay(err, job.RetryCount)
		notBefore := time.Now().Add(retryDelay)

		delayedJob := e.delayedCopy(job, notBefore)

		if ackErr := msg.Ack(); ackErr != nil {
			log.Printf("Failed to ack job before re-enqueue: %v", ackErr)
		}

		if e.jobQueue != nil {
			if enqueueErr := e.jobQueue.Enqueue(ctx, delayedJob); enqueueErr != nil {
				log.Printf("Failed to re-enqueue job %s with delay: %v", job.ID, enqueueErr)
				return fmt.Errorf("quota exhausted, failed to re-enqueue: %w", enqueueErr)
			}
			log.Printf("Re-enqueued %s job %s for retry at %v (quota exhausted)", jobType, job.ID, notBefore)
			return nil
		}

		return fmt.Errorf("quota exhausted (job %s): %w", job.ID, err)
	}

	if ai.IsRateLimitError(err) {
		log.Printf("Rate limited for %s job %s: %v", jobType, job.ID, err)

		if job.CanRetry() && e.jobQueue != nil {
			retryDelay := ai.GetRetryDelay(err, job.RetryCount)
			notBefore := time.Now().Add(retryDelay)
			delayedJob := e.delayedCopy(job, notBefore)

			if ackErr := msg.Ack(); ackErr != nil {
				log.Printf("Failed to ack rate limited job: %v", ackErr)
			}

			if enqueueErr := e.jobQueue.Enqueue(ctx, delayedJob); enqueueErr != nil {
				log.Printf("Failed to re-enqueue rate limited job %s: %v", job.ID, enqueueErr)
				if nackErr := msg.Nack(true); nackErr != nil {
					log.Printf("Failed to nack rate limited job: %v", nackErr)
				}
				return fmt.Errorf("rate limited, failed to re-enqueue: %w", enqueueErr)
			}

			log.Printf("Rate limited: re-enqueued %s job %s for retry at %v", jobType, job.ID, notBefore)
			return nil
		}

		if job.CanRetry() {
			job.IncrementRetry()
			if nackErr := msg.Nack(true); nackErr != nil {
				log.Printf("Failed to nack rate limited job: %v", nackErr)
			}
			return fmt.Errorf("rate limited (will retry): %w", err)
		}
	}

	if job.CanRetry() {
		job.IncrementRetry()
		log.Printf("%s job %s failed (attempt %d/%d): %v, will retry", jobType, job.ID, job.RetryCount, job.MaxRetries, err)
		if nackErr := msg.Nack(true); nackErr != nil {
			log.Printf("Failed to nack job: %v", nackErr)
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	log.Printf("%s job %s failed after %d retries: %v, sending to DLQ", jobType, job.ID, job.MaxRetries, err)
	if nackErr := msg.Nack(false); nackErr != nil {
		log.Printf("Failed to nack job to DLQ: %v", nackErr)
	}
	return fmt.Errorf("job failed (max retries): %w", err)
}

// delayedCopy clones a job with a new NotBefore and an incremented retry count
func (e *Embedder) delayedCopy(job *queue.Job, notBefore time.Time) *queue.Job {
	return &queue.Job{
		ID:         job.ID,
		Type:       job.Type,
		UserID:     job.UserID,
		SessionID:  job.SessionID,
		NotBefore:  &notBefore,
		NotAfter:   job.NotAfter,
		Metadata:   job.Metadata,
		CreatedAt:  job.CreatedAt,
		RetryCount: job.RetryCount + 1,
		MaxRetries: job.MaxRetries,
	}
}
