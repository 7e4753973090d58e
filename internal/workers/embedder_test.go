package workers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tutorgrid/memory-api/internal/database"
	"github.com/tutorgrid/memory-api/internal/models"
	"github.com/tutorgrid/memory-api/internal/queue"
)

// mockEmbeddingProvider is a mock implementation of ai.EmbeddingProvider
type mockEmbeddingProvider struct {
	embedFunc func(ctx context.Context, text string) ([]float64, error)
}

func (m *mockEmbeddingProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if m.embedFunc != nil {
		return m.embedFunc(ctx, text)
	}
	return []float64{0.1, 0.2, 0.3}, nil
}

// mockEmbeddingStore is a mock implementation of database.EmbeddingStore
type mockEmbeddingStore struct {
	getSummaryFunc    func(ctx context.Context, sessionID string) (*models.SessionSummary, error)
	listSummariesFunc func(ctx context.Context, userID string, days, limit int) ([]*models.SessionSummary, error)
	saveEmbeddingFunc func(ctx context.Context, embedding *models.MemoryEmbedding) error
}

func (m *mockEmbeddingStore) GetSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	if m.getSummaryFunc != nil {
		return m.getSummaryFunc(ctx, sessionID)
	}
	return nil, database.ErrSummaryNotFound
}

func (m *mockEmbeddingStore) ListSummaries(ctx context.Context, userID string, days, limit int) ([]*models.SessionSummary, error) {
	if m.listSummariesFunc != nil {
		return m.listSummariesFunc(ctx, userID, days, limit)
	}
	return []*models.SessionSummary{}, nil
}

func (m *mockEmbeddingStore) SaveEmbedding(ctx context.Context, embedding *models.MemoryEmbedding) error {
	if m.saveEmbeddingFunc != nil {
		return m.saveEmbeddingFunc(ctx, embedding)
	}
	return nil
}

func (m *mockEmbeddingStore) ListEmbeddings(ctx context.Context, userID string, days int) ([]*models.MemoryEmbedding, error) {
	return []*models.MemoryEmbedding{}, nil
}

// Ensure mock implements interface
var _ database.EmbeddingStore = (*mockEmbeddingStore)(nil)

// mockJobQueue is a mock implementation of JobQueue
type mockJobQueue struct {
	enqueueFunc func(ctx context.Context, job *queue.Job) error
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.enqueueFunc != nil {
		return m.enqueueFunc(ctx, job)
	}
	return nil
}

func (m *mockJobQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *mockJobQueue) Close() error {
	return nil
}

func (m *mockJobQueue) HealthCheck(ctx context.Context) error {
	return nil
}

// Ensure mock implements interface
var _ queue.JobQueue = (*mockJobQueue)(nil)

// mockMessage is a mock implementation of MessageInterface
type mockMessage struct {
	job      *queue.Job
	ackFunc  func() error
	nackFunc func(requeue bool) error
}

func (m *mockMessage) Ack() error {
	if m.ackFunc != nil {
		return m.ackFunc()
	}
	return nil
}

func (m *mockMessage) Nack(requeue bool) error {
	if m.nackFunc != nil {
		return m.nackFunc(requeue)
	}
	return nil
}

func (m *mockMessage) GetJob() *queue.Job {
	return m.job
}

// Ensure mock implements interface
var _ queue.MessageInterface = (*mockMessage)(nil)

func testSummary(sessionID, userID string) *models.SessionSummary {
	return &models.SessionSummary{
		ID:        uuid.New(),
		SessionID: sessionID,
		UserID:    userID,
		CoreTopic: "binary search trees",
		KeyPoints: []string{"in-order traversal yields sorted output"},
	}
}

func TestEmbedder_ProcessEmbeddingJob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		job         *queue.Job
		setupMocks  func() (*mockEmbeddingProvider, *mockEmbeddingStore)
		expectError bool
		expectSaved bool
	}{
		{
			name: "successful embedding",
			job:  queue.NewJob(queue.JobTypeEmbedding, "u1", "s1"),
			setupMocks: func() (*mockEmbeddingProvider, *mockEmbeddingStore) {
				store := &mockEmbeddingStore{
					getSummaryFunc: func(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
						return testSummary(sessionID, "u1"), nil
					},
				}
				return &mockEmbeddingProvider{}, store
			},
			expectError: false,
			expectSaved: true,
		},
		{
			name: "missing session_id",
			job: &queue.Job{
				ID:     uuid.New(),
				Type:   queue.JobTypeEmbedding,
				UserID: "u1",
			},
			setupMocks: func() (*mockEmbeddingProvider, *mockEmbeddingStore) {
				return &mockEmbeddingProvider{}, &mockEmbeddingStore{}
			},
			expectError: true,
		},
		{
			name: "summary deleted before embedding",
			job:  queue.NewJob(queue.JobTypeEmbedding, "u1", "s1"),
			setupMocks: func() (*mockEmbeddingProvider, *mockEmbeddingStore) {
				store := &mockEmbeddingStore{
					getSummaryFunc: func(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
						return nil, database.ErrSummaryNotFound
					},
				}
				return &mockEmbeddingProvider{}, store
			},
			expectError: false, // Should skip silently
			expectSaved: false,
		},
		{
			name: "summary belongs to different user",
			job:  queue.NewJob(queue.JobTypeEmbedding, "u1", "s1"),
			setupMocks: func() (*mockEmbeddingProvider, *mockEmbeddingStore) {
				store := &mockEmbeddingStore{
					getSummaryFunc: func(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
						return testSummary(sessionID, "someone-else"), nil
					},
				}
				return &mockEmbeddingProvider{}, store
			},
			expectError: true,
		},
		{
			name: "provider error",
			job:  queue.NewJob(queue.JobTypeEmbedding, "u1", "s1"),
			setupMocks: func() (*mockEmbeddingProvider, *mockEmbeddingStore) {
				provider := &mockEmbeddingProvider{
					embedFunc: func(ctx context.Context, text string) ([]float64, error) {
						return nil, errors.New("embedding failed")
					},
				}
				store := &mockEmbeddingStore{
					getSummaryFunc: func(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
						return testSummary(sessionID, "u1"), nil
					},
				}
				return provider, store
			},
			expectError: true,
		},
		{
			name: "dimension mismatch is stored anyway",
			job:  queue.NewJob(queue.JobTypeEmbedding, "u1", "s1"),
			setupMocks: func() (*mockEmbeddingProvider, *mockEmbeddingStore) {
				provider := &mockEmbeddingProvider{
					embedFunc: func(ctx context.Context, text string) ([]float64, error) {
						return []float64{0.5}, nil // 1 dimension instead of 3
					},
				}
				store := &mockEmbeddingStore{
					getSummaryFunc: func(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
						return testSummary(sessionID, "u1"), nil
					},
				}
				return provider, store
			},
			expectError: false,
			expectSaved: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			provider, store := tt.setupMocks()

			saved := false
			originalSave := store.saveEmbeddingFunc
			store.saveEmbeddingFunc = func(ctx context.Context, embedding *models.MemoryEmbedding) error {
				saved = true
				if embedding.UserID == "" || embedding.SessionID == "" {
					t.Error("Expected embedding to carry user and session identifiers")
				}
				if originalSave != nil {
					return originalSave(ctx, embedding)
				}
				return nil
			}

			embedder := NewEmbedder(provider, store, &mockJobQueue{}, 3, 30)

			err := embedder.ProcessEmbeddingJob(context.Background(), tt.job)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
			}

			if saved != tt.expectSaved {
				t.Errorf("Expected saved=%v, got %v", tt.expectSaved, saved)
			}
		})
	}
}

func TestEmbedder_ProcessReembedUserJob(t *testing.T) {
	t.Parallel()

	store := &mockEmbeddingStore{
		listSummariesFunc: func(ctx context.Context, userID string, days, limit int) ([]*models.SessionSummary, error) {
			return []*models.SessionSummary{
				testSummary("s1", userID),
				testSummary("s2", userID),
			}, nil
		},
	}

	saves := 0
	store.saveEmbeddingFunc = func(ctx context.Context, embedding *models.MemoryEmbedding) error {
		saves++
		return nil
	}

	embedder := NewEmbedder(&mockEmbeddingProvider{}, store, &mockJobQueue{}, 3, 30)

	job := queue.NewJob(queue.JobTypeReembedUser, "u1", "")
	if err := embedder.ProcessReembedUserJob(context.Background(), job); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if saves != 2 {
		t.Errorf("Expected 2 embeddings saved, got %d", saves)
	}
}

func TestEmbedder_ProcessJob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		job         *queue.Job
		setupMocks  func() (*mockEmbeddingProvider, *mockEmbeddingStore)
		expectError bool
	}{
		{
			name: "embedding job",
			job:  queue.NewJob(queue.JobTypeEmbedding, "u1", "s1"),
			setupMocks: func() (*mockEmbeddingProvider, *mockEmbeddingStore) {
				store := &mockEmbeddingStore{
					getSummaryFunc: func(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
						return testSummary(sessionID, "u1"), nil
					},
				}
				return &mockEmbeddingProvider{}, store
			},
			expectError: false,
		},
		{
			name: "re-embed user job",
			job:  queue.NewJob(queue.JobTypeReembedUser, "u1", ""),
			setupMocks: func() (*mockEmbeddingProvider, *mockEmbeddingStore) {
				return &mockEmbeddingProvider{}, &mockEmbeddingStore{}
			},
			expectError: false,
		},
		{
			name: "unknown job type",
			job: &queue.Job{
				ID:     uuid.New(),
				Type:   queue.JobType("unknown"),
				UserID: "u1",
			},
			setupMocks: func() (*mockEmbeddingProvider, *mockEmbeddingStore) {
				return &mockEmbeddingProvider{}, &mockEmbeddingStore{}
			},
			expectError: true,
		},
		{
			name: "job not ready yet",
			job: func() *queue.Job {
				job := queue.NewJob(queue.JobTypeEmbedding, "u1", "s1")
				notBefore := time.Now().Add(1 * time.Hour)
				job.NotBefore = &notBefore
				return job
			}(),
			setupMocks: func() (*mockEmbeddingProvider, *mockEmbeddingStore) {
				return &mockEmbeddingProvider{}, &mockEmbeddingStore{}
			},
			expectError: false, // Should skip silently
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			provider, store := tt.setupMocks()
			embedder := NewEmbedder(provider, store, &mockJobQueue{}, 3, 30)

			msg := &mockMessage{job: tt.job}

			err := embedder.ProcessJob(context.Background(), msg)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
			}
		})
	}
}

func TestEmbeddingText(t *testing.T) {
	t.Parallel()

	summary := &models.SessionSummary{
		CoreTopic:           "quadratic equations",
		KeyPoints:           []string{"discriminant determines root count"},
		ResolvedQuestions:   []string{"how to complete the square"},
		UnresolvedQuestions: []string{"why does the formula work"},
	}

	text := EmbeddingText(summary)
	for _, want := range []string{
		"quadratic equations",
		"discriminant determines root count",
		"how to complete the square",
		"why does the formula work",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected rendered text to contain %q", want)
		}
	}

	if got := EmbeddingText(&models.SessionSummary{}); got != "" {
		t.Errorf("Expected empty text for empty summary, got %q", got)
	}
}
