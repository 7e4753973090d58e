package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/tutorgrid/memory-api/internal/database"
	"github.com/tutorgrid/memory-api/internal/memory"
	"github.com/tutorgrid/memory-api/internal/models"
)

// mockEngine is a mock implementation of MemoryEngine
type mockEngine struct {
	consolidateFunc       func(ctx context.Context, req memory.ConsolidateRequest) (*memory.ConsolidateResult, error)
	getProfileFunc        func(ctx context.Context, userID string) (*models.UserProfile, error)
	updatePreferencesFunc func(ctx context.Context, userID string, delta models.Preferences) (*models.UserProfile, error)
	inferPreferencesFunc  func(ctx context.Context, userID string, turns []models.Message) (*memory.InferenceResult, error)
	getContextFunc        func(ctx context.Context, q memory.ContextQuery) (*memory.ContextResult, error)
	getSummaryFunc        func(ctx context.Context, sessionID string) (*models.SessionSummary, error)
	listSessionsFunc      func(ctx context.Context, userID string, days, limit int) ([]*models.SessionSummary, error)
	getStatsFunc          func(ctx context.Context, userID string) (*memory.LearningStats, error)
}

func (m *mockEngine) Consolidate(ctx context.Context, req memory.ConsolidateRequest) (*memory.ConsolidateResult, error) {
	if m.consolidateFunc != nil {
		return m.consolidateFunc(ctx, req)
	}
	return &memory.ConsolidateResult{Triggered: true}, nil
}

func (m *mockEngine) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if m.getProfileFunc != nil {
		return m.getProfileFunc(ctx, userID)
	}
	return models.NewUserProfile(userID), nil
}

func (m *mockEngine) UpdatePreferences(ctx context.Context, userID string, delta models.Preferences) (*models.UserProfile, error) {
	if m.updatePreferencesFunc != nil {
		return m.updatePreferencesFunc(ctx, userID, delta)
	}
	profile := models.NewUserProfile(userID)
	profile.Preferences.Merge(delta)
	return profile, nil
}

func (m *mockEngine) InferPreferences(ctx context.Context, userID string, turns []models.Message) (*memory.InferenceResult, error) {
	if m.inferPreferencesFunc != nil {
		return m.inferPreferencesFunc(ctx, userID, turns)
	}
	return &memory.InferenceResult{Confidence: 0.4}, nil
}

func (m *mockEngine) GetContext(ctx context.Context, q memory.ContextQuery) (*memory.ContextResult, error) {
	if m.getContextFunc != nil {
		return m.getContextFunc(ctx, q)
	}
	return &memory.ContextResult{SuggestedContext: "context", Fallback: true}, nil
}

func (m *mockEngine) GetSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	if m.getSummaryFunc != nil {
		return m.getSummaryFunc(ctx, sessionID)
	}
	return nil, database.ErrSummaryNotFound
}

func (m *mockEngine) ListSessions(ctx context.Context, userID string, days, limit int) ([]*models.SessionSummary, error) {
	if m.listSessionsFunc != nil {
		return m.listSessionsFunc(ctx, userID, days, limit)
	}
	return nil, nil
}

func (m *mockEngine) GetStats(ctx context.Context, userID string) (*memory.LearningStats, error) {
	if m.getStatsFunc != nil {
		return m.getStatsFunc(ctx, userID)
	}
	return &memory.LearningStats{}, nil
}

var _ MemoryEngine = (*mockEngine)(nil)

func newTestRouter(engine MemoryEngine) *mux.Router {
	router := mux.NewRouter()
	handler := NewMemoryHandler(engine)
	handler.RegisterRoutes(router.PathPrefix("/api/v1/memory").Subrouter())
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	data, _ := body["data"].(map[string]any)
	return data
}

func TestMemoryHandler_Consolidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       any
		setupMock  func() *mockEngine
		wantStatus int
	}{
		{
			name: "successful consolidation",
			body: ConsolidateRequest{
				UserID:    "u1",
				SessionID: "s1",
				Messages: []models.Message{
					{Role: "user", Content: "hi"},
					{Role: "assistant", Content: "hello"},
				},
				Force: true,
			},
			setupMock:  func() *mockEngine { return &mockEngine{} },
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing user_id",
			body:       ConsolidateRequest{SessionID: "s1"},
			setupMock:  func() *mockEngine { return &mockEngine{} },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing session_id",
			body:       ConsolidateRequest{UserID: "u1"},
			setupMock:  func() *mockEngine { return &mockEngine{} },
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "invalid role",
			body: ConsolidateRequest{
				UserID:    "u1",
				SessionID: "s1",
				Messages:  []models.Message{{Role: "robot", Content: "beep"}},
			},
			setupMock:  func() *mockEngine { return &mockEngine{} },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid body",
			body:       "not json at all",
			setupMock:  func() *mockEngine { return &mockEngine{} },
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "engine failure",
			body: ConsolidateRequest{UserID: "u1", SessionID: "s1"},
			setupMock: func() *mockEngine {
				return &mockEngine{
					consolidateFunc: func(ctx context.Context, req memory.ConsolidateRequest) (*memory.ConsolidateResult, error) {
						return nil, errors.New("database down")
					},
				}
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := newTestRouter(tt.setupMock())
			w := doJSON(t, router, "POST", "/api/v1/memory/consolidate", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestMemoryHandler_Consolidate_TooManyMessages(t *testing.T) {
	t.Parallel()

	messages := make([]models.Message, MaxConsolidateTurns+1)
	for i := range messages {
		messages[i] = models.Message{Role: "user", Content: "x"}
	}

	router := newTestRouter(&mockEngine{})
	w := doJSON(t, router, "POST", "/api/v1/memory/consolidate", ConsolidateRequest{
		UserID:    "u1",
		SessionID: "s1",
		Messages:  messages,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestMemoryHandler_GetProfile(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&mockEngine{})
	w := doJSON(t, router, "GET", "/api/v1/memory/users/u1/profile", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	data := decodeData(t, w)
	if data["user_id"] != "u1" {
		t.Errorf("Expected user_id u1, got %v", data["user_id"])
	}
	prefs, ok := data["preferences"].(map[string]any)
	if !ok {
		t.Fatal("Expected preferences object")
	}
	if prefs["learning_style"] != "textual" {
		t.Errorf("Expected default learning_style textual, got %v", prefs["learning_style"])
	}
}

func TestMemoryHandler_UpdatePreferences(t *testing.T) {
	t.Parallel()

	t.Run("valid update", func(t *testing.T) {
		t.Parallel()

		var captured models.Preferences
		engine := &mockEngine{
			updatePreferencesFunc: func(ctx context.Context, userID string, delta models.Preferences) (*models.UserProfile, error) {
				captured = delta
				profile := models.NewUserProfile(userID)
				profile.Preferences.Merge(delta)
				return profile, nil
			},
		}

		router := newTestRouter(engine)
		w := doJSON(t, router, "PATCH", "/api/v1/memory/users/u1/preferences", map[string]any{
			"preferences": map[string]any{
				"learning_style": "visual",
				"custom_key":     "custom_value",
			},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if captured.LearningStyle == nil || *captured.LearningStyle != models.LearningStyleVisual {
			t.Errorf("Expected visual learning style, got %+v", captured.LearningStyle)
		}
		if captured.Extra["custom_key"] != "custom_value" {
			t.Errorf("Expected unknown key preserved, got %+v", captured.Extra)
		}
	})

	t.Run("invalid enum value", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(&mockEngine{})
		w := doJSON(t, router, "PATCH", "/api/v1/memory/users/u1/preferences", map[string]any{
			"preferences": map[string]any{"learning_style": "telepathic"},
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("empty delta", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(&mockEngine{})
		w := doJSON(t, router, "PATCH", "/api/v1/memory/users/u1/preferences", map[string]any{
			"preferences": map[string]any{},
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})
}

func TestMemoryHandler_InferPreferences(t *testing.T) {
	t.Parallel()

	t.Run("returns inference result", func(t *testing.T) {
		t.Parallel()

		engine := &mockEngine{
			inferPreferencesFunc: func(ctx context.Context, userID string, turns []models.Message) (*memory.InferenceResult, error) {
				return &memory.InferenceResult{Confidence: 0.8, Applied: true}, nil
			},
		}
		router := newTestRouter(engine)
		w := doJSON(t, router, "POST", "/api/v1/memory/users/u1/preferences/infer", map[string]any{
			"messages": []models.Message{{Role: "user", Content: "show me diagrams"}},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		data := decodeData(t, w)
		if data["applied"] != true {
			t.Errorf("Expected applied=true, got %v", data["applied"])
		}
	})

	t.Run("empty messages rejected", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(&mockEngine{})
		w := doJSON(t, router, "POST", "/api/v1/memory/users/u1/preferences/infer", map[string]any{})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("provider failure maps to bad gateway", func(t *testing.T) {
		t.Parallel()

		engine := &mockEngine{
			inferPreferencesFunc: func(ctx context.Context, userID string, turns []models.Message) (*memory.InferenceResult, error) {
				return nil, errors.New("model unavailable")
			},
		}
		router := newTestRouter(engine)
		w := doJSON(t, router, "POST", "/api/v1/memory/users/u1/preferences/infer", map[string]any{
			"messages": []models.Message{{Role: "user", Content: "hi"}},
		})
		if w.Code != http.StatusBadGateway {
			t.Errorf("Expected 502, got %d", w.Code)
		}
	})
}

func TestMemoryHandler_GetContext(t *testing.T) {
	t.Parallel()

	var capturedQuery string
	engine := &mockEngine{
		getContextFunc: func(ctx context.Context, q memory.ContextQuery) (*memory.ContextResult, error) {
			capturedQuery = q.Query
			return &memory.ContextResult{SuggestedContext: "remembered context"}, nil
		},
	}

	router := newTestRouter(engine)
	w := doJSON(t, router, "GET", "/api/v1/memory/users/u1/context?query=what+is+recursion", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if capturedQuery != "what is recursion" {
		t.Errorf("Expected query forwarded, got %q", capturedQuery)
	}
	data := decodeData(t, w)
	if data["suggested_context"] != "remembered context" {
		t.Errorf("Unexpected context: %v", data["suggested_context"])
	}
}

func TestMemoryHandler_GetSummary(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		engine := &mockEngine{
			getSummaryFunc: func(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
				return &models.SessionSummary{SessionID: sessionID, CoreTopic: "graphs"}, nil
			},
		}
		router := newTestRouter(engine)
		w := doJSON(t, router, "GET", "/api/v1/memory/sessions/s1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		data := decodeData(t, w)
		if data["core_topic"] != "graphs" {
			t.Errorf("Unexpected summary: %v", data)
		}
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(&mockEngine{})
		w := doJSON(t, router, "GET", "/api/v1/memory/sessions/missing", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", w.Code)
		}
	})
}

func TestMemoryHandler_ListSessions(t *testing.T) {
	t.Parallel()

	var capturedDays, capturedLimit int
	engine := &mockEngine{
		listSessionsFunc: func(ctx context.Context, userID string, days, limit int) ([]*models.SessionSummary, error) {
			capturedDays, capturedLimit = days, limit
			return []*models.SessionSummary{{SessionID: "s1"}}, nil
		},
	}

	router := newTestRouter(engine)
	w := doJSON(t, router, "GET", "/api/v1/memory/users/u1/sessions?days=14&limit=1000", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if capturedDays != 14 {
		t.Errorf("Expected days=14, got %d", capturedDays)
	}
	if capturedLimit != MaxSessionListLimit {
		t.Errorf("Expected limit capped to %d, got %d", MaxSessionListLimit, capturedLimit)
	}

	data := decodeData(t, w)
	if data["count"] != float64(1) {
		t.Errorf("Expected count 1, got %v", data["count"])
	}
}

func TestMemoryHandler_GetStats(t *testing.T) {
	t.Parallel()

	engine := &mockEngine{
		getStatsFunc: func(ctx context.Context, userID string) (*memory.LearningStats, error) {
			return &memory.LearningStats{
				Statistics:       models.Statistics{TotalSessions: 5},
				ConceptCount:     10,
				MasteredConcepts: 3,
			}, nil
		},
	}

	router := newTestRouter(engine)
	w := doJSON(t, router, "GET", "/api/v1/memory/users/u1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	data := decodeData(t, w)
	if data["mastered_concepts"] != float64(3) {
		t.Errorf("Expected 3 mastered, got %v", data["mastered_concepts"])
	}
}

func TestMemoryHandler_InvalidUserID(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&mockEngine{})

	longID := fmt.Sprintf("%0*d", 80, 1)
	for _, path := range []string{
		"/api/v1/memory/users/" + longID + "/profile",
		"/api/v1/memory/users/" + longID + "/context",
		"/api/v1/memory/users/" + longID + "/stats",
	} {
		w := doJSON(t, router, "GET", path, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %s, got %d", path, w.Code)
		}
	}
}
