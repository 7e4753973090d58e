package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeDB struct {
	err error
}

func (f *fakeDB) PingContext(ctx context.Context) error { return f.err }

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeQueueChecker struct {
	err error
}

func (f *fakeQueueChecker) HealthCheck(ctx context.Context) error { return f.err }

func TestHealthChecker_BasicMode(t *testing.T) {
	t.Parallel()

	checker := NewHealthChecker(&fakeDB{}, nil, nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/healthz", nil)
	checker.HealthCheck(w, r)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("Expected healthy, got %s", body.Status)
	}
	if body.Checks != nil {
		t.Error("Expected no checks in basic mode")
	}
}

func TestHealthChecker_ExtendedMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		db         *fakeDB
		cache      Pinger
		queue      QueueChecker
		wantStatus int
		wantHealth string
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			db:         &fakeDB{},
			cache:      &fakePinger{},
			queue:      &fakeQueueChecker{},
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
			wantChecks: map[string]string{"database": "healthy", "cache": "healthy", "queue": "healthy"},
		},
		{
			name:       "database down",
			db:         &fakeDB{err: errors.New("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
		},
		{
			name:       "cache down",
			db:         &fakeDB{},
			cache:      &fakePinger{err: errors.New("redis unreachable")},
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
		},
		{
			name:       "queue down",
			db:         &fakeDB{},
			queue:      &fakeQueueChecker{err: errors.New("channel closed")},
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
		},
		{
			name:       "optional dependencies not configured",
			db:         &fakeDB{},
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
			wantChecks: map[string]string{"database": "healthy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			checker := NewHealthChecker(tt.db, tt.cache, tt.queue)

			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", "/healthz?mode=extended", nil)
			checker.HealthCheck(w, r)

			resp := w.Result()
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}

			var body HealthResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Status != tt.wantHealth {
				t.Errorf("Expected %s, got %s", tt.wantHealth, body.Status)
			}
			for key, want := range tt.wantChecks {
				if body.Checks[key] != want {
					t.Errorf("Expected checks[%s]=%s, got %s", key, want, body.Checks[key])
				}
			}
		})
	}
}
