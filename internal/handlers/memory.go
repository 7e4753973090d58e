package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tutorgrid/memory-api/internal/database"
	"github.com/tutorgrid/memory-api/internal/memory"
	"github.com/tutorgrid/memory-api/internal/models"
	"github.com/tutorgrid/memory-api/internal/validation"
)

const (
	// MaxConsolidateTurns bounds the conversation window accepted per request
	MaxConsolidateTurns = 500
	// MaxSessionListLimit bounds the sessions list page size
	MaxSessionListLimit = 100
)

// MemoryEngine is the engine surface the HTTP layer depends on
type MemoryEngine interface {
	Consolidate(ctx context.Context, req memory.ConsolidateRequest) (*memory.ConsolidateResult, error)
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	UpdatePreferences(ctx context.Context, userID string, delta models.Preferences) (*models.UserProfile, error)
	InferPreferences(ctx context.Context, userID string, turns []models.Message) (*memory.InferenceResult, error)
	GetContext(ctx context.Context, q memory.ContextQuery) (*memory.ContextResult, error)
	GetSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error)
	ListSessions(ctx context.Context, userID string, days, limit int) ([]*models.SessionSummary, error)
	GetStats(ctx context.Context, userID string) (*memory.LearningStats, error)
}

var _ MemoryEngine = (*memory.Engine)(nil)

// MemoryHandler handles consolidation and retrieval requests
type MemoryHandler struct {
	engine MemoryEngine
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(engine MemoryEngine) *MemoryHandler {
	return &MemoryHandler{engine: engine}
}

// RegisterRoutes registers memory routes on the given router.
// The router should already carry the /memory prefix.
func (h *MemoryHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/consolidate", h.Consolidate).Methods("POST")
	r.HandleFunc("/users/{user_id}/profile", h.GetProfile).Methods("GET")
	r.HandleFunc("/users/{user_id}/preferences", h.UpdatePreferences).Methods("PATCH")
	r.HandleFunc("/users/{user_id}/preferences/infer", h.InferPreferences).Methods("POST")
	r.HandleFunc("/users/{user_id}/context", h.GetContext).Methods("GET")
	r.HandleFunc("/users/{user_id}/sessions", h.ListSessions).Methods("GET")
	r.HandleFunc("/users/{user_id}/stats", h.GetStats).Methods("GET")
	r.HandleFunc("/sessions/{session_id}", h.GetSummary).Methods("GET")
}

// ConsolidateRequest represents a consolidation request
type ConsolidateRequest struct {
	UserID    string           `json:"user_id" validate:"required,max=64"`
	SessionID string           `json:"session_id" validate:"required,max=128"`
	Messages  []models.Message `json:"messages"`
	Force     bool             `json:"force"`
}

// Consolidate runs the consolidation pipeline for a session window
func (h *MemoryHandler) Consolidate(w http.ResponseWriter, r *http.Request) {
	var req ConsolidateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := validation.ValidateUserID(req.UserID); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := validation.ValidateSessionID(req.SessionID); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if len(req.Messages) > MaxConsolidateTurns {
		respondJSONError(w, http.StatusBadRequest, "Bad Request",
			fmt.Sprintf("messages exceeds maximum of %d turns", MaxConsolidateTurns))
		return
	}
	for _, m := range req.Messages {
		if err := validation.ValidateMessageRole(m.Role); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
	}

	result, err := h.engine.Consolidate(r.Context(), memory.ConsolidateRequest{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Turns:     req.Messages,
		Force:     req.Force,
	})
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to consolidate session")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetProfile returns the user's profile, creating it on first access
func (h *MemoryHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.engine.GetProfile(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load profile")
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// UpdatePreferencesRequest is a partial preference update. Unknown keys are
// accepted and stored alongside the typed ones.
type UpdatePreferencesRequest struct {
	Preferences models.Preferences `json:"preferences"`
}

// UpdatePreferences applies an explicit preference delta
func (h *MemoryHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req UpdatePreferencesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Preferences.LearningStyle != nil {
		if err := validation.ValidateLearningStyle(string(*req.Preferences.LearningStyle)); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
	}
	if req.Preferences.DifficultyPreference != nil {
		if err := validation.ValidateDifficulty(string(*req.Preferences.DifficultyPreference)); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
	}
	if req.Preferences.ResponseFormat != nil {
		if err := validation.ValidateResponseFormat(string(*req.Preferences.ResponseFormat)); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
	}
	if req.Preferences.IsEmpty() {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "No preference keys provided")
		return
	}

	profile, err := h.engine.UpdatePreferences(r.Context(), userID, req.Preferences)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update preferences")
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// InferPreferencesRequest carries the conversation to infer preferences from
type InferPreferencesRequest struct {
	Messages []models.Message `json:"messages" validate:"required"`
}

// InferPreferences asks the model for a preference guess and applies it only
// above the confidence floor
func (h *MemoryHandler) InferPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req InferPreferencesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "messages is required")
		return
	}

	result, err := h.engine.InferPreferences(r.Context(), userID, req.Messages)
	if err != nil {
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Preference inference failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetContext assembles retrieval context for a query
func (h *MemoryHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	q := memory.ContextQuery{
		UserID:  userID,
		Query:   r.URL.Query().Get("query"),
		Subject: r.URL.Query().Get("subject"),
		Topic:   r.URL.Query().Get("topic"),
	}
	if d := r.URL.Query().Get("days"); d != "" {
		if parsed, err := strconv.Atoi(d); err == nil && parsed > 0 {
			q.Days = parsed
		}
	}

	result, err := h.engine.GetContext(r.Context(), q)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to assemble context")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ListSessionsResponse wraps the session list
type ListSessionsResponse struct {
	Sessions []*models.SessionSummary `json:"sessions"`
	Count    int                      `json:"count"`
}

// ListSessions returns the user's recent session summaries
func (h *MemoryHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	days := 0
	if d := r.URL.Query().Get("days"); d != "" {
		if parsed, err := strconv.Atoi(d); err == nil && parsed > 0 {
			days = parsed
		}
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			if parsed > MaxSessionListLimit {
				limit = MaxSessionListLimit
			} else {
				limit = parsed
			}
		}
	}

	sessions, err := h.engine.ListSessions(r.Context(), userID, days, limit)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*models.SessionSummary{}
	}

	respondJSON(w, http.StatusOK, ListSessionsResponse{Sessions: sessions, Count: len(sessions)})
}

// GetStats returns derived learning statistics for the user
func (h *MemoryHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.engine.GetStats(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to compute stats")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// GetSummary returns the stored summary for a single session
func (h *MemoryHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	if err := validation.ValidateSessionID(sessionID); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	summary, err := h.engine.GetSummary(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, database.ErrSummaryNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "No summary for this session")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load summary")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// pathUserID extracts and validates the user_id path variable
func pathUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := mux.Vars(r)["user_id"]
	if err := validation.ValidateUserID(userID); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return "", false
	}
	return userID, true
}

// decodeBody decodes a JSON body, writing the error response on failure
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		// Check if error is due to request size limit
		if maxBytesErr, ok := err.(*http.MaxBytesError); ok {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return false
	}
	return true
}
