package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default chat model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the default embedding model to use
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIProvider implements Provider and EmbeddingProvider using OpenAI's API
type OpenAIProvider struct {
	client         openai.Client
	model          string
	embeddingModel string
	logger         *zap.Logger
	debugMode      bool
}

// OpenAIConfig configures an OpenAIProvider
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Logger         *zap.Logger
	DebugMode      bool
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIProvider{
		client:         client,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		logger:         cfg.Logger,
		debugMode:      cfg.DebugMode,
	}
}

// Summarize turns a rendered transcript into a structured session summary
func (p *OpenAIProvider) Summarize(ctx context.Context, transcript string) (*SummaryPayload, error) {
	prompt := renderPrompt(summarizeUserPrompt, map[string]string{
		"transcript": transcript,
	})

	content, err := p.completeJSON(ctx, "summarize", summarizeSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize session: %w", err)
	}

	payload, err := parseSummaryPayload(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse summary response: %w", err)
	}
	return payload, nil
}

// SynthesizeContext produces a context blob for a new query
func (p *OpenAIProvider) SynthesizeContext(ctx context.Context, req ContextRequest) (*ContextPayload, error) {
	prompt := renderPrompt(retrievalUserPrompt, map[string]string{
		"query":    req.Query,
		"profile":  req.ProfileJSON,
		"memories": req.Memories,
		"days":     strconv.Itoa(req.Days),
	})

	content, err := p.completeJSON(ctx, "retrieve_memory", retrievalSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize context: %w", err)
	}

	payload, err := parseContextPayload(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse context response: %w", err)
	}
	return payload, nil
}

// InferPreferences extracts a preference guess plus confidence from a transcript
func (p *OpenAIProvider) InferPreferences(ctx context.Context, transcript string) (*PreferenceInference, error) {
	prompt := renderPrompt(inferenceUserPrompt, map[string]string{
		"transcript": transcript,
	})

	content, err := p.completeJSON(ctx, "infer_preferences", inferenceSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to infer preferences: %w", err)
	}

	inference, err := parsePreferenceInference(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse preference response: %w", err)
	}
	return inference, nil
}

// Embed converts text into a float vector using the embeddings API
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	start := time.Now()
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model: openai.EmbeddingModel(p.embeddingModel),
	})
	latency := time.Since(start)

	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("embedding_api_error",
				zap.String("model", p.embeddingModel),
				zap.Error(err),
				zap.Duration("latency_ms", latency),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("failed to embed text: %w", apiErr)
		}
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding in response")
	}

	if p.logger != nil && p.debugMode {
		p.logger.Debug("embedding_api_response",
			zap.String("model", p.embeddingModel),
			zap.Int("dimensions", len(resp.Data[0].Embedding)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return resp.Data[0].Embedding, nil
}

// completeJSON sends one chat completion requesting a JSON object response and
// returns the raw content of the first choice.
func (p *OpenAIProvider) completeJSON(ctx context.Context, operation, systemPrompt, userPrompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	}
	req := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	requestID := ExtractRequestID(ctx)
	userID := ExtractUserID(ctx)
	sessionID := ExtractSessionID(ctx)

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", operation),
			zap.String("model", p.model),
			zap.Int("prompt_length", len(userPrompt)),
			zap.String("prompt_preview", SanitizePrompt(userPrompt, true)),
			zap.String("user_id", userID),
			zap.String("session_id", sessionID),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("operation", operation),
				zap.String("model", p.model),
				zap.Error(err),
				zap.String("user_id", userID),
				zap.String("session_id", sessionID),
				zap.String("request_id", requestID),
				zap.Duration("latency_ms", latency),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return "", apiErr
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(ErrNoChoicesInResponse)
	}

	content := resp.Choices[0].Message.Content
	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", operation),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.String("user_id", userID),
			zap.String("session_id", sessionID),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return content, nil
}

// extractJSONObject recovers the outermost {...} from a response that wraps
// JSON in prose or code fences.
func extractJSONObject(raw string) string {
	if len(raw) > 0 && raw[0] == '{' {
		return raw
	}
	start := bytes.Index([]byte(raw), []byte("{"))
	end := bytes.LastIndex([]byte(raw), []byte("}"))
	if start != -1 && end != -1 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func parseSummaryPayload(content string) (*SummaryPayload, error) {
	var payload SummaryPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		if err := json.Unmarshal([]byte(extractJSONObject(content)), &payload); err != nil {
			return nil, err
		}
	}
	if payload.CoreTopic == "" {
		return nil, errors.New("summary response missing core_topic")
	}
	for i := range payload.WeakPoints {
		if payload.WeakPoints[i].ConfusionScore < 0 {
			payload.WeakPoints[i].ConfusionScore = 0
		}
		if payload.WeakPoints[i].ConfusionScore > 100 {
			payload.WeakPoints[i].ConfusionScore = 100
		}
	}
	return &payload, nil
}

func parseContextPayload(content string) (*ContextPayload, error) {
	var payload ContextPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		if err := json.Unmarshal([]byte(extractJSONObject(content)), &payload); err != nil {
			return nil, err
		}
	}
	if payload.RelevantMemories == nil {
		payload.RelevantMemories = []any{}
	}
	if payload.FollowUpSuggestions == nil {
		payload.FollowUpSuggestions = []string{}
	}
	return &payload, nil
}

func parsePreferenceInference(content string) (*PreferenceInference, error) {
	raw := extractJSONObject(content)

	var confidence struct {
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &confidence); err != nil {
		return nil, err
	}

	var inference PreferenceInference
	if err := json.Unmarshal([]byte(raw), &inference.Preferences); err != nil {
		return nil, err
	}
	// confidence is metadata, not a preference key
	delete(inference.Preferences.Extra, "confidence")
	inference.Confidence = confidence.Confidence
	return &inference, nil
}
