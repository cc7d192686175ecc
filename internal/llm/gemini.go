package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-fitness-coach/internal/config"
	"ai-fitness-coach/internal/shared"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const providerGemini = "gemini"

// GeminiClient is a client for the Google Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a new Gemini API client.
func NewGeminiClient(ctx context.Context, cfg *config.Config) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.GeminiModel}, nil
}

// GenerateStructured sends the prompt pair with a JSON response schema and
// returns the generated JSON text.
func (c *GeminiClient) GenerateStructured(ctx context.Context, req StructuredRequest) (ContentResponse, error) {
	schema, err := GeminiSchema(req.Schema)
	if err != nil {
		return ContentResponse{}, &ProviderError{Provider: providerGemini, Err: err}
	}

	// A model handle carries per-request settings, so each call gets its own.
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(req.Temperature)
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	}
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = schema
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return ContentResponse{}, &ProviderError{Provider: providerGemini, Err: err}
		}
		return ContentResponse{}, classifyTransport(providerGemini, fmt.Errorf("failed to generate content: %w", err))
	}

	usage := shared.TokenUsage{Model: c.model}
	if md := resp.UsageMetadata; md != nil {
		usage.PromptTokens = int(md.PromptTokenCount)
		usage.CompletionTokens = int(md.CandidatesTokenCount)
		usage.TotalTokens = int(md.TotalTokenCount)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ContentResponse{Usage: usage}, &ProviderError{Provider: providerGemini, Retryable: true, Err: ErrEmptyResponse}
	}
	cand := resp.Candidates[0]

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	content := sb.String()

	if cand.FinishReason == genai.FinishReasonMaxTokens {
		return ContentResponse{Content: content, Usage: usage}, &ProviderError{Provider: providerGemini, Retryable: true, Err: ErrTruncated}
	}
	if strings.TrimSpace(content) == "" {
		return ContentResponse{Usage: usage}, &ProviderError{Provider: providerGemini, Retryable: true, Err: ErrEmptyResponse}
	}

	return ContentResponse{Content: content, Usage: usage}, nil
}

// Close closes the underlying Gemini client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}
