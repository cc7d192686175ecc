package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ai-fitness-coach/internal/config"
	"ai-fitness-coach/internal/shared"

	openai "github.com/sashabaranov/go-openai"
)

const providerGroq = "groq"

// GroqClient talks to Groq's OpenAI-compatible chat completion API.
type GroqClient struct {
	client *openai.Client
	model  string
}

// NewGroqClient creates a new Groq API client.
func NewGroqClient(cfg *config.Config) *GroqClient {
	oc := openai.DefaultConfig(cfg.GroqAPIKey)
	if cfg.GroqBaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.GroqBaseURL, "/")
	}
	return &GroqClient{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.GroqModel,
	}
}

// GenerateStructured sends the prompt pair with a json_schema response format
// and returns the generated JSON text.
func (c *GroqClient) GenerateStructured(ctx context.Context, req StructuredRequest) (ContentResponse, error) {
	if !json.Valid(req.Schema) {
		return ContentResponse{}, &ProviderError{Provider: providerGroq, Err: errors.New("response schema is not valid JSON")}
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	name := req.SchemaName
	if name == "" {
		name = "response"
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxOutputTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			// Strict mode is off: the plan schemas use propertyNames and
			// minItems, which strict structured outputs reject. The plan
			// validator re-checks every response against the full schema.
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: json.RawMessage(req.Schema),
				Strict: false,
			},
		},
	})
	if err != nil {
		return ContentResponse{}, classifyOpenAI(err)
	}

	usage := shared.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		Model:            c.model,
	}
	if len(resp.Choices) == 0 {
		return ContentResponse{Usage: usage}, &ProviderError{Provider: providerGroq, Retryable: true, Err: ErrEmptyResponse}
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		return ContentResponse{Content: choice.Message.Content, Usage: usage}, &ProviderError{Provider: providerGroq, Retryable: true, Err: ErrTruncated}
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return ContentResponse{Usage: usage}, &ProviderError{Provider: providerGroq, Retryable: true, Err: ErrEmptyResponse}
	}

	return ContentResponse{Content: choice.Message.Content, Usage: usage}, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   providerGroq,
			StatusCode: apiErr.HTTPStatusCode,
			Retryable:  RetryableStatus(apiErr.HTTPStatusCode),
			Err:        fmt.Errorf("groq api error: %w", err),
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{
			Provider:   providerGroq,
			StatusCode: reqErr.HTTPStatusCode,
			Retryable:  RetryableStatus(reqErr.HTTPStatusCode),
			Err:        fmt.Errorf("groq request error: %w", err),
		}
	}
	return classifyTransport(providerGroq, fmt.Errorf("failed to send request: %w", err))
}
