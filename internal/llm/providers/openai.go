// Package providers holds the HTTP adapters for LLM endpoints. The Copilot
// proxy, and most self-hosted gateways, speak the OpenAI chat-completions
// protocol, so one adapter serves them all.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ahrav/go-conclave/internal/llm/configuration"
	"github.com/ahrav/go-conclave/internal/llm/transport"
)

// maxResponseBytes caps how much of a reply body is read.
const maxResponseBytes = 4 << 20

// OpenAIAdapter implements transport.ProviderAdapter for OpenAI-compatible
// chat/completions endpoints.
type OpenAIAdapter struct {
	config configuration.ProviderConfig
}

// NewOpenAIAdapter creates an adapter for the endpoint in cfg.
func NewOpenAIAdapter(cfg configuration.ProviderConfig) *OpenAIAdapter {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAIAdapter{config: cfg}
}

// Name returns the configured provider name.
func (a *OpenAIAdapter) Name() string {
	return a.config.Name
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

// Build constructs the chat/completions request.
func (a *OpenAIAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := a.config.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	}
	return httpReq, nil
}

// Parse extracts the first choice and the usage block.
func (a *OpenAIAdapter) Parse(httpResp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(a.config.Name, httpResp, body)
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformedResponse(a.config.Name, fmt.Sprintf("decode body: %v", err))
	}
	if len(resp.Choices) == 0 {
		return nil, malformedResponse(a.config.Name, "response has no choices")
	}

	requestID := httpResp.Header.Get("x-request-id")
	if requestID == "" {
		requestID = resp.ID
	}

	return &transport.Response{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: resp.Choices[0].FinishReason,
		RequestID:    requestID,
		Usage: transport.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
