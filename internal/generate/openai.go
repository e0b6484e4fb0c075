package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	openAIBaseURL      = "https://api.openai.com/v1"
	openAIDefaultModel = "gpt-5"
	maxCompletionToks  = 8192
)

// OpenAIOpts configures an OpenAI chat completions client.
type OpenAIOpts struct {
	APIKey     string
	Model      string
	BaseURL    string
	Limiter    *rate.Limiter
	HTTPClient *http.Client
}

// OpenAI generates code through the chat completions API in JSON mode.
type OpenAI struct {
	apiKey     string
	model      string
	baseURL    string
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewOpenAI creates an OpenAI generator, filling in defaults.
func NewOpenAI(opts OpenAIOpts) *OpenAI {
	if opts.Model == "" {
		opts.Model = openAIDefaultModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = openAIBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &OpenAI{
		apiKey:     opts.APIKey,
		model:      opts.Model,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		limiter:    opts.Limiter,
		httpClient: opts.HTTPClient,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string         `json:"model"`
	Messages            []chatMessage  `json:"messages"`
	ResponseFormat      map[string]any `json:"response_format"`
	MaxCompletionTokens int            `json:"max_completion_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements Generator.
func (o *OpenAI) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := wait(ctx, o.limiter); err != nil {
		return nil, fmt.Errorf("generate: openai: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: BuildPrompt(req)},
		},
		ResponseFormat:      map[string]any{"type": "json_object"},
		MaxCompletionTokens: maxCompletionToks,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("generate: openai: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generate: openai: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("generate: openai: read response: %w", err)
	}
	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("generate: openai: status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("generate: openai: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return nil, fmt.Errorf("generate: openai: status %d: %s", resp.StatusCode, msg)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("generate: openai: %w: no choices", ErrMalformedOutput)
	}

	result, err := parseReply(out.Choices[0].Message.Content, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("generate: openai: %w", err)
	}
	return result, nil
}
