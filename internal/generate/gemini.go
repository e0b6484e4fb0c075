package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel = "gemini-2.5-flash"
)

// GeminiOpts configures a Gemini generateContent client.
type GeminiOpts struct {
	APIKey     string
	Model      string
	BaseURL    string
	Limiter    *rate.Limiter
	HTTPClient *http.Client
}

// Gemini generates code through the generateContent REST endpoint. Gemini
// may wrap the JSON object in prose or fences, so the reply is extracted
// before decoding.
type Gemini struct {
	apiKey     string
	model      string
	baseURL    string
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewGemini creates a Gemini generator, filling in defaults.
func NewGemini(opts GeminiOpts) *Gemini {
	if opts.Model == "" {
		opts.Model = geminiDefaultModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = geminiBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Gemini{
		apiKey:     opts.APIKey,
		model:      opts.Model,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		limiter:    opts.Limiter,
		httpClient: opts.HTTPClient,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := wait(ctx, g.limiter); err != nil {
		return nil, fmt.Errorf("generate: gemini: %w", err)
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: BuildPrompt(req)}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("generate: gemini: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("generate: gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		// The URL carries the key; drop it from the error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("generate: gemini: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("generate: gemini: read response: %w", err)
	}
	var out geminiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("generate: gemini: status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("generate: gemini: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return nil, fmt.Errorf("generate: gemini: status %d: %s", resp.StatusCode, msg)
	}

	var text strings.Builder
	for _, c := range out.Candidates {
		for _, p := range c.Content.Parts {
			text.WriteString(p.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("generate: gemini: %w: no candidates", ErrMalformedOutput)
	}

	result, err := parseReply(text.String(), req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("generate: gemini: %w", err)
	}
	return result, nil
}
