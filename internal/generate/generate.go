// Package generate turns a natural-language prompt into game script code by
// calling an external model provider.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/zulandar/hideout/internal/config"
	"github.com/zulandar/hideout/internal/models"
	"golang.org/x/time/rate"
)

// ErrMalformedOutput is returned when the provider answers but the answer
// cannot be used: no code, or a classification outside the known set.
var ErrMalformedOutput = errors.New("generate: malformed output")

// Request is a single generation call.
type Request struct {
	Prompt      string
	ProjectType string
}

// Result is validated provider output.
type Result struct {
	Code        string `json:"code"`
	CommandType string `json:"commandType"`
}

// Generator produces code for a prompt. Implementations must honor ctx
// cancellation; the caller bounds every call with a timeout.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// New builds the Generator selected by cfg.Provider. apiKey is ignored by
// the demo provider.
func New(cfg config.GenerationConfig, apiKey string) (Generator, error) {
	limiter := newLimiter(cfg.RatePerSec, cfg.Burst)
	switch cfg.Provider {
	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("generate: openai: api key is required (set %s)", cfg.APIKeyEnv)
		}
		return NewOpenAI(OpenAIOpts{APIKey: apiKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Limiter: limiter}), nil
	case "gemini":
		if apiKey == "" {
			return nil, fmt.Errorf("generate: gemini: api key is required (set %s)", cfg.APIKeyEnv)
		}
		return NewGemini(GeminiOpts{APIKey: apiKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Limiter: limiter}), nil
	case "demo", "":
		return Demo{}, nil
	default:
		return nil, fmt.Errorf("generate: unknown provider %q", cfg.Provider)
	}
}

func newLimiter(perSec float64, burst int) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// reply is the JSON object the prompt asks the model to return.
type reply struct {
	Code        string `json:"code"`
	CommandType string `json:"commandType"`
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// parseReply extracts the first-to-last brace span from text, decodes it and
// validates the result. A missing classification falls back to Classify.
func parseReply(text, prompt string) (*Result, error) {
	raw := jsonObject.FindString(text)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrMalformedOutput)
	}
	var r reply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return validate(r, prompt)
}

func validate(r reply, prompt string) (*Result, error) {
	if strings.TrimSpace(r.Code) == "" {
		return nil, fmt.Errorf("%w: empty code", ErrMalformedOutput)
	}
	ct := strings.ToLower(strings.TrimSpace(r.CommandType))
	if ct == "" {
		ct = Classify(prompt)
	}
	if !models.IsCommandType(ct) {
		return nil, fmt.Errorf("%w: unknown command type %q", ErrMalformedOutput, r.CommandType)
	}
	return &Result{Code: r.Code, CommandType: ct}, nil
}

// Func adapts a plain function to the Generator interface.
type Func func(ctx context.Context, req Request) (*Result, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
