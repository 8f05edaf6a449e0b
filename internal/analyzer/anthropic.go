package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicAnalyzer implements Analyzer against the Anthropic Messages API.
// It issues one blocking request per call; streaming is not needed at this
// layer since the orchestrator only consumes the final text.
type AnthropicAnalyzer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// AnthropicConfig configures AnthropicAnalyzer, mirroring the teacher's
// providers.AnthropicConfig shape (API key required, the rest defaulted).
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// NewAnthropicAnalyzer builds an AnthropicAnalyzer. APIKey is required;
// Model defaults to "claude-sonnet-4-20250514" and MaxTokens to 4096.
func NewAnthropicAnalyzer(cfg AnthropicConfig) (*AnthropicAnalyzer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("analyzer: anthropic API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicAnalyzer{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}, nil
}

func (a *AnthropicAnalyzer) Name() string { return "anthropic" }

func (a *AnthropicAnalyzer) Analyze(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Content)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: %s analysis failed: %w", req.Role, err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if text := block.AsText(); text.Text != "" {
			out.WriteString(text.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("anthropic: %s analysis returned no text content", req.Role)
	}
	return out.String(), nil
}
