// Package llm implements the qa capability interfaces on top of an
// OpenAI-compatible chat completions API. Any backend that speaks the
// protocol works (OpenAI, Together, a local llama.cpp server) by pointing
// BaseURL at it.
package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dusk-indust/toqcheck/internal/qa"
	openai "github.com/sashabaranov/go-openai"
)

const answerSystemPrompt = "You are a concise factual question-answering assistant. " +
	"Answer the user's question with a short phrase or a few words. " +
	"Do not explain your reasoning. Do not use full sentences unless necessary."

// thinkRe matches <think>...</think> blocks emitted by reasoning models.
var thinkRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Config selects the backend and the sampling behavior shared by all three
// capabilities.
type Config struct {
	// Model is the backend's model identifier.
	Model string

	// APIKey authenticates against the backend. Local servers usually
	// accept any non-empty value.
	APIKey string

	// BaseURL overrides the API endpoint, e.g. "http://localhost:8080/v1".
	// Empty means the OpenAI default.
	BaseURL string

	// MaxTokens caps each completion. Zero means 64, enough for factoid
	// answers and single collapsed questions.
	MaxTokens int

	// Temperature defaults to 0 for reproducible runs.
	Temperature float32
}

// Client answers, collapses, and decomposes questions through one chat
// completions backend.
type Client struct {
	api *openai.Client
	cfg Config
}

var (
	_ qa.Answerer   = (*Client)(nil)
	_ qa.Collapser  = (*Client)(nil)
	_ qa.Decomposer = (*Client)(nil)
)

// NewClient validates cfg and builds a client. Model and APIKey are
// required; everything else has workable defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 64
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	return &Client{api: openai.NewClientWithConfig(apiCfg), cfg: cfg}, nil
}

// Answer asks the model for a concise factoid answer. The reply is trimmed,
// stripped of reasoning blocks, and carries the model id and token usage in
// Meta.
func (c *Client) Answer(ctx context.Context, question, contextText string) (qa.Answer, error) {
	user := question
	if contextText != "" {
		user = "Context: " + contextText + "\n\n" + question
	}

	text, usage, err := c.chat(ctx, answerSystemPrompt, user, c.cfg.MaxTokens)
	if err != nil {
		return qa.Answer{}, fmt.Errorf("llm: answer: %w", err)
	}

	return qa.Answer{
		Text: StripThink(text),
		Meta: map[string]any{
			"model": c.cfg.Model,
			"usage": map[string]any{
				"prompt_tokens":     usage.PromptTokens,
				"completion_tokens": usage.CompletionTokens,
			},
		},
	}, nil
}

// chat sends one system+user exchange and returns the first choice.
func (c *Client) chat(ctx context.Context, system, user string, maxTokens int) (string, openai.Usage, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", openai.Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", openai.Usage{}, fmt.Errorf("backend returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), resp.Usage, nil
}

// StripThink removes <think>...</think> reasoning blocks and trims the
// remainder.
func StripThink(text string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(text, ""))
}
