// Package genai provides GenAI-enhanced operations using the OpenAI API.
//
// It wraps chat completions behind a small interface so the dialogue engine
// can be tested with a mock backend and so a generation failure can be
// classified and recovered locally.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/duetloop/duetloop/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default generation parameters.
const (
	DefaultModel               = openai.ChatModelGPT4oMini
	DefaultTemperature         = 0.9
	DefaultMaxCompletionTokens = 400
	// DefaultDirPermissions defines the permissions for debug directories.
	DefaultDirPermissions = 0755
)

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// apiChatService adapts the OpenAI SDK chat completion service to chatService.
type apiChatService struct {
	completions openai.ChatCompletionService
}

func (s *apiChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey              string
	Model               openai.ChatModel
	Temperature         float64
	MaxCompletionTokens int64
	DebugDir            string
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key (overrides $OPENAI_API_KEY).
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model used for generation.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = openai.ChatModel(model) }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) Option {
	return func(o *Opts) { o.Temperature = temperature }
}

// WithMaxCompletionTokens caps the completion length.
func WithMaxCompletionTokens(maxTokens int64) Option {
	return func(o *Opts) { o.MaxCompletionTokens = maxTokens }
}

// WithDebugDir enables debug persistence of request/response pairs under the
// given directory.
func WithDebugDir(dir string) Option {
	return func(o *Opts) { o.DebugDir = dir }
}

// Client wraps the OpenAI ChatCompletion service for generating dialogue turns.
type Client struct {
	chat                chatService
	model               openai.ChatModel
	temperature         float64
	maxCompletionTokens int64
	debugDir            string
}

// NewClient initializes a new GenAI client. The API key is taken from options
// or the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:               DefaultModel,
		Temperature:         DefaultTemperature,
		MaxCompletionTokens: DefaultMaxCompletionTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	cli := openai.NewClient(option.WithAPIKey(apiKey))
	slog.Debug("genai.NewClient: client initialized", "model", cfg.Model, "temperature", cfg.Temperature, "debug_enabled", cfg.DebugDir != "")
	return &Client{
		chat:                &apiChatService{completions: cli.Chat.Completions},
		model:               cfg.Model,
		temperature:         cfg.Temperature,
		maxCompletionTokens: cfg.MaxCompletionTokens,
		debugDir:            cfg.DebugDir,
	}, nil
}

// GeneratePromptWithContext generates a response from a system prompt and a
// user prompt. Any backend or response-shape error is reported as
// models.ErrGenerationFailed so callers can substitute a fallback.
func (c *Client) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	})
}

// GenerateWithMessages generates a response from a prepared message list.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            messages,
		Temperature:         openai.Float(c.temperature),
		MaxCompletionTokens: openai.Int(c.maxCompletionTokens),
	}

	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Warn("Client.GenerateWithMessages: chat completion failed", "error", err, "model", c.model)
		return "", fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("Client.GenerateWithMessages: no choices returned", "model", c.model)
		return "", fmt.Errorf("%w: no choices returned", models.ErrGenerationFailed)
	}

	content := resp.Choices[0].Message.Content
	c.logAPICall(params, resp)
	return content, nil
}

// debugRecord is the JSON document persisted per API call in debug mode.
type debugRecord struct {
	Timestamp time.Time                      `json:"timestamp"`
	Request   openai.ChatCompletionNewParams `json:"request"`
	Response  openai.ChatCompletion          `json:"response"`
}

// logAPICall persists the request/response pair when debug mode is enabled.
// Persistence is best-effort and off the generation path.
func (c *Client) logAPICall(params openai.ChatCompletionNewParams, resp openai.ChatCompletion) {
	if c.debugDir == "" {
		return
	}
	record := debugRecord{Timestamp: time.Now(), Request: params, Response: resp}
	go func() {
		dir := filepath.Join(c.debugDir, "debug")
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			slog.Warn("Client.logAPICall: failed to create debug directory", "error", err, "dir", dir)
			return
		}
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			slog.Warn("Client.logAPICall: failed to marshal debug record", "error", err)
			return
		}
		path := filepath.Join(dir, fmt.Sprintf("genai_%d.json", record.Timestamp.UnixNano()))
		if err := os.WriteFile(path, data, 0644); err != nil {
			slog.Warn("Client.logAPICall: failed to write debug record", "error", err, "path", path)
		}
	}()
}
