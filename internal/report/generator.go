package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"google.golang.org/genai"
)

// Default models per provider, used when REPORT_MODEL is unset.
const (
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultAnthropicModel = string(anthropic.ModelClaudeSonnet4_20250514)
)

// ErrEmptyReport is returned when the model answers with no text.
var ErrEmptyReport = errors.New("model returned an empty report")

// Generator turns a prompt into report text using a generative model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiModels is the subset of *genai.Models used by the Gemini generator.
type GeminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type geminiGenerator struct {
	models    GeminiModels
	model     string
	maxTokens int32
}

// NewGeminiGenerator creates a Generator backed by the Gemini API.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, maxTokens int) (Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return newGeminiGenerator(client.Models, model, maxTokens), nil
}

func newGeminiGenerator(models GeminiModels, model string, maxTokens int) *geminiGenerator {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &geminiGenerator{models: models, model: model, maxTokens: int32(maxTokens)}
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		MaxOutputTokens:   g.maxTokens,
		Temperature:       genai.Ptr[float32](0.3),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyReport
	}
	return text, nil
}

// AnthropicMessager is the subset of the Anthropic messages service used here.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type anthropicGenerator struct {
	messages  AnthropicMessager
	model     string
	maxTokens int64
}

// NewAnthropicGenerator creates a Generator backed by the Anthropic messages API.
func NewAnthropicGenerator(apiKey, model string, maxTokens int) (Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newAnthropicGenerator(&c.Messages, model, maxTokens), nil
}

func newAnthropicGenerator(messages AnthropicMessager, model string, maxTokens int) *anthropicGenerator {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &anthropicGenerator{messages: messages, model: model, maxTokens: int64(maxTokens)}
}

func (a *anthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic generate failed: %w", err)
	}

	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyReport
	}
	return text, nil
}
