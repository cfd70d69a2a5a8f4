// Package vision provides the vision-model adapter for table extraction
// from page images, built on langchaingo.
package vision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/licitia/atesta/internal/config"
	"github.com/licitia/atesta/internal/models"
)

// Provider wraps a multimodal langchaingo model. It satisfies the
// extraction pipeline's VisionProvider interface.
type Provider struct {
	llm       llms.Model
	modelName string
}

// NewProvider creates a vision provider based on configuration.
func NewProvider(cfg config.Config) (*Provider, error) {
	var model llms.Model
	var err error

	switch cfg.VisionProvider {
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.VisionModel)}
		if cfg.VisionBaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.VisionBaseURL))
		}
		model, err = ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.VisionModel),
		}
		if cfg.VisionBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.VisionBaseURL))
		}
		model, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.VisionModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, awsErr := awsconfig.LoadDefaultConfig(context.Background())
		if awsErr != nil {
			return nil, fmt.Errorf("load aws config: %w", awsErr)
		}
		model, err = bedrock.New(
			bedrock.WithModel(cfg.VisionModel),
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported vision provider: %s", cfg.VisionProvider)
	}

	return &Provider{llm: model, modelName: cfg.VisionModel}, nil
}

// ExtractTable sends page images with a prompt and parses the rows the
// model returns.
func (p *Provider) ExtractTable(ctx context.Context, images [][]byte, prompt string) ([]models.VisionRow, error) {
	parts := make([]llms.ContentPart, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, llms.BinaryPart(imageMIME(img), img))
	}
	parts = append(parts, llms.TextPart(prompt))
	messages := []llms.MessageContent{{Role: llms.ChatMessageTypeHuman, Parts: parts}}

	slog.Debug("vision extraction", "model", p.modelName, "images", len(images))
	start := time.Now()
	response, err := p.llm.GenerateContent(ctx, messages)
	duration := time.Since(start)
	if err != nil {
		slog.Warn("vision extraction failed", "model", p.modelName, "images", len(images), "duration_ms", duration.Milliseconds(), "error", err)
		return nil, wrapFatalError(fmt.Errorf("generate: %w", err))
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}

	rows, err := parseRows(response.Choices[0].Content)
	if err != nil {
		return nil, fmt.Errorf("parse rows: %w", err)
	}
	slog.Debug("vision extraction complete", "model", p.modelName, "rows", len(rows), "duration_ms", duration.Milliseconds())
	return rows, nil
}

// TablePrompt is the standard worksheet extraction prompt.
func (p *Provider) TablePrompt() string { return tablePrompt }

// EscalationPrompt is the strict retry prompt used when every strategy
// failed.
func (p *Provider) EscalationPrompt() string { return escalationPrompt }

// Model returns the vision model name.
func (p *Provider) Model() string { return p.modelName }

func imageMIME(img []byte) string {
	if len(img) >= 3 && img[0] == 0xff && img[1] == 0xd8 {
		return "image/jpeg"
	}
	return "image/png"
}
