package reasoner

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Config configures the langchaingo-backed Reasoner. It follows the same
// BaseURL/Model/APIKey shape contextd's embeddings.Config uses, since
// openai.New accepts any OpenAI-compatible endpoint (a local vLLM/Ollama
// gateway as well as the real OpenAI API).
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
}

func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("reasoner: model required")
	}
	return nil
}

// LangchainReasoner adapts a langchaingo chat model to the Reasoner
// contract.
type LangchainReasoner struct {
	llm         llms.Model
	maxTokens   int
	temperature float64
}

// NewLangchainReasoner constructs a LangchainReasoner against an
// OpenAI-compatible endpoint.
func NewLangchainReasoner(cfg Config) (*LangchainReasoner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("reasoner: creating openai client: %w", err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	return &LangchainReasoner{llm: llm, maxTokens: maxTokens, temperature: cfg.Temperature}, nil
}

// Complete sends prompt as a single user message and returns the model's
// text completion.
func (r *LangchainReasoner) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, r.llm, prompt,
		llms.WithMaxTokens(r.maxTokens),
		llms.WithTemperature(r.temperature),
	)
	if err != nil {
		return "", fmt.Errorf("reasoner: generate: %w", err)
	}
	return text, nil
}
