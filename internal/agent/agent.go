package agent

import (
	"context"
	"fmt"
	"os"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"

	"districtfinder/internal/nces"
)

const (
	defaultModel        = "claude-haiku-4-5"
	defaultSystemPrompt = "You are a helpful assistant for finding US public school districts and their schools. You have tools that search districts by name and list the schools in a district using NCES Common Core of Data. Use them to give accurate, data-backed answers and cite LEAIDs and NCES school ids where useful."
)

// AgentConfig holds the configuration for creating an ask agent
type AgentConfig struct {
	apiKey       string
	model        string
	systemPrompt string
	service      nces.Service
}

// AgentOption is a functional option for configuring the agent
type AgentOption func(*AgentConfig) error

// WithAPIKey sets the Anthropic API key
func WithAPIKey(apiKey string) AgentOption {
	return func(c *AgentConfig) error {
		if apiKey == "" {
			return fmt.Errorf("API key cannot be empty")
		}
		c.apiKey = apiKey
		return nil
	}
}

// WithAPIKeyFromEnv sets the API key from the ANTHROPIC_API_KEY environment variable
func WithAPIKeyFromEnv() AgentOption {
	return func(c *AgentConfig) error {
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
		c.apiKey = apiKey
		return nil
	}
}

// WithModel sets the Claude model to use (default: claude-haiku-4-5)
func WithModel(model string) AgentOption {
	return func(c *AgentConfig) error {
		if model == "" {
			return fmt.Errorf("model cannot be empty")
		}
		c.model = model
		return nil
	}
}

// WithSystemPrompt sets a custom system prompt
func WithSystemPrompt(prompt string) AgentOption {
	return func(c *AgentConfig) error {
		c.systemPrompt = prompt
		return nil
	}
}

// WithService sets the lookup service the tools query
func WithService(svc nces.Service) AgentOption {
	return func(c *AgentConfig) error {
		if svc == nil {
			return fmt.Errorf("service cannot be nil")
		}
		c.service = svc
		return nil
	}
}

func newConfig(opts ...AgentOption) (*AgentConfig, error) {
	config := &AgentConfig{
		model:        defaultModel,
		systemPrompt: defaultSystemPrompt,
	}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if config.apiKey == "" {
		return nil, fmt.Errorf("API key is required (use WithAPIKey or WithAPIKeyFromEnv)")
	}
	if config.service == nil {
		return nil, fmt.Errorf("lookup service is required (use WithService)")
	}
	return config, nil
}

// NewAskAgent creates a Fantasy agent that answers district and school
// questions with the search_districts and list_schools tools.
func NewAskAgent(ctx context.Context, opts ...AgentOption) (fantasy.Agent, error) {
	config, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	provider, err := anthropic.New(anthropic.WithAPIKey(config.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
	}

	model, err := provider.LanguageModel(ctx, config.model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Claude model: %w", err)
	}

	return fantasy.NewAgent(
		model,
		fantasy.WithSystemPrompt(config.systemPrompt),
		fantasy.WithTools(NewTools(config.service)...),
	), nil
}

// GenerateResponse is a convenience function that creates an agent and generates a response in one call
func GenerateResponse(ctx context.Context, question string, opts ...AgentOption) (string, error) {
	agent, err := NewAskAgent(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create agent: %w", err)
	}

	result, err := agent.Generate(ctx, fantasy.AgentCall{Prompt: question})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	return result.Response.Content.Text(), nil
}
