package interfaces

import "context"

// LLM represents a large language model provider
type LLM interface {
	// Generate generates text based on the provided prompt
	Generate(ctx context.Context, prompt string, options ...GenerateOption) (string, error)

	// GenerateWithTools generates text and can use tools
	GenerateWithTools(ctx context.Context, prompt string, tools []Tool, options ...GenerateOption) (string, error)

	// Name returns the name of the LLM provider
	Name() string
}

// GenerateOption represents options for text generation
type GenerateOption func(options *GenerateOptions)

// GenerateOptions contains configuration for text generation
type GenerateOptions struct {
	Model         string     // Model override for this call
	LLMConfig     *LLMConfig // LLM config for the generation
	SystemMessage string     // System message for chat models
}

type LLMConfig struct {
	Temperature      float64  // Temperature for the generation
	TopP             float64  // Top P for the generation
	FrequencyPenalty float64  // Frequency penalty for the generation
	PresencePenalty  float64  // Presence penalty for the generation
	MaxTokens        int      // Upper bound on generated tokens
	StopSequences    []string // Stop sequences for the generation
}

// ApplyGenerateOptions folds options into a fresh GenerateOptions
func ApplyGenerateOptions(options ...GenerateOption) GenerateOptions {
	var o GenerateOptions
	for _, opt := range options {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithModel selects the model for one call
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithSystemMessage sets the system message
func WithSystemMessage(message string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemMessage = message
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(temperature float64) GenerateOption {
	return func(o *GenerateOptions) {
		if o.LLMConfig == nil {
			o.LLMConfig = &LLMConfig{}
		}
		o.LLMConfig.Temperature = temperature
	}
}

// WithMaxTokens bounds the number of generated tokens
func WithMaxTokens(maxTokens int) GenerateOption {
	return func(o *GenerateOptions) {
		if o.LLMConfig == nil {
			o.LLMConfig = &LLMConfig{}
		}
		o.LLMConfig.MaxTokens = maxTokens
	}
}

// WithStopSequences sets the stop sequences
func WithStopSequences(stop ...string) GenerateOption {
	return func(o *GenerateOptions) {
		if o.LLMConfig == nil {
			o.LLMConfig = &LLMConfig{}
		}
		o.LLMConfig.StopSequences = stop
	}
}
