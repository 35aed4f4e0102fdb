// Package llm holds provider-neutral chat types shared by the LLM clients.
package llm

// Message represents a message in a chat conversation
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// GenerateParams contains sampling parameters for a chat request
type GenerateParams struct {
	Temperature      float64  // Controls randomness (0.0 to 2.0)
	TopP             float64  // Nucleus sampling cutoff
	FrequencyPenalty float64  // Penalize frequent tokens (-2.0 to 2.0)
	PresencePenalty  float64  // Penalize tokens already present (-2.0 to 2.0)
	MaxTokens        int      // Upper bound on generated tokens, 0 for the model default
	StopSequences    []string // Stop generation at these sequences
}

// DefaultGenerateParams returns default generation parameters
func DefaultGenerateParams() *GenerateParams {
	return &GenerateParams{
		Temperature: 0.7,
		TopP:        1.0,
	}
}
