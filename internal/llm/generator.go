package llm

import "context"

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// GenerationResult is the text produced for one prompt.
type GenerationResult struct {
	Text   string
	Model  string
	Usage  Usage
	Cached bool // Served from the generation cache, no service call was made
}

// TextGenerator sends a single prompt to a hosted text-generation service.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (*GenerationResult, error)
}

// Describer writes ad copy for a car listing. Implementations never fail:
// every error path yields a user-facing fallback text instead.
type Describer interface {
	Generate(ctx context.Context, carName, priceText, features string) string
}
