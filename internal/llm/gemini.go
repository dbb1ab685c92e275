package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.30
	geminiOutputPricePerMillion = 2.50 // Including thinking tokens
)

// GeminiGenerator uses Google's Gemini API to generate text.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini-based generator authenticated with apiKey.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Model returns the model name used for generation.
func (g *GeminiGenerator) Model() string {
	return g.model
}

// GenerateText implements TextGenerator.
func (g *GeminiGenerator) GenerateText(ctx context.Context, prompt string) (*GenerationResult, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	out := newGeminiResult(g.model, result)
	log.Info().
		Str("model", g.model).
		Int64("inputTokens", out.Usage.InputTokens).
		Int64("outputTokens", out.Usage.OutputTokens).
		Float64("costUSD", out.Usage.CostUSD).
		Bool("empty", out.Text == "").
		Msg("description generation llm call")

	return out, nil
}

// newGeminiResult converts a response. A response without candidates, as
// returned when output is blocked, yields empty text rather than an error.
// The text is returned as the model wrote it.
func newGeminiResult(model string, resp *genai.GenerateContentResponse) *GenerationResult {
	out := &GenerationResult{Model: model}
	if resp == nil {
		return out
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		out.Text = resp.Text()
	}

	if resp.UsageMetadata != nil {
		out.Usage.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.Usage.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
		out.Usage.TotalTokens = int64(resp.UsageMetadata.TotalTokenCount)
		out.Usage.CostUSD = calculateGeminiCost(out.Usage.InputTokens, out.Usage.OutputTokens, geminiInputPricePerMillion, geminiOutputPricePerMillion)
	}
	return out
}

func calculateGeminiCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}
