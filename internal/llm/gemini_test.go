package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNewGeminiGenerator_DefaultModel(t *testing.T) {
	g, err := NewGeminiGenerator(context.Background(), "test-key", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultGeminiModel, g.Model())

	g, err = NewGeminiGenerator(context.Background(), "test-key", "gemini-2.5-pro")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", g.Model())

	_, err = NewGeminiGenerator(context.Background(), "", "")
	assert.Error(t, err)
}

func TestNewGeminiResult_NoCandidates(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
		UsageMetadata:  &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 120, TotalTokenCount: 120},
	}

	result := newGeminiResult("gemini-test", resp)
	assert.Empty(t, result.Text)
	assert.Equal(t, "gemini-test", result.Model)
	assert.Equal(t, int64(120), result.Usage.InputTokens)

	assert.Empty(t, newGeminiResult("gemini-test", nil).Text)
	assert.Empty(t, newGeminiResult("gemini-test", &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
	}).Text)
}

func TestNewGeminiResult_TextIsVerbatim(t *testing.T) {
	text := "\nBu M5 ile pistlerin kralı ol!  \n"
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     1_000_000,
			CandidatesTokenCount: 1_000_000,
			TotalTokenCount:      2_000_000,
		},
	}

	result := newGeminiResult("gemini-test", resp)
	assert.Equal(t, text, result.Text)
	assert.InDelta(t, geminiInputPricePerMillion+geminiOutputPricePerMillion, result.Usage.CostUSD, 1e-9)
}

func TestGenerate_BlockedResponseYieldsEmptyMessage(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("GenerateText", mock.Anything, mock.Anything).
		Return(newGeminiResult("gemini-test", &genai.GenerateContentResponse{}), nil)

	client := NewDescriptionClient(gen, time.Second)
	assert.Equal(t, MsgDescriptionEmpty, client.Generate(context.Background(), "BMW M5", "1500000", "Drift"))
	gen.AssertExpectations(t)
}

func TestGenerate_KeepsSurroundingWhitespace(t *testing.T) {
	text := "  Efsane drift makinesi!\n"
	gen := new(mockGenerator)
	gen.On("GenerateText", mock.Anything, mock.Anything).Return(&GenerationResult{Text: text}, nil)

	client := NewDescriptionClient(gen, time.Second)
	assert.Equal(t, text, client.Generate(context.Background(), "BMW M5", "1500000", "Drift"))
}
