package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the Gemini model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiCompleter generates text with the Gemini API. Credentials come from
// the environment (GOOGLE_API_KEY or Vertex AI settings).
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

// NewGeminiCompleter creates the genai client once for the process lifetime.
func NewGeminiCompleter(ctx context.Context, model string) (*GeminiCompleter, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiCompleter: create genai client: %w", err)
	}
	return &GeminiCompleter{client: client, model: model}, nil
}

// Complete sends the system instruction and prompt as a single user turn.
func (g *GeminiCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: system},
				{Text: prompt},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("GeminiCompleter.Complete: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
