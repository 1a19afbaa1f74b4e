package insight

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// GeminiLLM implements LLM with the Gemini API.
type GeminiLLM struct {
	client *genai.Client
	model  string
}

// NewGeminiLLM creates a Gemini-backed LLM.
func NewGeminiLLM(ctx context.Context, apiKey, model string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, errors.New("missing LLM API key")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("insight: gemini client: %w", err)
	}
	return &GeminiLLM{client: client, model: model}, nil
}

// Complete implements LLM.
func (g *GeminiLLM) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("insight: gemini generate: %w", err)
	}
	return resp.Text(), nil
}

// UnavailableLLM fails every call. It stands in when no API key is configured
// so that the rest of the server keeps working.
type UnavailableLLM struct{}

// Complete implements LLM.
func (UnavailableLLM) Complete(context.Context, string) (string, error) {
	return "", errors.New("missing LLM API key")
}
