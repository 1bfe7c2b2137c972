package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	// GeminiModelName is the default Gemini model.
	GeminiModelName = "gemini-2.0-flash"
	// geminiTimeout bounds a single generation call.
	geminiTimeout = 2 * time.Minute
)

// GeminiClient wraps the Gemini client
type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	if modelName == "" {
		modelName = GeminiModelName
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	// Same sampling as the hosted Mistral endpoint; the recovery parser deals with the noise.
	model.SetTemperature(0.8)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(int32(4096))

	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() {
	c.client.Close()
}

// Name identifies the backend in logs.
func (c *GeminiClient) Name() string {
	return "gemini"
}

// Complete sends the prompt and returns the concatenated text parts of the first candidate.
// The token argument is ignored: Gemini uses the server's API key.
func (c *GeminiClient) Complete(ctx context.Context, _ string, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, geminiTimeout)
	defer cancel()

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String(), nil
}
