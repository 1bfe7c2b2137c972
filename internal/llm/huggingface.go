package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/imroc/req/v3"
)

const (
	// HuggingFaceModel is the default hosted instruct model.
	HuggingFaceModel = "mistralai/Mistral-7B-Instruct-v0.3"
	// HuggingFaceEndpoint is the serverless inference base URL.
	HuggingFaceEndpoint = "https://api-inference.huggingface.co/models"
)

// HuggingFaceClient calls a text-generation inference endpoint with the user's own token.
type HuggingFaceClient struct {
	http  *req.Client
	model string
	// DefaultToken is used when the session did not provide one.
	DefaultToken string
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

type hfError struct {
	Error string `json:"error"`
}

// NewHuggingFaceClient creates a client for model served under baseURL.
func NewHuggingFaceClient(baseURL, model string) *HuggingFaceClient {
	if baseURL == "" {
		baseURL = HuggingFaceEndpoint
	}
	if model == "" {
		model = HuggingFaceModel
	}
	client := req.C().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(2*time.Minute).
		SetCommonHeader("Accept", "application/json")

	return &HuggingFaceClient{http: client, model: model}
}

// Name identifies the backend in logs.
func (c *HuggingFaceClient) Name() string {
	return "huggingface"
}

// Complete posts the prompt and returns the generated continuation.
func (c *HuggingFaceClient) Complete(ctx context.Context, token string, prompt string) (string, error) {
	if token == "" {
		token = c.DefaultToken
	}
	if token == "" {
		return "", fmt.Errorf("no Hugging Face access token available")
	}

	var generations []hfGeneration
	var apiErr hfError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBearerAuthToken(token).
		SetBody(hfRequest{
			Inputs: prompt,
			Parameters: hfParameters{
				MaxNewTokens:   2048,
				Temperature:    0.8,
				ReturnFullText: false,
			},
		}).
		SetSuccessResult(&generations).
		SetErrorResult(&apiErr).
		Post("/" + c.model)
	if err != nil {
		return "", fmt.Errorf("failed to call Hugging Face endpoint: %w", err)
	}
	if resp.IsErrorState() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.String()
		}
		return "", fmt.Errorf("Hugging Face endpoint returned status %d: %s", resp.StatusCode, msg)
	}
	if len(generations) == 0 {
		return "", fmt.Errorf("Hugging Face endpoint returned no generations")
	}
	return generations[0].GeneratedText, nil
}
