package chat

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Defaults for the Gemini client.
const (
	DefaultModel           = "gemini-2.5-flash"
	DefaultMaxOutputTokens = 8192
)

// GenAIClient talks to Google's Gemini API.
type GenAIClient struct {
	client          *genai.Client
	model           string
	maxOutputTokens int32
}

var _ Client = (*GenAIClient)(nil)

// NewGenAIClient creates a Gemini-backed Client.
func NewGenAIClient(ctx context.Context, apiKey, model string, maxOutputTokens int) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("chat: GenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	if maxOutputTokens <= 0 {
		maxOutputTokens = DefaultMaxOutputTokens
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: creating GenAI client: %w", err)
	}

	return &GenAIClient{
		client:          client,
		model:           model,
		maxOutputTokens: int32(maxOutputTokens),
	}, nil
}

// Complete implements Client.
func (c *GenAIClient) Complete(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, toContents(history), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		MaxOutputTokens:   c.maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	return resp.Text(), nil
}

// toContents maps the history onto Gemini's user/model roles.
func toContents(history []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}
