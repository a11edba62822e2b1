package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaClient implements Client on a locally-hosted Ollama server.
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient creates an Ollama-backed collaborator.
func NewOllamaClient(baseURL, model string) (*OllamaClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ollama base url: %w", err)
	}
	return &OllamaClient{
		client: api.NewClient(u, http.DefaultClient),
		model:  model,
	}, nil
}

// Chat generates an answer from a system prompt and a user message.
func (c *OllamaClient) Chat(ctx context.Context, system, user string) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: &stream,
	}

	var content strings.Builder
	if err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	}); err != nil {
		return "", fmt.Errorf("failed to complete chat: %w", err)
	}
	return content.String(), nil
}

// ExtractEntities pulls named entities out of free text.
func (c *OllamaClient) ExtractEntities(ctx context.Context, text string) ([]Entity, error) {
	if strings.TrimSpace(text) == "" {
		return []Entity{}, nil
	}
	out, err := c.Chat(ctx, extractSystemPrompt, text)
	if err != nil {
		return nil, fmt.Errorf("failed to extract entities: %w", err)
	}
	return parseEntityList(out), nil
}

// Judge verifies an answer against a goal using only the given context.
func (c *OllamaClient) Judge(ctx context.Context, goal, answer, contextPack string) (string, error) {
	user := fmt.Sprintf("GOAL:\n%s\n\nCONTEXT:\n%s\n\nANSWER:\n%s\n", goal, contextPack, answer)
	return c.Chat(ctx, judgeSystemPrompt, user)
}

// Intent classifies a retrieval query, degrading to defaults on malformed
// responses.
func (c *OllamaClient) Intent(ctx context.Context, query, currentFile string) (Intent, error) {
	user := "QUERY: " + query
	if currentFile != "" {
		user += "\nCURRENT FILE: " + currentFile
	}
	out, err := c.Chat(ctx, intentSystemPrompt, user)
	if err != nil {
		return Intent{}, fmt.Errorf("failed to classify intent: %w", err)
	}
	return parseIntent(out), nil
}
