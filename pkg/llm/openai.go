package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient implements Client on the OpenAI Chat Completions API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-backed collaborator. An empty baseURL
// uses the public API endpoint.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Chat generates an answer from a system prompt and a user message.
func (c *OpenAIClient) Chat(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to complete chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ExtractEntities pulls named entities out of free text.
func (c *OpenAIClient) ExtractEntities(ctx context.Context, text string) ([]Entity, error) {
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
func (c *OpenAIClient) Judge(ctx context.Context, goal, answer, contextPack string) (string, error) {
	user := fmt.Sprintf("GOAL:\n%s\n\nCONTEXT:\n%s\n\nANSWER:\n%s\n", goal, contextPack, answer)
	return c.Chat(ctx, judgeSystemPrompt, user)
}

// Intent classifies a retrieval query. A malformed model response degrades
// to the default intent; only transport failures are errors.
func (c *OpenAIClient) Intent(ctx context.Context, query, currentFile string) (Intent, error) {
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

// parseIntent repairs and decodes an intent JSON response, falling back to
// defaults for missing or out-of-range fields.
func parseIntent(out string) Intent {
	intent := DefaultIntent()
	repaired, err := jsonrepair.JSONRepair(strings.TrimSpace(out))
	if err != nil {
		return intent
	}
	var parsed Intent
	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		return intent
	}
	if parsed.Hops > 0 {
		intent.Hops = parsed.Hops
	}
	if parsed.TokenBudget > 0 {
		intent.TokenBudget = parsed.TokenBudget
	}
	return intent
}
