package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

// notificationMaxTokens keeps reminder bodies within the 20-50 word range.
const notificationMaxTokens = 100

// OpenAIContent generates reminder emails with chat completions.
type OpenAIContent struct {
	client openai.Client
	model  string
}

func NewOpenAIContent(apiKey, model string, opts ...option.RequestOption) *OpenAIContent {
	if model == "" {
		model = "gpt-4"
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIContent{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// GenerateNotification implements domain.ContentGenerator.
func (o *OpenAIContent) GenerateNotification(ctx context.Context, nc domain.NotificationContext) (string, error) {
	prompt, err := BuildNotificationPrompt(nc)
	if err != nil {
		return "", fmt.Errorf("build notification prompt: %w", err)
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		MaxTokens: openai.Int(notificationMaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai returned empty text")
	}
	return text, nil
}
