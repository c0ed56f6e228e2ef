package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

// VertexContent generates reminder emails with Gemini on Vertex AI.
type VertexContent struct {
	client    *genai.Client
	modelName string
}

// NewVertexContent creates a domain.ContentGenerator based on Vertex AI (Gemini).
func NewVertexContent(ctx context.Context, projectID, location, modelName string) (*VertexContent, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("vertex content generator needs a project and a location")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &VertexContent{
		client:    client,
		modelName: modelName,
	}, nil
}

// GenerateNotification implements domain.ContentGenerator using Vertex AI.
func (v *VertexContent) GenerateNotification(ctx context.Context, nc domain.NotificationContext) (string, error) {
	prompt, err := BuildNotificationPrompt(nc)
	if err != nil {
		return "", fmt.Errorf("build notification prompt: %w", err)
	}

	temp := float32(0.7)
	cfg := &genai.GenerateContentConfig{
		// According to official examples, the role here is usually RoleUser, not "system"
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   int32(notificationMaxTokens),
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt.User, genai.RoleUser)}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("vertex generate content: %w", err)
	}

	// Extract only the text, do not print the structs
	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("vertex returned empty text")
	}
	return text, nil
}
