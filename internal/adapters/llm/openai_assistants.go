package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

// OpenAIAssistants implements domain.AssistantProvider on the OpenAI Assistants API.
type OpenAIAssistants struct {
	client openai.Client
	model  string
}

func NewOpenAIAssistants(apiKey, model string, opts ...option.RequestOption) *OpenAIAssistants {
	if model == "" {
		model = "gpt-4o"
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIAssistants{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (o *OpenAIAssistants) CreateAssistant(ctx context.Context, name, instructions string) (domain.AgentID, error) {
	a, err := o.client.Beta.Assistants.New(ctx, openai.BetaAssistantNewParams{
		Model:        o.model,
		Name:         openai.String(name),
		Instructions: openai.String(instructions),
	})
	if err != nil {
		return "", fmt.Errorf("openai create assistant: %w", err)
	}
	return domain.AgentID(a.ID), nil
}

func (o *OpenAIAssistants) UpdateInstructions(ctx context.Context, agent domain.AgentID, instructions string) error {
	_, err := o.client.Beta.Assistants.Update(ctx, string(agent), openai.BetaAssistantUpdateParams{
		Instructions: openai.String(instructions),
	})
	if err != nil {
		return fmt.Errorf("openai update assistant %s: %w", agent, err)
	}
	return nil
}

func (o *OpenAIAssistants) CreateThread(ctx context.Context) (domain.ThreadID, error) {
	t, err := o.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("openai create thread: %w", err)
	}
	return domain.ThreadID(t.ID), nil
}

func (o *OpenAIAssistants) PostTurn(ctx context.Context, thread domain.ThreadID, role domain.Role, content string) error {
	r := openai.BetaThreadMessageNewParamsRoleUser
	if role == domain.RoleAssistant {
		r = openai.BetaThreadMessageNewParamsRoleAssistant
	}
	_, err := o.client.Beta.Threads.Messages.New(ctx, string(thread), openai.BetaThreadMessageNewParams{
		Content: openai.BetaThreadMessageNewParamsContentUnion{OfString: openai.String(content)},
		Role:    r,
	})
	if err != nil {
		return fmt.Errorf("openai post message to %s: %w", thread, err)
	}
	return nil
}

func (o *OpenAIAssistants) StartRun(ctx context.Context, thread domain.ThreadID, agent domain.AgentID) (domain.RunID, error) {
	run, err := o.client.Beta.Threads.Runs.New(ctx, string(thread), openai.BetaThreadRunNewParams{
		AssistantID: string(agent),
	})
	if err != nil {
		return "", fmt.Errorf("openai start run on %s: %w", thread, err)
	}
	return domain.RunID(run.ID), nil
}

func (o *OpenAIAssistants) RunStatus(ctx context.Context, thread domain.ThreadID, run domain.RunID) (domain.RunStatus, error) {
	r, err := o.client.Beta.Threads.Runs.Get(ctx, string(thread), string(run))
	if err != nil {
		return "", fmt.Errorf("openai get run %s: %w", run, err)
	}
	status := domain.RunStatus(r.Status)
	if status == domain.RunFailed && r.LastError.Message != "" {
		return status, fmt.Errorf("run %s failed: %s", run, r.LastError.Message)
	}
	return status, nil
}

// ListTurns returns text turns newest first, the API's default order.
func (o *OpenAIAssistants) ListTurns(ctx context.Context, thread domain.ThreadID, limit int) ([]domain.Turn, error) {
	params := openai.BetaThreadMessageListParams{Order: openai.BetaThreadMessageListParamsOrderDesc}
	if limit > 0 {
		params.Limit = openai.Int(int64(limit))
	}
	page, err := o.client.Beta.Threads.Messages.List(ctx, string(thread), params)
	if err != nil {
		return nil, fmt.Errorf("openai list messages of %s: %w", thread, err)
	}

	out := make([]domain.Turn, 0, len(page.Data))
	for _, m := range page.Data {
		var text strings.Builder
		for _, c := range m.Content {
			if c.Type == "text" {
				text.WriteString(c.Text.Value)
			}
		}
		role := domain.RoleUser
		if m.Role == openai.MessageRoleAssistant {
			role = domain.RoleAssistant
		}
		out = append(out, domain.Turn{Role: role, Content: text.String()})
	}
	return out, nil
}
