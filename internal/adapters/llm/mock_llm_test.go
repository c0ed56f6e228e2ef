package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/amika-agent/internal/adapters/llm"
	"github.com/PabloGalante/amika-agent/internal/domain"
)

func TestMockAssistantsRunLifecycle(t *testing.T) {
	ctx := context.Background()
	m := llm.NewMockAssistants(nil)

	agent, err := m.CreateAssistant(ctx, "Amika", "be kind")
	require.NoError(t, err)
	thread, err := m.CreateThread(ctx)
	require.NoError(t, err)
	require.NoError(t, m.PostTurn(ctx, thread, domain.RoleUser, "hello"))

	run, err := m.StartRun(ctx, thread, agent)
	require.NoError(t, err)

	var statuses []domain.RunStatus
	for i := 0; i < 3; i++ {
		s, err := m.RunStatus(ctx, thread, run)
		require.NoError(t, err)
		statuses = append(statuses, s)
	}
	assert.Equal(t, []domain.RunStatus{domain.RunInProgress, domain.RunCompleted, domain.RunCompleted}, statuses)

	turns, err := m.ListTurns(ctx, thread, 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, domain.RoleAssistant, turns[0].Role)
	assert.Contains(t, turns[0].Content, "hello")
}

func TestMockAssistantsScriptFailure(t *testing.T) {
	ctx := context.Background()
	m := llm.NewMockAssistants(func(llm.MockAgent, []domain.Turn) (string, error) {
		return "", errors.New("rate limited")
	})
	agent, _ := m.CreateAssistant(ctx, "Amika", "")
	thread, _ := m.CreateThread(ctx)
	run, err := m.StartRun(ctx, thread, agent)
	require.NoError(t, err)

	_, _ = m.RunStatus(ctx, thread, run)
	s, err := m.RunStatus(ctx, thread, run)
	assert.Equal(t, domain.RunFailed, s)
	assert.Error(t, err)
}

func TestMockAssistantsUpdateInstructions(t *testing.T) {
	ctx := context.Background()
	m := llm.NewMockAssistants(nil)
	agent, _ := m.CreateAssistant(ctx, "Amika", "old")

	require.NoError(t, m.UpdateInstructions(ctx, agent, "new"))
	a, ok := m.Agent(agent)
	require.True(t, ok)
	assert.Equal(t, "new", a.Instructions)

	assert.Error(t, m.UpdateInstructions(ctx, "asst_missing", "x"))
}

func TestBuildNotificationPrompt(t *testing.T) {
	p, err := llm.BuildNotificationPrompt(domain.NotificationContext{RelationName: "Jane", MethodOfContact: "call", UserName: "Jo"})
	require.NoError(t, err)
	assert.Contains(t, p.System, "20 to 50 words")
	assert.JSONEq(t, `{"relationName":"Jane","methodOfContact":"call","pronouns":"","relationType":"","overviewOfPerson":"","contactHistory":null,"contactFrequency":null,"userName":"Jo"}`, p.User)
}
