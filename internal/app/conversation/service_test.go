package conversation_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/amika-agent/internal/adapters/llm"
	"github.com/PabloGalante/amika-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/amika-agent/internal/app/agentflow"
	"github.com/PabloGalante/amika-agent/internal/app/conversation"
	"github.com/PabloGalante/amika-agent/internal/app/relations"
	"github.com/PabloGalante/amika-agent/internal/app/reminders"
	"github.com/PabloGalante/amika-agent/internal/app/tools"
	"github.com/PabloGalante/amika-agent/internal/app/watcher"
	"github.com/PabloGalante/amika-agent/internal/concurrency"
	"github.com/PabloGalante/amika-agent/internal/domain"
)

type stack struct {
	store     *memory.UserStore
	provider  *llm.MockAssistants
	sessions  *agentflow.Sessions
	relations *relations.Service
	scheduler *reminders.Scheduler
	svc       *conversation.Service
}

func newStack(t *testing.T, script llm.ScriptFunc) *stack {
	t.Helper()
	store := memory.NewUserStore()
	writes := concurrency.NewKeyedMutex()
	provider := llm.NewMockAssistants(script)

	sessions, err := agentflow.NewSessions(store, provider, 16, writes)
	require.NoError(t, err)
	runner := agentflow.NewRunner(provider, agentflow.PollPolicy{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, Timeout: 2 * time.Second}, nil)
	rels := relations.NewService(store, writes, time.UTC, nil)
	orch := agentflow.NewOrchestrator(
		agentflow.NewRespondent(sessions, runner),
		agentflow.NewClassifier(sessions, runner),
		tools.NewRelationTool(rels),
		nil,
		5*time.Second,
	)
	scheduler := reminders.NewScheduler(reminders.NewDispatcher(store, llm.NewMockContent(), nil, memory.NewOutbox(), "", 0, nil), time.UTC, time.Second, nil)

	return &stack{
		store:     store,
		provider:  provider,
		sessions:  sessions,
		relations: rels,
		scheduler: scheduler,
		svc:       conversation.NewService(orch, sessions),
	}
}

func TestStartSessionAndSendMessage(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, nil)
	require.NoError(t, s.store.CreateUser(ctx, &domain.User{ID: "test-user", Email: "t@example.com"}))

	out, err := s.svc.StartSession(ctx, conversation.StartSessionInput{UserID: "test-user"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.RespondentThread)
	assert.NotEmpty(t, out.ClassifierThread)

	reply, err := s.svc.SendMessage(ctx, conversation.SendMessageInput{UserID: "test-user", Text: "Hello Amika"})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentNone, reply.Intent)
	assert.True(t, strings.HasPrefix(reply.Reply, "NULL"))
	require.Len(t, reply.Messages, 2)
	assert.Equal(t, domain.RoleAssistant, reply.Messages[0].Role)
	assert.Equal(t, "Hello Amika", reply.Messages[1].Content)
}

func TestSendMessageWithoutSession(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, nil)
	require.NoError(t, s.store.CreateUser(ctx, &domain.User{ID: "u1", Email: "u1@example.com"}))

	_, err := s.svc.SendMessage(ctx, conversation.SendMessageInput{UserID: "u1", Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrAgentUnavailable)

	_, err = s.svc.SendInitialPrompt(ctx, conversation.SendMessageInput{UserID: "u1", Text: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestStartSessionUnknownUser(t *testing.T) {
	s := newStack(t, nil)
	_, err := s.svc.StartSession(context.Background(), conversation.StartSessionInput{UserID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

// The user mentions a call with Jane; the flagged reply is turned into an EDIT,
// the change feed refreshes both agents and Jane's reminder jobs are rearmed.
func TestJaneScenario(t *testing.T) {
	ctx := context.Background()
	day := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	spec := func(days int) string {
		return fmt.Sprintf(`{"startDate":%q,"endDate":%q,"frequency":"daily","time":"2000-01-01T09:00:00Z"}`,
			day.Format(time.RFC3339), day.AddDate(0, 0, days-1).Format(time.RFC3339))
	}

	const janeID = "jane-1"
	classifierOut := fmt.Sprintf(`Sure! Here's the update:
{"action_type":"EDIT","relation_id":%q,"request_body":{"overview":"Started a new job","contact_history":[{"date":"yesterday","topic":"new job","method":"call"}],"reminder_frequency":[{"method":"call","frequency":%s}]}}
Let me know!`, janeID, spec(2))

	s := newStack(t, func(agent llm.MockAgent, turns []domain.Turn) (string, error) {
		if agent.Name == "DataBaseUpdater" {
			return classifierOut, nil
		}
		return "UPDATE\nThat's wonderful news about Jane's new job!", nil
	})

	require.NoError(t, s.store.CreateUser(ctx, &domain.User{ID: "u1", Email: "ada@example.com", FirstName: "Ada"}))
	_, err := s.svc.StartSession(ctx, conversation.StartSessionInput{UserID: "u1"})
	require.NoError(t, err)

	u, err := s.store.FindUser(ctx, "u1")
	require.NoError(t, err)
	var rf domain.ReminderFrequency
	require.NoError(t, rf.UnmarshalJSON([]byte(fmt.Sprintf(`{"method":"call","frequency":%s}`, spec(3)))))
	u.Relations = []domain.Relation{{ID: janeID, Name: "Jane", Pronouns: "she/her", RelationshipType: "sister", Overview: "Lives in Lisbon", ReminderEnabled: true, ReminderFrequency: []domain.ReminderFrequency{rf}}}
	require.NoError(t, s.store.SaveUser(ctx, u))

	w := watcher.New(s.store, s.store, s.sessions, s.scheduler, nil)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()
	require.Eventually(t, func() bool { return s.scheduler.Armed("u1") == 3 }, 2*time.Second, 5*time.Millisecond)

	out, err := s.svc.SendMessage(ctx, conversation.SendMessageInput{UserID: "u1", Text: "I called my sister Jane yesterday and she mentioned a new job."})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentMutate, out.Intent)
	s.svc.Wait()

	rel, err := s.relations.Get(ctx, "u1", janeID)
	require.NoError(t, err)
	assert.Equal(t, "Started a new job", rel.Overview)
	assert.Equal(t, "she/her", rel.Pronouns)
	require.Len(t, rel.ReminderFrequency, 1)
	assert.Len(t, rel.ReminderFrequency[0].Occurrences, 2)

	user, err := s.store.FindUser(ctx, "u1")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		r, ok1 := s.provider.Agent(user.RespondentAgentID)
		c, ok2 := s.provider.Agent(user.ClassifierAgentID)
		return ok1 && ok2 &&
			strings.Contains(r.Instructions, "Started a new job") &&
			strings.Contains(c.Instructions, "Started a new job")
	}, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return s.scheduler.Armed("u1") == 2 }, 2*time.Second, 5*time.Millisecond)
}
