package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/PabloGalante/amika-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/amika-agent/internal/domain"
)

// ErrNoReply makes a scripted run complete without writing a message.
var ErrNoReply = errors.New("mock run wrote no message")

// ScriptFunc produces the assistant reply for a run. An error makes the run fail.
type ScriptFunc func(agent MockAgent, turns []domain.Turn) (string, error)

// MockAgent is an assistant held by MockAssistants.
type MockAgent struct {
	ID           domain.AgentID
	Name         string
	Instructions string
}

type mockRun struct {
	thread domain.ThreadID
	agent  domain.AgentID
	status domain.RunStatus
	err    error
}

// MockAssistants is an in-process domain.AssistantProvider. Runs advance one state per
// status poll (queued, in_progress, completed) and the reply is appended on completion.
type MockAssistants struct {
	mu      sync.Mutex
	agents  map[domain.AgentID]*MockAgent
	runs    map[domain.RunID]*mockRun
	threads *memory.ThreadStore
	script  ScriptFunc

	// Stall keeps every run in_progress forever.
	Stall bool
}

func NewMockAssistants(script ScriptFunc) *MockAssistants {
	if script == nil {
		script = DefaultScript
	}
	return &MockAssistants{
		agents:  make(map[domain.AgentID]*MockAgent),
		runs:    make(map[domain.RunID]*mockRun),
		threads: memory.NewThreadStore(),
		script:  script,
	}
}

// DefaultScript answers like a friendly companion that never asks for a data change.
func DefaultScript(agent MockAgent, turns []domain.Turn) (string, error) {
	if strings.Contains(agent.Name, "DataBaseUpdater") {
		return "{}", nil
	}
	last := ""
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == domain.RoleUser {
			last = turns[i].Content
			break
		}
	}
	return fmt.Sprintf("NULL\nI hear you. You said %q. Tell me a bit more about the people involved.", last), nil
}

func (m *MockAssistants) CreateAssistant(_ context.Context, name, instructions string) (domain.AgentID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := domain.AgentID("asst_" + uuid.NewString())
	m.agents[id] = &MockAgent{ID: id, Name: name, Instructions: instructions}
	return id, nil
}

func (m *MockAssistants) UpdateInstructions(_ context.Context, agent domain.AgentID, instructions string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[agent]
	if !ok {
		return fmt.Errorf("mock assistant %s not found", agent)
	}
	a.Instructions = instructions
	return nil
}

// Agent returns a copy of the stored assistant.
func (m *MockAssistants) Agent(id domain.AgentID) (MockAgent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[id]
	if !ok {
		return MockAgent{}, false
	}
	return *a, true
}

func (m *MockAssistants) CreateThread(_ context.Context) (domain.ThreadID, error) {
	id := domain.ThreadID("thread_" + uuid.NewString())
	m.threads.CreateThread(id)
	return id, nil
}

func (m *MockAssistants) PostTurn(_ context.Context, thread domain.ThreadID, role domain.Role, content string) error {
	if !m.threads.Exists(thread) {
		return fmt.Errorf("mock thread %s not found", thread)
	}
	m.threads.AppendTurn(thread, domain.Turn{Role: role, Content: content})
	return nil
}

func (m *MockAssistants) StartRun(_ context.Context, thread domain.ThreadID, agent domain.AgentID) (domain.RunID, error) {
	if !m.threads.Exists(thread) {
		return "", fmt.Errorf("mock thread %s not found", thread)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.agents[agent]; !ok {
		return "", fmt.Errorf("mock assistant %s not found", agent)
	}
	id := domain.RunID("run_" + uuid.NewString())
	m.runs[id] = &mockRun{thread: thread, agent: agent, status: domain.RunQueued}
	return id, nil
}

func (m *MockAssistants) RunStatus(_ context.Context, thread domain.ThreadID, run domain.RunID) (domain.RunStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[run]
	if !ok || r.thread != thread {
		return "", errors.New("mock run not found")
	}
	switch r.status {
	case domain.RunQueued:
		r.status = domain.RunInProgress
	case domain.RunInProgress:
		if m.Stall {
			break
		}
		agent := *m.agents[r.agent]
		reply, err := m.script(agent, m.threads.Turns(thread, 0))
		if errors.Is(err, ErrNoReply) {
			r.status = domain.RunCompleted
			break
		}
		if err != nil {
			r.status, r.err = domain.RunFailed, err
			break
		}
		m.threads.AppendTurn(thread, domain.Turn{Role: domain.RoleAssistant, Content: reply})
		r.status = domain.RunCompleted
	}
	return r.status, r.err
}

// ListTurns returns turns newest first, like the hosted API.
func (m *MockAssistants) ListTurns(_ context.Context, thread domain.ThreadID, limit int) ([]domain.Turn, error) {
	if !m.threads.Exists(thread) {
		return nil, fmt.Errorf("mock thread %s not found", thread)
	}
	turns := m.threads.Turns(thread, limit)
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// MockContent is a deterministic domain.ContentGenerator.
type MockContent struct{}

func NewMockContent() *MockContent {
	return &MockContent{}
}

func (MockContent) GenerateNotification(_ context.Context, nc domain.NotificationContext) (string, error) {
	return fmt.Sprintf("<p>Hi %s! Have you reached out to %s by %s lately?</p>",
		nc.UserName, nc.RelationName, nc.MethodOfContact), nil
}
