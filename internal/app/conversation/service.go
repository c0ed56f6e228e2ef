package conversation

import (
	"context"
	"strings"

	"github.com/PabloGalante/amika-agent/internal/app/agentflow"
	"github.com/PabloGalante/amika-agent/internal/concurrency"
	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/observability"
)

// Service is the chat entry point used by the HTTP layer.
type Service struct {
	orchestrator *agentflow.Orchestrator
	sessions     *agentflow.Sessions

	// turns serializes chat turns per user; a thread cannot host two runs.
	turns *concurrency.KeyedMutex
}

func NewService(orchestrator *agentflow.Orchestrator, sessions *agentflow.Sessions) *Service {
	return &Service{
		orchestrator: orchestrator,
		sessions:     sessions,
		turns:        concurrency.NewKeyedMutex(),
	}
}

type StartSessionInput struct {
	UserID domain.UserID
}

type StartSessionOutput struct {
	User             *domain.User
	RespondentThread domain.ThreadID
	ClassifierThread domain.ThreadID
}

// StartSession opens a fresh thread pair for the user, creating the agents the first time.
func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*StartSessionOutput, error) {
	ctx = observability.WithUserID(ctx, string(in.UserID))
	log := observability.LoggerFromContext(ctx)
	log.Info("starting new session")

	unlock := s.turns.Lock(string(in.UserID))
	defer unlock()

	user, err := s.sessions.Provision(ctx, in.UserID)
	if err != nil {
		log.Error("failed to provision session", "error", err)
		return nil, err
	}

	rt, _ := user.LatestThread(domain.AgentRespondent)
	ct, _ := user.LatestThread(domain.AgentClassifier)
	log.Info("session started", "respondent_thread", rt, "classifier_thread", ct)

	return &StartSessionOutput{User: user, RespondentThread: rt, ClassifierThread: ct}, nil
}

type SendMessageInput struct {
	UserID domain.UserID
	Text   string
}

type SendMessageOutput struct {
	Reply  string
	Intent domain.MutationIntent
	// Messages is the respondent thread, newest first.
	Messages []domain.Turn
}

// SendMessage runs one chat turn.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	return s.respond(ctx, in, "message")
}

// SendInitialPrompt runs the turn that opens a conversation from a reminder link.
// The prompt is the email content carried by the link token.
func (s *Service) SendInitialPrompt(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	return s.respond(ctx, in, "initial_prompt")
}

func (s *Service) respond(ctx context.Context, in SendMessageInput, source string) (*SendMessageOutput, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, domain.ErrEmptyMessage
	}
	ctx = observability.WithUserID(ctx, string(in.UserID))
	log := observability.LoggerFromContext(ctx).With("source", source)
	log.Info("sending message", "length", len(in.Text))

	unlock := s.turns.Lock(string(in.UserID))
	defer unlock()

	ex, err := s.orchestrator.Run(ctx, in.UserID, in.Text)
	if err != nil {
		log.Error("orchestrator failed", "error", err)
		return nil, err
	}

	log.Info("send message completed", "intent", ex.Intent)
	return &SendMessageOutput{Reply: ex.Reply, Intent: ex.Intent, Messages: ex.Transcript}, nil
}

// Wait blocks until background mutation work has finished.
func (s *Service) Wait() {
	s.orchestrator.Wait()
}
