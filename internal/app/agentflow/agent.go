package agentflow

import (
	"context"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

// AgentInput is what a pipeline stage receives.
type AgentInput struct {
	UserID    domain.UserID
	Utterance string
	// Reply is the respondent's normalized reply; empty for the respondent itself.
	Reply string
}

// AgentOutput is what a pipeline stage produces.
type AgentOutput struct {
	Reply      string
	Intent     domain.MutationIntent
	Transcript []domain.Turn
	Command    *domain.Command
}

// Agent is one stage of the chat pipeline backed by a hosted assistant.
type Agent interface {
	Name() string
	Run(ctx context.Context, in AgentInput) (AgentOutput, error)
}

var (
	_ Agent = (*Respondent)(nil)
	_ Agent = (*Classifier)(nil)
)
