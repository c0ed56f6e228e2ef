package agentflow

import (
	"context"
	"fmt"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

// Classifier turns a flagged exchange into one Command.
type Classifier struct {
	sessions *Sessions
	runner   *Runner
}

func NewClassifier(sessions *Sessions, runner *Runner) *Classifier {
	return &Classifier{sessions: sessions, runner: runner}
}

func (a *Classifier) Name() string { return classifierName }

// Run posts the utterance and the respondent's reply on the classifier thread and
// parses the command from its answer.
func (a *Classifier) Run(ctx context.Context, in AgentInput) (AgentOutput, error) {
	b, err := a.sessions.Resolve(ctx, in.UserID, domain.AgentClassifier)
	if err != nil {
		return AgentOutput{}, err
	}

	posted := domain.Turn{Role: domain.RoleAssistant, Content: in.Reply}
	err = a.runner.Post(ctx, b.Thread, domain.Turn{Role: domain.RoleUser, Content: in.Utterance}, posted)
	if err != nil {
		return AgentOutput{}, err
	}
	turns, err := a.runner.Run(ctx, domain.AgentClassifier, b)
	if err != nil {
		return AgentOutput{}, err
	}

	idx := replyAfter(turns, posted)
	if idx < 0 {
		return AgentOutput{}, fmt.Errorf("%w: classifier produced no output", domain.ErrExtractionFailure)
	}
	cmd, err := ParseCommand(turns[idx].Content)
	if err != nil {
		return AgentOutput{}, err
	}
	return AgentOutput{Reply: turns[idx].Content, Command: &cmd, Transcript: turns}, nil
}

// Extract returns the command implied by a flagged reply and the utterance that triggered it.
func (a *Classifier) Extract(ctx context.Context, userID domain.UserID, reply, utterance string) (domain.Command, error) {
	out, err := a.Run(ctx, AgentInput{UserID: userID, Utterance: utterance, Reply: reply})
	if err != nil {
		return domain.Command{}, err
	}
	return *out.Command, nil
}
