package agentflow

import (
	"context"
	"fmt"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

// Respondent posts the user's message on the respondent thread and returns the
// normalized reply with the whole transcript.
type Respondent struct {
	sessions *Sessions
	runner   *Runner
}

func NewRespondent(sessions *Sessions, runner *Runner) *Respondent {
	return &Respondent{sessions: sessions, runner: runner}
}

func (a *Respondent) Name() string { return respondentName }

func (a *Respondent) Run(ctx context.Context, in AgentInput) (AgentOutput, error) {
	b, err := a.sessions.Resolve(ctx, in.UserID, domain.AgentRespondent)
	if err != nil {
		return AgentOutput{}, err
	}

	posted := domain.Turn{Role: domain.RoleUser, Content: in.Utterance}
	if err := a.runner.Post(ctx, b.Thread, posted); err != nil {
		return AgentOutput{}, err
	}
	turns, err := a.runner.Run(ctx, domain.AgentRespondent, b)
	if err != nil {
		return AgentOutput{}, err
	}

	idx := replyAfter(turns, posted)
	if idx < 0 {
		return AgentOutput{}, fmt.Errorf("%w: run completed without a reply", domain.ErrAgentUnavailable)
	}
	reply, intent := domain.ParseIntent(turns[idx].Content)
	turns[idx].Content = reply

	return AgentOutput{Reply: reply, Intent: intent, Transcript: turns}, nil
}

// replyAfter returns the index of the newest assistant turn written after posted,
// the last turn this side added before the run. turns is newest first. A run that
// wrote nothing yields -1 even when older assistant turns exist.
func replyAfter(turns []domain.Turn, posted domain.Turn) int {
	end := len(turns)
	for i, t := range turns {
		if t.Role == posted.Role && t.Content == posted.Content {
			end = i
			break
		}
	}
	for i, t := range turns[:end] {
		if t.Role == domain.RoleAssistant {
			return i
		}
	}
	return -1
}

// Respond runs one respondent turn for the user.
func (a *Respondent) Respond(ctx context.Context, userID domain.UserID, utterance string) (domain.Exchange, error) {
	out, err := a.Run(ctx, AgentInput{UserID: userID, Utterance: utterance})
	if err != nil {
		return domain.Exchange{}, err
	}
	return domain.Exchange{
		UserID:     userID,
		Utterance:  utterance,
		Reply:      out.Reply,
		Intent:     out.Intent,
		Transcript: out.Transcript,
	}, nil
}
