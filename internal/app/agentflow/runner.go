package agentflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/observability"
)

// PollPolicy bounds how a run is awaited.
type PollPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Timeout         time.Duration
}

// DefaultPollPolicy polls fast first, settles at once per second and gives up after two minutes.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     time.Second,
		Timeout:         2 * time.Minute,
	}
}

// transcriptLimit is how many turns are read back after a run.
const transcriptLimit = 100

var errRunPending = errors.New("run still pending")

// Runner executes one generation turn on a thread and waits for it to settle.
type Runner struct {
	provider domain.AssistantProvider
	policy   PollPolicy
	metrics  *observability.Metrics
}

func NewRunner(provider domain.AssistantProvider, policy PollPolicy, metrics *observability.Metrics) *Runner {
	def := DefaultPollPolicy()
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = def.InitialInterval
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = def.MaxInterval
	}
	if policy.Timeout <= 0 {
		policy.Timeout = def.Timeout
	}
	return &Runner{provider: provider, policy: policy, metrics: metrics}
}

// Post appends turns to the thread in order.
func (r *Runner) Post(ctx context.Context, thread domain.ThreadID, turns ...domain.Turn) error {
	for _, t := range turns {
		if err := r.provider.PostTurn(ctx, thread, t.Role, t.Content); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrAgentUnavailable, err)
		}
	}
	return nil
}

// Run starts a run of the bound agent, awaits a terminal state and returns the
// thread transcript newest first. Anything but a completed run is ErrAgentUnavailable.
func (r *Runner) Run(ctx context.Context, kind domain.AgentKind, b Binding) ([]domain.Turn, error) {
	log := observability.LoggerFromContext(ctx).With("agent", kind, "thread_id", b.Thread)
	start := time.Now()

	runID, err := r.provider.StartRun(ctx, b.Thread, b.Agent)
	if err != nil {
		return nil, fmt.Errorf("%w: start run: %v", domain.ErrAgentUnavailable, err)
	}
	log = log.With("run_id", runID)

	status, err := r.await(ctx, b.Thread, runID)
	r.metrics.ObserveAgentRun(string(kind), string(status), time.Since(start))
	if err != nil {
		log.Error("agent run did not complete", "status", status, "error", err)
		return nil, err
	}
	log.Info("agent run completed", "elapsed_ms", time.Since(start).Milliseconds())

	turns, err := r.provider.ListTurns(ctx, b.Thread, transcriptLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: list turns: %v", domain.ErrAgentUnavailable, err)
	}
	return turns, nil
}

func (r *Runner) await(ctx context.Context, thread domain.ThreadID, run domain.RunID) (domain.RunStatus, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	b.MaxElapsedTime = r.policy.Timeout
	b.RandomizationFactor = 0

	var last domain.RunStatus
	op := func() error {
		status, err := r.provider.RunStatus(ctx, thread, run)
		if status != "" {
			last = status
		}
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: run %s: %v", domain.ErrAgentUnavailable, run, err))
		}
		if !status.IsTerminal() {
			return errRunPending
		}
		if status != domain.RunCompleted {
			return backoff.Permanent(fmt.Errorf("%w: run %s ended %s", domain.ErrAgentUnavailable, run, status))
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, errRunPending):
		return last, fmt.Errorf("%w: run %s still %s after %s", domain.ErrAgentUnavailable, run, last, r.policy.Timeout)
	case ctx.Err() != nil && !errors.Is(err, domain.ErrAgentUnavailable):
		return last, fmt.Errorf("%w: %v", domain.ErrAgentUnavailable, ctx.Err())
	default:
		return last, err
	}
}
