package agentflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/PabloGalante/amika-agent/internal/app/tools"
	"github.com/PabloGalante/amika-agent/internal/concurrency"
	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/observability"
)

// DefaultMutationTimeout bounds the background classifier and apply step.
const DefaultMutationTimeout = 3 * time.Minute

// Orchestrator runs the respondent for every turn and, when the reply is flagged,
// the classifier and the relation tool on a background side path. The chat reply
// never waits for or depends on the side path.
type Orchestrator struct {
	respondent      *Respondent
	classifier      *Classifier
	tool            tools.Tool
	metrics         *observability.Metrics
	mutationTimeout time.Duration

	// sidePaths keeps one classifier run per user at a time.
	sidePaths *concurrency.KeyedMutex
	wg        sync.WaitGroup
}

func NewOrchestrator(respondent *Respondent, classifier *Classifier, tool tools.Tool, metrics *observability.Metrics, mutationTimeout time.Duration) *Orchestrator {
	if mutationTimeout <= 0 {
		mutationTimeout = DefaultMutationTimeout
	}
	return &Orchestrator{
		respondent:      respondent,
		classifier:      classifier,
		tool:            tool,
		metrics:         metrics,
		mutationTimeout: mutationTimeout,
		sidePaths:       concurrency.NewKeyedMutex(),
	}
}

// Run executes one chat turn.
func (o *Orchestrator) Run(ctx context.Context, userID domain.UserID, utterance string) (domain.Exchange, error) {
	ctx = observability.WithUserID(ctx, string(userID))
	log := observability.LoggerFromContext(ctx)
	log.Info("orchestrator started")

	start := time.Now()
	ex, err := o.respondent.Respond(ctx, userID, utterance)
	if err != nil {
		log.Error("respondent failed", "error", err)
		return domain.Exchange{}, err
	}
	o.metrics.IncTurn(string(ex.Intent))
	log.Info("respondent replied", "intent", ex.Intent, "elapsed_ms", time.Since(start).Milliseconds())

	if ex.Intent == domain.IntentMutate {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.mutationTimeout)
			defer cancel()
			o.mutate(mctx, userID, utterance, ex.Reply)
		}()
	}
	return ex, nil
}

// mutate is the side path. Every failure ends here.
func (o *Orchestrator) mutate(ctx context.Context, userID domain.UserID, utterance, reply string) {
	ctx = observability.WithUserID(ctx, string(userID))
	log := observability.LoggerFromContext(ctx).With("path", "mutation")

	unlock := o.sidePaths.Lock(string(userID))
	defer unlock()

	cmd, err := o.classifier.Extract(ctx, userID, reply, utterance)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrExtractionFailure):
			o.metrics.IncExtractionFailure("unparseable")
			log.Warn("classifier output dropped", "error", err)
		case errors.Is(err, domain.ErrAgentUnavailable):
			o.metrics.IncExtractionFailure("agent_unavailable")
			log.Error("classifier unavailable, mutation dropped", "error", err)
		default:
			o.metrics.IncExtractionFailure("other")
			log.Error("classifier failed", "error", err)
		}
		return
	}

	log = log.With("action", cmd.Action, "relation_id", cmd.RelationID)
	out, err := o.tool.Call(ctx, tools.ToolContext{
		UserID:    userID,
		RequestID: observability.RequestIDFromContext(ctx),
	}, cmd)
	if err != nil {
		log.Error("mutation apply failed", "tool", o.tool.Name(), "error", err)
		return
	}
	log.Info("side path finished", "tool", o.tool.Name(), "result", out)
}

// Wait blocks until every running side path has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
