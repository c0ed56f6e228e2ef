package agentflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/PabloGalante/amika-agent/internal/concurrency"
	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/observability"
)

// Binding is the agent and thread a turn runs on.
type Binding struct {
	Agent  domain.AgentID
	Thread domain.ThreadID
}

type bindings struct {
	respondent Binding
	classifier Binding
}

func (b bindings) get(kind domain.AgentKind) Binding {
	if kind == domain.AgentClassifier {
		return b.classifier
	}
	return b.respondent
}

// Sessions resolves and provisions the per-user agent bindings. Resolved bindings
// are cached until the user document changes.
type Sessions struct {
	users    domain.UserStore
	provider domain.AssistantProvider
	cache    *lru.Cache[domain.UserID, bindings]
	writes   *concurrency.KeyedMutex
	now      func() time.Time
}

// NewSessions creates a Sessions. writes must be the lock shared with every other
// writer of user documents.
func NewSessions(users domain.UserStore, provider domain.AssistantProvider, cacheSize int, writes *concurrency.KeyedMutex) (*Sessions, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[domain.UserID, bindings](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	if writes == nil {
		writes = concurrency.NewKeyedMutex()
	}
	return &Sessions{
		users:    users,
		provider: provider,
		cache:    cache,
		writes:   writes,
		now:      time.Now,
	}, nil
}

// Resolve returns the agent and the most recent thread of the given kind.
func (s *Sessions) Resolve(ctx context.Context, userID domain.UserID, kind domain.AgentKind) (Binding, error) {
	if b, ok := s.cache.Get(userID); ok {
		return b.get(kind), nil
	}

	user, err := s.users.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return Binding{}, fmt.Errorf("%w: %v", domain.ErrAgentUnavailable, err)
		}
		return Binding{}, err
	}

	b, ok := bindingsOf(user)
	if !ok {
		return Binding{}, fmt.Errorf("%w: user %s has no agents bound", domain.ErrAgentUnavailable, userID)
	}
	s.cache.Add(userID, b)
	return b.get(kind), nil
}

func bindingsOf(u *domain.User) (bindings, bool) {
	rt, ok1 := u.LatestThread(domain.AgentRespondent)
	ct, ok2 := u.LatestThread(domain.AgentClassifier)
	if !ok1 || !ok2 || u.RespondentAgentID == "" || u.ClassifierAgentID == "" {
		return bindings{}, false
	}
	return bindings{
		respondent: Binding{Agent: u.RespondentAgentID, Thread: rt},
		classifier: Binding{Agent: u.ClassifierAgentID, Thread: ct},
	}, true
}

// Provision opens a fresh pair of threads for the user, creating both agents the
// first time. The updated user is returned.
func (s *Sessions) Provision(ctx context.Context, userID domain.UserID) (*domain.User, error) {
	ctx = observability.WithUserID(ctx, string(userID))
	log := observability.LoggerFromContext(ctx)

	unlock := s.writes.Lock(string(userID))
	defer unlock()

	user, err := s.users.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.RespondentAgentID == "" {
		id, err := s.provider.CreateAssistant(ctx, respondentName, RespondentInstructions(user.Relations, s.now()))
		if err != nil {
			return nil, fmt.Errorf("%w: create respondent: %v", domain.ErrAgentUnavailable, err)
		}
		user.RespondentAgentID = id
		log.Info("respondent agent created", "agent_id", id)
	}
	if user.ClassifierAgentID == "" {
		id, err := s.provider.CreateAssistant(ctx, classifierName, ClassifierInstructions(user.Relations))
		if err != nil {
			return nil, fmt.Errorf("%w: create classifier: %v", domain.ErrAgentUnavailable, err)
		}
		user.ClassifierAgentID = id
		log.Info("classifier agent created", "agent_id", id)
	}

	rt, err := s.provider.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create thread: %v", domain.ErrAgentUnavailable, err)
	}
	ct, err := s.provider.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create thread: %v", domain.ErrAgentUnavailable, err)
	}
	user.RespondentThreadIDs = append(user.RespondentThreadIDs, rt)
	user.ClassifierThreadIDs = append(user.ClassifierThreadIDs, ct)

	if err := s.users.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	s.Invalidate(userID)

	log.Info("session provisioned", "respondent_thread", rt, "classifier_thread", ct)
	return user, nil
}

// RefreshInstructions rewrites the instructions of both agents from the user's
// current relations. Agents that are not bound yet are skipped.
func (s *Sessions) RefreshInstructions(ctx context.Context, user *domain.User) error {
	var errs []error
	if user.RespondentAgentID != "" {
		if err := s.provider.UpdateInstructions(ctx, user.RespondentAgentID, RespondentInstructions(user.Relations, s.now())); err != nil {
			errs = append(errs, fmt.Errorf("respondent: %w", err))
		}
	}
	if user.ClassifierAgentID != "" {
		if err := s.provider.UpdateInstructions(ctx, user.ClassifierAgentID, ClassifierInstructions(user.Relations)); err != nil {
			errs = append(errs, fmt.Errorf("classifier: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Invalidate drops the cached bindings of a user.
func (s *Sessions) Invalidate(userID domain.UserID) {
	s.cache.Remove(userID)
}
