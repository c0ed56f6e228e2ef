// Package relations applies changes to a user's relation set and serves it.
package relations

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/PabloGalante/amika-agent/internal/concurrency"
	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/observability"
	"github.com/PabloGalante/amika-agent/internal/recurrence"
)

// Result describes what an applied command did.
type Result struct {
	Action     domain.ActionType
	RelationID domain.RelationID
	Changed    bool
}

// Service is the only writer of relations. Every write reloads the user under the
// shared per-user write lock, so concurrent writers never lose each other's updates.
type Service struct {
	users   domain.UserStore
	writes  *concurrency.KeyedMutex
	loc     *time.Location
	metrics *observability.Metrics
	now     func() time.Time
	newID   func() string
}

// NewService creates a relation service. loc is the zone reminder wall clocks are read in.
func NewService(users domain.UserStore, writes *concurrency.KeyedMutex, loc *time.Location, metrics *observability.Metrics) *Service {
	if writes == nil {
		writes = concurrency.NewKeyedMutex()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		users:   users,
		writes:  writes,
		loc:     loc,
		metrics: metrics,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Apply executes one extracted command. ADD always creates a record, re-applying an
// identical EDIT changes nothing and DELETE of an unknown id is ignored. Store
// failures are wrapped in domain.ErrMutationApply.
func (s *Service) Apply(ctx context.Context, userID domain.UserID, cmd domain.Command) (Result, error) {
	ctx = observability.WithUserID(ctx, string(userID))
	log := observability.LoggerFromContext(ctx).With("action", cmd.Action)

	var (
		res Result
		err error
	)
	switch cmd.Action {
	case domain.ActionAdd:
		var rel domain.Relation
		rel, err = s.Add(ctx, userID, cmd.RequestBody)
		res = Result{Action: cmd.Action, RelationID: rel.ID, Changed: err == nil}
	case domain.ActionEdit:
		var changed bool
		_, changed, err = s.Edit(ctx, userID, cmd.RelationID, cmd.RequestBody)
		res = Result{Action: cmd.Action, RelationID: cmd.RelationID, Changed: changed}
	case domain.ActionDelete:
		var removed bool
		removed, err = s.Delete(ctx, userID, cmd.RelationID)
		res = Result{Action: cmd.Action, RelationID: cmd.RelationID, Changed: removed}
	default:
		err = fmt.Errorf("%w: unknown action %q", domain.ErrInvalidRelation, cmd.Action)
	}

	s.metrics.IncMutation(string(cmd.Action), err)
	if err != nil {
		return res, fmt.Errorf("%w: %w", domain.ErrMutationApply, err)
	}
	log.Info("mutation applied", "relation_id", res.RelationID, "changed", res.Changed)
	return res, nil
}

// List returns the user's relations in stored order.
func (s *Service) List(ctx context.Context, userID domain.UserID) ([]domain.Relation, error) {
	u, err := s.users.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Relations == nil {
		return []domain.Relation{}, nil
	}
	return u.Relations, nil
}

// Get returns one relation.
func (s *Service) Get(ctx context.Context, userID domain.UserID, id domain.RelationID) (domain.Relation, error) {
	u, err := s.users.FindUser(ctx, userID)
	if err != nil {
		return domain.Relation{}, err
	}
	i := u.FindRelation(id)
	if i < 0 {
		return domain.Relation{}, domain.ErrRelationNotFound
	}
	return u.Relations[i], nil
}

// Reminders returns the relations whose reminders are enabled.
func (s *Service) Reminders(ctx context.Context, userID domain.UserID) ([]domain.Relation, error) {
	all, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := []domain.Relation{}
	for _, r := range all {
		if r.ReminderEnabled {
			out = append(out, r)
		}
	}
	return out, nil
}

// Add stores body as a new relation with a fresh id.
func (s *Service) Add(ctx context.Context, userID domain.UserID, body json.RawMessage) (domain.Relation, error) {
	var rel domain.Relation
	if err := decodeRelation(body, &rel); err != nil {
		return domain.Relation{}, err
	}
	rel.ID = domain.RelationID(s.newID())
	if err := s.normalize(&rel); err != nil {
		return domain.Relation{}, err
	}

	err := s.mutate(ctx, userID, func(u *domain.User) (bool, error) {
		u.Relations = append(u.Relations, rel)
		return true, nil
	})
	if err != nil {
		return domain.Relation{}, err
	}
	return rel, nil
}

// Edit merges the top-level fields of patch over the stored relation. The returned
// flag is false when the merge left the relation unchanged; nothing is saved then.
func (s *Service) Edit(ctx context.Context, userID domain.UserID, id domain.RelationID, patch json.RawMessage) (domain.Relation, bool, error) {
	var out domain.Relation
	var changed bool
	err := s.mutate(ctx, userID, func(u *domain.User) (bool, error) {
		i := u.FindRelation(id)
		if i < 0 {
			return false, fmt.Errorf("%w: %s", domain.ErrRelationNotFound, id)
		}
		merged, err := mergeRelation(u.Relations[i], patch)
		if err != nil {
			return false, err
		}
		merged.ID = id
		if err := s.normalize(&merged); err != nil {
			return false, err
		}

		out = merged
		if cmp.Equal(u.Relations[i], merged, cmpopts.EquateEmpty()) {
			return false, nil
		}
		u.Relations[i] = merged
		changed = true
		return true, nil
	})
	if err != nil {
		return domain.Relation{}, false, err
	}
	return out, changed, nil
}

// Delete removes a relation. Unknown ids are not an error; the flag reports whether
// anything was removed.
func (s *Service) Delete(ctx context.Context, userID domain.UserID, id domain.RelationID) (bool, error) {
	var removed bool
	err := s.mutate(ctx, userID, func(u *domain.User) (bool, error) {
		i := u.FindRelation(id)
		if i < 0 {
			return false, nil
		}
		u.Relations = append(u.Relations[:i], u.Relations[i+1:]...)
		removed = true
		return true, nil
	})
	return removed, err
}

// mutate runs fn on a fresh copy of the user under the write lock and saves it when
// fn reports a change.
func (s *Service) mutate(ctx context.Context, userID domain.UserID, fn func(u *domain.User) (bool, error)) error {
	unlock := s.writes.Lock(string(userID))
	defer unlock()

	u, err := s.users.FindUser(ctx, userID)
	if err != nil {
		return err
	}
	changed, err := fn(u)
	if err != nil || !changed {
		return err
	}
	return s.users.SaveUser(ctx, u)
}

// normalize validates a relation, fills defaults and recomputes reminder occurrences.
func (s *Service) normalize(rel *domain.Relation) error {
	rel.Name = strings.TrimSpace(rel.Name)
	if rel.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidRelation)
	}
	if strings.TrimSpace(rel.Pronouns) == "" {
		rel.Pronouns = domain.PronounsUnspecified
	}
	for i, h := range rel.ContactHistory {
		if strings.TrimSpace(h.Date) == "" && strings.TrimSpace(h.Topic) == "" {
			return fmt.Errorf("%w: contact_history[%d] needs a date or a topic", domain.ErrInvalidRelation, i)
		}
	}
	for i := range rel.ReminderFrequency {
		rf := &rel.ReminderFrequency[i]
		rf.Frequency = rf.Frequency.In(s.loc)
		rf.Occurrences = recurrence.Expand(rf.Frequency)
	}
	return nil
}

func decodeRelation(body json.RawMessage, rel *domain.Relation) error {
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", domain.ErrInvalidRelation)
	}
	if err := json.Unmarshal(body, rel); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRelation, err)
	}
	return nil
}

func mergeRelation(current domain.Relation, patch json.RawMessage) (domain.Relation, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil || fields == nil {
		return domain.Relation{}, fmt.Errorf("%w: patch must be a JSON object", domain.ErrInvalidRelation)
	}

	base, err := json.Marshal(current)
	if err != nil {
		return domain.Relation{}, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(base, &doc); err != nil {
		return domain.Relation{}, err
	}
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		doc[k] = v
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return domain.Relation{}, err
	}
	var out domain.Relation
	if err := decodeRelation(raw, &out); err != nil {
		return domain.Relation{}, err
	}
	return out, nil
}

// CreateUser stores a new user with an empty relation set.
func (s *Service) CreateUser(ctx context.Context, u *domain.User) error {
	if strings.TrimSpace(string(u.ID)) == "" || strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("%w: googleId and email are required", domain.ErrInvalidRelation)
	}
	if u.Relations == nil {
		u.Relations = []domain.Relation{}
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return err
	}
	observability.LoggerFromContext(ctx).Info("user created", "user_id", u.ID)
	return nil
}

// GetUser returns the stored user document.
func (s *Service) GetUser(ctx context.Context, userID domain.UserID) (*domain.User, error) {
	return s.users.FindUser(ctx, userID)
}
