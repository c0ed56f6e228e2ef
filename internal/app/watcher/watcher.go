// Package watcher keeps agent instructions and reminder jobs in step with the
// stored relations by following the change feed.
package watcher

import (
	"context"
	"errors"
	"sync"

	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/observability"
)

// Instructions rebuilds agent instructions and drops cached agent bindings.
type Instructions interface {
	RefreshInstructions(ctx context.Context, user *domain.User) error
	Invalidate(userID domain.UserID)
}

// Jobs rearms reminder jobs from scratch.
type Jobs interface {
	Reschedule(ctx context.Context, user *domain.User) int
}

// Watcher runs one goroutine per watched user plus one for user inserts. Events
// of a user are handled in order by that user's goroutine.
type Watcher struct {
	users        domain.UserStore
	feed         domain.ChangeFeed
	instructions Instructions
	jobs         Jobs
	metrics      *observability.Metrics

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	watching map[domain.UserID]struct{}
	wg       sync.WaitGroup
}

func New(users domain.UserStore, feed domain.ChangeFeed, instructions Instructions, jobs Jobs, metrics *observability.Metrics) *Watcher {
	return &Watcher{
		users:        users,
		feed:         feed,
		instructions: instructions,
		jobs:         jobs,
		metrics:      metrics,
		watching:     make(map[domain.UserID]struct{}),
	}
}

// Start watches every stored user and every user inserted later. Each watched
// user gets an initial refresh.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return errors.New("watcher already started")
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	wctx := w.ctx
	w.mu.Unlock()

	log := observability.LoggerFromContext(ctx)

	inserts, err := w.feed.WatchInserts(wctx)
	if err != nil {
		return err
	}
	w.wg.Add(1)
	go w.followInserts(wctx, inserts)

	users, err := w.users.ListUsers(wctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := w.Watch(u.ID); err != nil {
			log.Error("watch user failed", "user_id", u.ID, "error", err)
		}
	}
	log.Info("watcher started", "users", len(users))
	return nil
}

// Watch subscribes to a user's changes. Watching an already watched user is a no-op.
func (w *Watcher) Watch(userID domain.UserID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx == nil {
		return errors.New("watcher not started")
	}
	if _, ok := w.watching[userID]; ok {
		return nil
	}
	events, err := w.feed.WatchUser(w.ctx, userID)
	if err != nil {
		return err
	}
	w.watching[userID] = struct{}{}

	w.wg.Add(1)
	go w.follow(observability.WithUserID(w.ctx, string(userID)), userID, events)
	return nil
}

// Watching reports whether the user has a live subscription.
func (w *Watcher) Watching(userID domain.UserID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watching[userID]
	return ok
}

// Stop ends every subscription and waits for the goroutines.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) followInserts(ctx context.Context, events <-chan domain.ChangeEvent) {
	defer w.wg.Done()
	log := observability.LoggerFromContext(ctx)

	for ev := range events {
		if ev.Err != nil {
			log.Error("insert subscription error", "error", ev.Err)
			continue
		}
		if err := w.Watch(ev.UserID); err != nil {
			log.Error("watch inserted user failed", "user_id", ev.UserID, "error", err)
		}
	}
}

func (w *Watcher) follow(ctx context.Context, userID domain.UserID, events <-chan domain.ChangeEvent) {
	defer w.wg.Done()
	defer func() {
		w.mu.Lock()
		delete(w.watching, userID)
		w.mu.Unlock()
	}()
	log := observability.LoggerFromContext(ctx)

	// The subscription is open, so nothing written from here on is missed.
	w.refresh(ctx, userID)

	for ev := range events {
		if ev.Err != nil {
			log.Error("user subscription error", "error", ev.Err)
			continue
		}
		w.refresh(ctx, userID)
	}
}

// refresh reloads the user, overwrites both agents' instructions and rearms jobs.
func (w *Watcher) refresh(ctx context.Context, userID domain.UserID) {
	log := observability.LoggerFromContext(ctx)

	user, err := w.users.FindUser(ctx, userID)
	if err != nil {
		if ctx.Err() == nil {
			log.Error("reload user failed", "error", err)
			w.metrics.IncRefresh(err)
		}
		return
	}

	w.instructions.Invalidate(userID)
	err = w.instructions.RefreshInstructions(ctx, user)
	if err != nil {
		log.Error("instruction refresh failed", "error", err)
	}
	armed := w.jobs.Reschedule(ctx, user)
	w.metrics.IncRefresh(err)
	log.Info("user refreshed", "relations", len(user.Relations), "armed_jobs", armed)
}
