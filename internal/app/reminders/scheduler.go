// Package reminders arms one-shot jobs for reminder occurrences and sends the
// notification when a job fires.
package reminders

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/observability"
	"github.com/PabloGalante/amika-agent/internal/recurrence"
)

// Notifier handles a fired occurrence.
type Notifier interface {
	Dispatch(ctx context.Context, occ domain.Occurrence) error
}

type job struct {
	entry cron.EntryID
	occ   domain.Occurrence
}

// bucket holds the armed jobs of one user.
type bucket struct {
	mu   sync.Mutex
	jobs map[cron.EntryID]*job
}

// Scheduler keeps one armed job per future occurrence of every enabled reminder.
// Jobs fire once and retire; there is no retry. Jobs are grouped per user so a
// reschedule of one user never blocks another.
type Scheduler struct {
	cron     *cron.Cron
	notifier Notifier
	loc      *time.Location
	timeout  time.Duration
	metrics  *observability.Metrics
	now      func() time.Time

	buckets sync.Map // domain.UserID -> *bucket

	ctxMu   sync.RWMutex
	baseCtx context.Context
}

func NewScheduler(notifier Notifier, loc *time.Location, dispatchTimeout time.Duration, metrics *observability.Metrics) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if dispatchTimeout <= 0 {
		dispatchTimeout = time.Minute
	}
	logger := cron.PrintfLogger(slog.NewLogLogger(observability.Logger().Handler(), slog.LevelWarn))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		notifier: notifier,
		loc:      loc,
		timeout:  dispatchTimeout,
		metrics:  metrics,
		now:      time.Now,
		baseCtx:  context.Background(),
	}
}

// Start begins firing jobs. Dispatches run with contexts derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctxMu.Lock()
	s.baseCtx = ctx
	s.ctxMu.Unlock()
	s.cron.Start()
}

// Stop stops firing and waits for running dispatches.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) bucketFor(id domain.UserID) *bucket {
	b, _ := s.buckets.LoadOrStore(id, &bucket{jobs: make(map[cron.EntryID]*job)})
	return b.(*bucket)
}

// Reschedule cancels every job of the user and arms one per future occurrence of
// each enabled relation. It returns the number of armed jobs.
func (s *Scheduler) Reschedule(ctx context.Context, user *domain.User) int {
	ctx = observability.WithUserID(ctx, string(user.ID))
	log := observability.LoggerFromContext(ctx)
	b := s.bucketFor(user.ID)

	b.mu.Lock()
	defer b.mu.Unlock()

	cancelled := s.cancelLocked(b)
	now := s.now()
	armed := 0
	for _, occ := range s.occurrences(user) {
		if !occ.At.After(now) {
			continue
		}
		j := &job{occ: occ}
		j.entry = s.cron.Schedule(onceSchedule{at: occ.At}, cron.FuncJob(func() { s.fire(user.ID, j) }))
		b.jobs[j.entry] = j
		armed++
	}
	s.metrics.AddArmedJobs(armed)

	log.Info("reminders rescheduled", "cancelled", cancelled, "armed", armed)
	return armed
}

func (s *Scheduler) occurrences(user *domain.User) []domain.Occurrence {
	var out []domain.Occurrence
	for _, rel := range user.Relations {
		if !rel.ReminderEnabled {
			continue
		}
		for _, rf := range rel.ReminderFrequency {
			instants := rf.Occurrences
			if len(instants) == 0 {
				instants = recurrence.ExpandIn(rf.Frequency, s.loc)
			}
			for _, at := range instants {
				out = append(out, domain.Occurrence{UserID: user.ID, RelationID: rel.ID, Method: rf.Method, At: domain.AnchorIn(at, s.loc)})
			}
		}
	}
	return out
}

// CancelAll stops every armed job of the user and returns how many were stopped.
// Calling it again returns 0.
func (s *Scheduler) CancelAll(userID domain.UserID) int {
	b := s.bucketFor(userID)
	b.mu.Lock()
	defer b.mu.Unlock()
	return s.cancelLocked(b)
}

func (s *Scheduler) cancelLocked(b *bucket) int {
	n := len(b.jobs)
	for id := range b.jobs {
		s.cron.Remove(id)
		delete(b.jobs, id)
	}
	s.metrics.AddArmedJobs(-n)
	return n
}

// Armed reports how many jobs are armed for the user.
func (s *Scheduler) Armed(userID domain.UserID) int {
	v, ok := s.buckets.Load(userID)
	if !ok {
		return 0
	}
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}

// fire retires the job and dispatches it. A job cancelled while it was about to
// fire is no longer in the bucket and does nothing.
func (s *Scheduler) fire(userID domain.UserID, j *job) {
	b := s.bucketFor(userID)
	b.mu.Lock()
	if _, armed := b.jobs[j.entry]; !armed {
		b.mu.Unlock()
		return
	}
	delete(b.jobs, j.entry)
	s.cron.Remove(j.entry)
	b.mu.Unlock()
	s.metrics.AddArmedJobs(-1)

	s.ctxMu.RLock()
	base := s.baseCtx
	s.ctxMu.RUnlock()

	ctx, cancel := context.WithTimeout(observability.WithUserID(base, string(userID)), s.timeout)
	defer cancel()

	log := observability.LoggerFromContext(ctx).With("relation_id", j.occ.RelationID, "method", j.occ.Method, "at", j.occ.At)
	if err := s.notifier.Dispatch(ctx, j.occ); err != nil {
		log.Error("reminder dispatch failed", "error", err)
		return
	}
	log.Info("reminder dispatched")
}
